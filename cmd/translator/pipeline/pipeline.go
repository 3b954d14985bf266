package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultCallTimeout = 30 * time.Second

type Stage string

const (
	StageRecognize  Stage = "recognize"
	StageTranslate  Stage = "translate"
	StageSynthesize Stage = "synthesize"
)

type ProgressState string

const (
	ProgressStarted   ProgressState = "started"
	ProgressCompleted ProgressState = "completed"
	ProgressFailed    ProgressState = "failed"
)

// ProgressEvent is emitted at stage boundaries so a presentation layer can
// surface progress while an invocation is running.
type ProgressEvent struct {
	InvocationID string        `json:"invocation_id"`
	Stage        Stage         `json:"stage"`
	BackendID    string        `json:"backend_id,omitempty"`
	State        ProgressState `json:"state"`
}

type ProgressFunc func(ev ProgressEvent)

// Request is one translation invocation's input. Immutable after creation.
type Request struct {
	Audio  AudioBlob
	Source Language
	Target Language
}

type Timings struct {
	Recognize  time.Duration
	Translate  time.Duration
	Synthesize time.Duration
	// Total is the sum of the three stage timings. Stages are strictly
	// sequential so there is no overlap to account for.
	Total time.Duration
}

// Result is one successful invocation's output. It is handed to the caller
// and not retained by the pipeline.
type Result struct {
	InvocationID string
	Transcript   string
	Translation  string
	Audio        AudioBlob
	Timings      Timings
}

// Config selects, for each stage, the ordered chain of backend IDs to try.
type Config struct {
	RecognizeChain  []string
	TranslateChain  []string
	SynthesizeChain []string

	// CallTimeout bounds each individual backend call so a hung backend
	// can't block the invocation indefinitely. A timed out call advances
	// the chain like any other failure.
	CallTimeout time.Duration

	// Gate, when set, is consulted before the recognize chain runs.
	Gate SpeechGate

	OnProgress ProgressFunc
}

// Pipeline runs the three stage chains against a request. Stateless across
// invocations: safe for concurrent use.
type Pipeline struct {
	cfg Config
	reg *Registry
}

func New(reg *Registry, cfg Config) (*Pipeline, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry should not be nil")
	}

	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	if len(cfg.RecognizeChain) == 0 {
		return nil, newConfigError("recognize chain cannot be empty")
	}
	if len(cfg.TranslateChain) == 0 {
		return nil, newConfigError("translate chain cannot be empty")
	}
	if len(cfg.SynthesizeChain) == 0 {
		return nil, newConfigError("synthesize chain cannot be empty")
	}

	for _, id := range cfg.RecognizeChain {
		if _, ok := reg.recognizers[id]; !ok {
			return nil, newConfigError("recognizer %q is not registered", id)
		}
	}
	for _, id := range cfg.TranslateChain {
		if _, ok := reg.translators[id]; !ok {
			return nil, newConfigError("translator %q is not registered", id)
		}
	}
	for _, id := range cfg.SynthesizeChain {
		if _, ok := reg.synthesizers[id]; !ok {
			return nil, newConfigError("synthesizer %q is not registered", id)
		}
	}

	return &Pipeline{
		cfg: cfg,
		reg: reg,
	}, nil
}

// Run executes Recognize -> Translate -> Synthesize for one request,
// applying each stage's fallback chain in order. It either returns a full
// Result or an error; there are no partial successes.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := p.checkRequest(req); err != nil {
		return nil, err
	}

	invocationID := uuid.NewString()
	logger := slog.With(slog.String("invocationID", invocationID))

	if p.cfg.Gate != nil {
		ok, err := p.cfg.Gate.HasSpeech(req.Audio)
		if err != nil {
			// The gate is an optimization, not a stage. Let the
			// recognize chain be the judge.
			logger.Warn("speech gate failed", slog.String("err", err.Error()))
		} else if !ok {
			logger.Info("speech gate rejected audio")
			return nil, fmt.Errorf("speech gate: %w", ErrNoSpeech)
		}
	}

	transcript, recognizeDur, err := p.runRecognize(ctx, logger, invocationID, req)
	if err != nil {
		return nil, err
	}

	translation, translateDur, err := p.runTranslate(ctx, logger, invocationID, req, transcript)
	if err != nil {
		return nil, err
	}

	audio, synthesizeDur, err := p.runSynthesize(ctx, logger, invocationID, req, translation)
	if err != nil {
		return nil, err
	}

	return &Result{
		InvocationID: invocationID,
		Transcript:   transcript,
		Translation:  translation,
		Audio:        audio,
		Timings: Timings{
			Recognize:  recognizeDur,
			Translate:  translateDur,
			Synthesize: synthesizeDur,
			Total:      recognizeDur + translateDur + synthesizeDur,
		},
	}, nil
}

// checkRequest verifies, before any backend runs, that the request can be
// served by every backend in the configured chains.
func (p *Pipeline) checkRequest(req Request) error {
	if req.Audio.IsEmpty() {
		return newConfigError("request audio cannot be empty")
	}
	if !req.Source.IsValid() {
		return newConfigError("unknown source language %q", string(req.Source))
	}
	if !req.Target.IsValid() {
		return newConfigError("unknown target language %q", string(req.Target))
	}

	for _, id := range p.cfg.RecognizeChain {
		if _, ok := p.reg.recognizers[id].codes[req.Source]; !ok {
			return newConfigError("recognizer %q has no code for language %q", id, string(req.Source))
		}
	}
	for _, id := range p.cfg.TranslateChain {
		if _, ok := p.reg.translators[id].codes[req.Source]; !ok {
			return newConfigError("translator %q has no code for language %q", id, string(req.Source))
		}
		if _, ok := p.reg.translators[id].codes[req.Target]; !ok {
			return newConfigError("translator %q has no code for language %q", id, string(req.Target))
		}
	}
	for _, id := range p.cfg.SynthesizeChain {
		if _, ok := p.reg.synthesizers[id].voices[req.Target]; !ok {
			return newConfigError("synthesizer %q has no voice for language %q", id, string(req.Target))
		}
	}

	return nil
}

func (p *Pipeline) progress(invocationID string, stage Stage, backendID string, state ProgressState) {
	if p.cfg.OnProgress != nil {
		p.cfg.OnProgress(ProgressEvent{
			InvocationID: invocationID,
			Stage:        stage,
			BackendID:    backendID,
			State:        state,
		})
	}
}

func (p *Pipeline) runRecognize(ctx context.Context, logger *slog.Logger, invocationID string, req Request) (string, time.Duration, error) {
	p.progress(invocationID, StageRecognize, "", ProgressStarted)

	start := time.Now()
	var lastErr error
	var lastID string
	for _, id := range p.cfg.RecognizeChain {
		entry := p.reg.recognizers[id]

		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		text, err := entry.rec.Recognize(callCtx, req.Audio, entry.codes[req.Source])
		cancel()

		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrNoSpeech
		}
		if err != nil {
			bErr := &BackendError{Stage: StageRecognize, BackendID: id, Err: err}
			logger.Error("recognize attempt failed", slog.String("err", bErr.Error()))
			lastErr, lastID = err, id
			continue
		}

		p.progress(invocationID, StageRecognize, id, ProgressCompleted)
		return strings.TrimSpace(text), time.Since(start), nil
	}

	p.progress(invocationID, StageRecognize, lastID, ProgressFailed)
	return "", 0, &StageError{Stage: StageRecognize, BackendID: lastID, Err: lastErr}
}

func (p *Pipeline) runTranslate(ctx context.Context, logger *slog.Logger, invocationID string, req Request, transcript string) (string, time.Duration, error) {
	p.progress(invocationID, StageTranslate, "", ProgressStarted)

	start := time.Now()
	var lastErr error
	var lastID string
	for _, id := range p.cfg.TranslateChain {
		entry := p.reg.translators[id]

		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		text, err := entry.tr.Translate(callCtx, transcript, entry.codes[req.Source], entry.codes[req.Target])
		cancel()

		if err == nil && strings.TrimSpace(text) == "" {
			err = errEmptyOutput
		}
		if err != nil {
			bErr := &BackendError{Stage: StageTranslate, BackendID: id, Err: err}
			logger.Error("translate attempt failed", slog.String("err", bErr.Error()))
			lastErr, lastID = err, id
			continue
		}

		p.progress(invocationID, StageTranslate, id, ProgressCompleted)
		return strings.TrimSpace(text), time.Since(start), nil
	}

	p.progress(invocationID, StageTranslate, lastID, ProgressFailed)
	return "", 0, &StageError{Stage: StageTranslate, BackendID: lastID, Err: lastErr}
}

func (p *Pipeline) runSynthesize(ctx context.Context, logger *slog.Logger, invocationID string, req Request, translation string) (AudioBlob, time.Duration, error) {
	p.progress(invocationID, StageSynthesize, "", ProgressStarted)

	start := time.Now()
	var lastErr error
	var lastID string
	for _, id := range p.cfg.SynthesizeChain {
		entry := p.reg.synthesizers[id]

		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		audio, err := entry.syn.Synthesize(callCtx, translation, entry.voices[req.Target])
		cancel()

		if err == nil && audio.IsEmpty() {
			err = errEmptyOutput
		}
		if err != nil {
			bErr := &BackendError{Stage: StageSynthesize, BackendID: id, Err: err}
			logger.Error("synthesize attempt failed", slog.String("err", bErr.Error()))
			lastErr, lastID = err, id
			continue
		}

		p.progress(invocationID, StageSynthesize, id, ProgressCompleted)
		return audio, time.Since(start), nil
	}

	p.progress(invocationID, StageSynthesize, lastID, ProgressFailed)
	return AudioBlob{}, 0, &StageError{Stage: StageSynthesize, BackendID: lastID, Err: lastErr}
}
