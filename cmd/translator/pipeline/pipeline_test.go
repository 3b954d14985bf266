package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubRecognizer struct {
	calls int32
	text  string
	err   error
	delay time.Duration
}

func (s *stubRecognizer) Recognize(ctx context.Context, _ AudioBlob, _ string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

type stubTranslator struct {
	calls int32
	text  string
	err   error
}

func (s *stubTranslator) Translate(_ context.Context, _, _, _ string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.text, s.err
}

type stubSynthesizer struct {
	calls int32
	audio AudioBlob
	err   error
}

func (s *stubSynthesizer) Synthesize(_ context.Context, _, _ string) (AudioBlob, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.audio, s.err
}

type stubGate struct {
	calls  int32
	speech bool
	err    error
}

func (s *stubGate) HasSpeech(_ AudioBlob) (bool, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.speech, s.err
}

func wavBlob() AudioBlob {
	return AudioBlob{Data: []byte("audio-bytes"), Format: FormatWAV}
}

func allCodes(code string) map[Language]string {
	codes := make(map[Language]string, len(languages))
	for _, l := range languages {
		codes[l] = code
	}
	return codes
}

func TestNew(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterRecognizer("rec", &stubRecognizer{}, allCodes("hi")))
	require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{}, allCodes("hi")))
	require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{}, allCodes("hi")))

	tcs := []struct {
		name string
		cfg  Config
		err  string
	}{
		{
			name: "empty recognize chain",
			cfg: Config{
				TranslateChain:  []string{"tr"},
				SynthesizeChain: []string{"syn"},
			},
			err: "configuration error: recognize chain cannot be empty",
		},
		{
			name: "unregistered backend",
			cfg: Config{
				RecognizeChain:  []string{"rec", "missing"},
				TranslateChain:  []string{"tr"},
				SynthesizeChain: []string{"syn"},
			},
			err: `configuration error: recognizer "missing" is not registered`,
		},
		{
			name: "valid",
			cfg: Config{
				RecognizeChain:  []string{"rec"},
				TranslateChain:  []string{"tr"},
				SynthesizeChain: []string{"syn"},
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(reg, tc.cfg)
			if tc.err != "" {
				require.EqualError(t, err, tc.err)
				require.Nil(t, p)
			} else {
				require.NoError(t, err)
				require.NotNil(t, p)
			}
		})
	}
}

func TestRunHappyPath(t *testing.T) {
	rec := &stubRecognizer{text: "नमस्ते"}
	tr := &stubTranslator{text: "Hello"}
	syn := &stubSynthesizer{audio: AudioBlob{Data: []byte{1, 2, 3}, Format: FormatMP3}}

	reg := NewRegistry()
	require.NoError(t, reg.RegisterRecognizer("rec", rec, allCodes("hi")))
	require.NoError(t, reg.RegisterTranslator("tr", tr, allCodes("hi")))
	require.NoError(t, reg.RegisterSynthesizer("syn", syn, allCodes("hi-IN")))

	p, err := New(reg, Config{
		RecognizeChain:  []string{"rec"},
		TranslateChain:  []string{"tr"},
		SynthesizeChain: []string{"syn"},
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{
		Audio:  wavBlob(),
		Source: LanguageHindi,
		Target: LanguageEnglish,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.InvocationID)
	require.Equal(t, "नमस्ते", res.Transcript)
	require.Equal(t, "Hello", res.Translation)
	require.NotEmpty(t, res.Audio.Data)
	require.Equal(t, FormatMP3, res.Audio.Format)
	require.Equal(t, res.Timings.Recognize+res.Timings.Translate+res.Timings.Synthesize, res.Timings.Total)
}

func TestRunIdempotence(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterRecognizer("rec", &stubRecognizer{text: " hello "}, allCodes("hi")))
	require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "नमस्ते"}, allCodes("hi")))
	require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{audio: AudioBlob{Data: []byte{9}, Format: FormatWAV}}, allCodes("hi-IN")))

	p, err := New(reg, Config{
		RecognizeChain:  []string{"rec"},
		TranslateChain:  []string{"tr"},
		SynthesizeChain: []string{"syn"},
	})
	require.NoError(t, err)

	req := Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi}

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first.Transcript, second.Transcript)
	require.Equal(t, first.Translation, second.Translation)
	require.Equal(t, first.Audio, second.Audio)
}

func TestRunFallback(t *testing.T) {
	t.Run("recognize falls back on empty transcript", func(t *testing.T) {
		empty := &stubRecognizer{text: ""}
		good := &stubRecognizer{text: "hello"}
		tr := &stubTranslator{text: "नमस्ते"}
		syn := &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}

		reg := NewRegistry()
		require.NoError(t, reg.RegisterRecognizer("empty", empty, allCodes("en")))
		require.NoError(t, reg.RegisterRecognizer("good", good, allCodes("en")))
		require.NoError(t, reg.RegisterTranslator("tr", tr, allCodes("en")))
		require.NoError(t, reg.RegisterSynthesizer("syn", syn, allCodes("hi-IN")))

		p, err := New(reg, Config{
			RecognizeChain:  []string{"empty", "good"},
			TranslateChain:  []string{"tr"},
			SynthesizeChain: []string{"syn"},
		})
		require.NoError(t, err)

		res, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
		require.NoError(t, err)
		require.Equal(t, "hello", res.Transcript)
		require.Equal(t, int32(1), atomic.LoadInt32(&empty.calls))
		require.Equal(t, int32(1), atomic.LoadInt32(&good.calls))
	})

	t.Run("whitespace-only transcript counts as failed attempt", func(t *testing.T) {
		blank := &stubRecognizer{text: "   "}
		good := &stubRecognizer{text: "hello"}

		reg := NewRegistry()
		require.NoError(t, reg.RegisterRecognizer("blank", blank, allCodes("en")))
		require.NoError(t, reg.RegisterRecognizer("good", good, allCodes("en")))
		require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "ok"}, allCodes("en")))
		require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}, allCodes("hi-IN")))

		p, err := New(reg, Config{
			RecognizeChain:  []string{"blank", "good"},
			TranslateChain:  []string{"tr"},
			SynthesizeChain: []string{"syn"},
		})
		require.NoError(t, err)

		res, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
		require.NoError(t, err)
		require.Equal(t, "hello", res.Transcript)
		require.Equal(t, int32(1), atomic.LoadInt32(&blank.calls))
	})

	t.Run("translate exhaustion stops the pipeline", func(t *testing.T) {
		tr1 := &stubTranslator{err: errors.New("rate limited")}
		tr2 := &stubTranslator{err: errors.New("service unavailable")}
		syn := &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}

		reg := NewRegistry()
		require.NoError(t, reg.RegisterRecognizer("rec", &stubRecognizer{text: "hello"}, allCodes("en")))
		require.NoError(t, reg.RegisterTranslator("tr1", tr1, allCodes("en")))
		require.NoError(t, reg.RegisterTranslator("tr2", tr2, allCodes("en")))
		require.NoError(t, reg.RegisterSynthesizer("syn", syn, allCodes("hi-IN")))

		p, err := New(reg, Config{
			RecognizeChain:  []string{"rec"},
			TranslateChain:  []string{"tr1", "tr2"},
			SynthesizeChain: []string{"syn"},
		})
		require.NoError(t, err)

		res, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
		require.Error(t, err)
		require.Nil(t, res)

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		require.Equal(t, StageTranslate, stageErr.Stage)
		require.Equal(t, "tr2", stageErr.BackendID)
		require.ErrorContains(t, err, "service unavailable")

		require.Equal(t, int32(1), atomic.LoadInt32(&tr1.calls))
		require.Equal(t, int32(1), atomic.LoadInt32(&tr2.calls))
		require.Equal(t, int32(0), atomic.LoadInt32(&syn.calls))
	})

	t.Run("all recognizers empty surfaces no speech", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterRecognizer("a", &stubRecognizer{text: ""}, allCodes("en")))
		require.NoError(t, reg.RegisterRecognizer("b", &stubRecognizer{text: "\n\t"}, allCodes("en")))
		require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "ok"}, allCodes("en")))
		require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}, allCodes("hi-IN")))

		p, err := New(reg, Config{
			RecognizeChain:  []string{"a", "b"},
			TranslateChain:  []string{"tr"},
			SynthesizeChain: []string{"syn"},
		})
		require.NoError(t, err)

		_, err = p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
		require.ErrorIs(t, err, ErrNoSpeech)

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		require.Equal(t, StageRecognize, stageErr.Stage)
	})

	t.Run("zero-length synthesized audio counts as failed attempt", func(t *testing.T) {
		emptySyn := &stubSynthesizer{audio: AudioBlob{Format: FormatMP3}}
		goodSyn := &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}

		reg := NewRegistry()
		require.NoError(t, reg.RegisterRecognizer("rec", &stubRecognizer{text: "hello"}, allCodes("en")))
		require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "ok"}, allCodes("en")))
		require.NoError(t, reg.RegisterSynthesizer("empty", emptySyn, allCodes("hi-IN")))
		require.NoError(t, reg.RegisterSynthesizer("good", goodSyn, allCodes("hi-IN")))

		p, err := New(reg, Config{
			RecognizeChain:  []string{"rec"},
			TranslateChain:  []string{"tr"},
			SynthesizeChain: []string{"empty", "good"},
		})
		require.NoError(t, err)

		res, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
		require.NoError(t, err)
		require.Equal(t, []byte{1}, res.Audio.Data)
		require.Equal(t, int32(1), atomic.LoadInt32(&emptySyn.calls))
	})
}

func TestRunPreconditions(t *testing.T) {
	rec := &stubRecognizer{text: "hello"}

	reg := NewRegistry()
	require.NoError(t, reg.RegisterRecognizer("rec", rec, allCodes("en")))
	require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "ok"}, allCodes("en")))

	// A synthesizer with no voice for Hindi.
	voices := allCodes("en-IN-NeerjaNeural")
	delete(voices, LanguageHindi)
	require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}, voices))

	p, err := New(reg, Config{
		RecognizeChain:  []string{"rec"},
		TranslateChain:  []string{"tr"},
		SynthesizeChain: []string{"syn"},
	})
	require.NoError(t, err)

	t.Run("missing voice mapping short-circuits", func(t *testing.T) {
		_, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, int32(0), atomic.LoadInt32(&rec.calls))
	})

	t.Run("empty audio is rejected", func(t *testing.T) {
		_, err := p.Run(context.Background(), Request{Source: LanguageEnglish, Target: LanguageEnglish})
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, int32(0), atomic.LoadInt32(&rec.calls))
	})

	t.Run("unknown language is rejected", func(t *testing.T) {
		_, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: Language("Klingon"), Target: LanguageEnglish})
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, int32(0), atomic.LoadInt32(&rec.calls))
	})
}

func TestRunCallTimeout(t *testing.T) {
	slow := &stubRecognizer{text: "slow", delay: time.Second}
	fast := &stubRecognizer{text: "fast"}

	reg := NewRegistry()
	require.NoError(t, reg.RegisterRecognizer("slow", slow, allCodes("en")))
	require.NoError(t, reg.RegisterRecognizer("fast", fast, allCodes("en")))
	require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "ok"}, allCodes("en")))
	require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}, allCodes("hi-IN")))

	p, err := New(reg, Config{
		RecognizeChain:  []string{"slow", "fast"},
		TranslateChain:  []string{"tr"},
		SynthesizeChain: []string{"syn"},
		CallTimeout:     10 * time.Millisecond,
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
	require.NoError(t, err)
	require.Equal(t, "fast", res.Transcript)
	require.Equal(t, int32(1), atomic.LoadInt32(&slow.calls))
}

func TestRunSpeechGate(t *testing.T) {
	t.Run("gate rejection skips recognizers", func(t *testing.T) {
		rec := &stubRecognizer{text: "hello"}
		gate := &stubGate{speech: false}

		reg := NewRegistry()
		require.NoError(t, reg.RegisterRecognizer("rec", rec, allCodes("en")))
		require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "ok"}, allCodes("en")))
		require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}, allCodes("hi-IN")))

		p, err := New(reg, Config{
			RecognizeChain:  []string{"rec"},
			TranslateChain:  []string{"tr"},
			SynthesizeChain: []string{"syn"},
			Gate:            gate,
		})
		require.NoError(t, err)

		_, err = p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
		require.ErrorIs(t, err, ErrNoSpeech)
		require.Equal(t, int32(1), atomic.LoadInt32(&gate.calls))
		require.Equal(t, int32(0), atomic.LoadInt32(&rec.calls))
	})

	t.Run("gate error is non-fatal", func(t *testing.T) {
		gate := &stubGate{err: fmt.Errorf("detector not available")}

		reg := NewRegistry()
		require.NoError(t, reg.RegisterRecognizer("rec", &stubRecognizer{text: "hello"}, allCodes("en")))
		require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "ok"}, allCodes("en")))
		require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}, allCodes("hi-IN")))

		p, err := New(reg, Config{
			RecognizeChain:  []string{"rec"},
			TranslateChain:  []string{"tr"},
			SynthesizeChain: []string{"syn"},
			Gate:            gate,
		})
		require.NoError(t, err)

		res, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
		require.NoError(t, err)
		require.Equal(t, "hello", res.Transcript)
	})
}

func TestRunProgressEvents(t *testing.T) {
	var events []ProgressEvent

	reg := NewRegistry()
	require.NoError(t, reg.RegisterRecognizer("rec", &stubRecognizer{text: "hello"}, allCodes("en")))
	require.NoError(t, reg.RegisterTranslator("tr", &stubTranslator{text: "ok"}, allCodes("en")))
	require.NoError(t, reg.RegisterSynthesizer("syn", &stubSynthesizer{audio: AudioBlob{Data: []byte{1}, Format: FormatMP3}}, allCodes("hi-IN")))

	p, err := New(reg, Config{
		RecognizeChain:  []string{"rec"},
		TranslateChain:  []string{"tr"},
		SynthesizeChain: []string{"syn"},
		OnProgress: func(ev ProgressEvent) {
			events = append(events, ev)
		},
	})
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{Audio: wavBlob(), Source: LanguageEnglish, Target: LanguageHindi})
	require.NoError(t, err)

	require.Len(t, events, 6)
	expected := []struct {
		stage Stage
		state ProgressState
	}{
		{StageRecognize, ProgressStarted},
		{StageRecognize, ProgressCompleted},
		{StageTranslate, ProgressStarted},
		{StageTranslate, ProgressCompleted},
		{StageSynthesize, ProgressStarted},
		{StageSynthesize, ProgressCompleted},
	}
	for i, ev := range events {
		require.Equal(t, expected[i].stage, ev.Stage)
		require.Equal(t, expected[i].state, ev.State)
		require.Equal(t, res.InvocationID, ev.InvocationID)
	}
}
