// Package service exposes the pipeline over HTTP: a synchronous translate
// endpoint, the supported language list, and a websocket feed of per-stage
// progress events.
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voice-translator/cmd/translator/pipeline"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	maxUploadSize   = 32 << 20
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	ListenAddr string
	// DataDir is the scratch space root. Each invocation gets its own
	// subdirectory, removed before the response is written.
	DataDir string
}

func (c Config) IsValid() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("invalid ListenAddr: should not be empty")
	}

	if c.DataDir == "" {
		return fmt.Errorf("invalid DataDir: should not be empty")
	}

	return nil
}

type Service struct {
	cfg Config
	pl  *pipeline.Pipeline
	srv *http.Server

	upgrader websocket.Upgrader
	mut      sync.Mutex
	conns    map[*websocket.Conn]struct{}
}

// New builds the pipeline from the given registry and pipeline config and
// binds it to the HTTP surface. Progress events are teed into the websocket
// feed on top of any caller-provided handler.
func New(cfg Config, reg *pipeline.Registry, pcfg pipeline.Config) (*Service, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	s := &Service{
		cfg:   cfg,
		conns: make(map[*websocket.Conn]struct{}),
	}

	onProgress := pcfg.OnProgress
	pcfg.OnProgress = func(ev pipeline.ProgressEvent) {
		s.broadcast(ev)
		if onProgress != nil {
			onProgress(ev)
		}
	}

	pl, err := pipeline.New(reg, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	s.pl = pl

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/translate", s.handleTranslate)
	mux.HandleFunc("GET /api/v1/languages", s.handleLanguages)
	mux.HandleFunc("GET /ws/progress", s.handleProgress)

	s.srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	return s, nil
}

// Handler exposes the HTTP surface, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Service) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mut.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mut.Unlock()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

type translateResponse struct {
	InvocationID string          `json:"invocation_id"`
	Transcript   string          `json:"transcript"`
	Translation  string          `json:"translation"`
	Audio        string          `json:"audio"`
	AudioFormat  pipeline.Format `json:"audio_format"`
	Timings      timingsResponse `json:"timings"`
}

type timingsResponse struct {
	RecognizeMs  int64 `json:"recognize_ms"`
	TranslateMs  int64 `json:"translate_ms"`
	SynthesizeMs int64 `json:"synthesize_ms"`
	TotalMs      int64 `json:"total_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (s *Service) handleTranslate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse form: %w", err), "")
		return
	}

	source, err := pipeline.ParseLanguage(r.FormValue("source_language"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}
	target, err := pipeline.ParseLanguage(r.FormValue("target_language"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing audio file: %w", err), "")
		return
	}
	defer file.Close()

	// The upload is spooled into scratch space scoped to this invocation
	// and processed from there. The scratch dir is reclaimed on success
	// and failure alike.
	scratchDir := filepath.Join(s.cfg.DataDir, uuid.NewString())
	if err := os.MkdirAll(scratchDir, 0700); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to create scratch dir: %w", err), "")
		return
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			slog.Error("failed to remove scratch dir", slog.String("err", err.Error()))
		}
	}()

	inputPath := filepath.Join(scratchDir, "input")
	data, err := spoolUpload(inputPath, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to spool upload: %w", err), "")
		return
	}

	format, err := pipeline.DetectFormat(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, "")
		return
	}

	res, err := s.pl.Run(r.Context(), pipeline.Request{
		Audio:  pipeline.AudioBlob{Data: data, Format: format},
		Source: source,
		Target: target,
	})
	if err != nil {
		status := http.StatusInternalServerError
		stage := ""

		var cfgErr *pipeline.ConfigError
		var stageErr *pipeline.StageError
		switch {
		case errors.As(err, &cfgErr):
			status = http.StatusBadRequest
		case errors.As(err, &stageErr):
			status = http.StatusBadGateway
			stage = string(stageErr.Stage)
			if errors.Is(err, pipeline.ErrNoSpeech) {
				status = http.StatusUnprocessableEntity
			}
		case errors.Is(err, pipeline.ErrNoSpeech):
			status = http.StatusUnprocessableEntity
		}

		writeError(w, status, err, stage)
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{
		InvocationID: res.InvocationID,
		Transcript:   res.Transcript,
		Translation:  res.Translation,
		Audio:        base64.StdEncoding.EncodeToString(res.Audio.Data),
		AudioFormat:  res.Audio.Format,
		Timings: timingsResponse{
			RecognizeMs:  res.Timings.Recognize.Milliseconds(),
			TranslateMs:  res.Timings.Translate.Milliseconds(),
			SynthesizeMs: res.Timings.Synthesize.Milliseconds(),
			TotalMs:      res.Timings.Total.Milliseconds(),
		},
	})
}

func (s *Service) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]pipeline.Language{
		"languages": pipeline.Languages(),
	})
}

func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", slog.String("err", err.Error()))
		return
	}

	s.mut.Lock()
	s.conns[conn] = struct{}{}
	s.mut.Unlock()

	// Drain control frames until the peer goes away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
		s.mut.Lock()
		delete(s.conns, conn)
		s.mut.Unlock()
		_ = conn.Close()
	}()
}

func (s *Service) broadcast(ev pipeline.ProgressEvent) {
	s.mut.Lock()
	defer s.mut.Unlock()
	for conn := range s.conns {
		if err := conn.WriteJSON(ev); err != nil {
			slog.Error("failed to write progress event", slog.String("err", err.Error()))
			delete(s.conns, conn)
			_ = conn.Close()
		}
	}
}

// spoolUpload copies the upload to path and reads it back for processing.
func spoolUpload(path string, src io.Reader) ([]byte, error) {
	dst, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return nil, err
	}
	if err := dst.Close(); err != nil {
		return nil, err
	}

	return os.ReadFile(path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, err error, stage string) {
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Stage: stage,
	})
}
