package whisper

// #cgo LDFLAGS: -l:libwhisper.a -lm -lstdc++
// #include <whisper.h>
// #include <stdlib.h>
import "C"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"voice-translator/cmd/translator/pipeline"
	"voice-translator/cmd/translator/wav"
)

const sampleRate = 16000

type Config struct {
	// The path to the GGML model file to use.
	ModelFile string
	// The number of threads to use during inference.
	NumThreads int
}

func (c Config) IsValid() error {
	if c == (Config{}) {
		return fmt.Errorf("invalid empty config")
	}

	if c.ModelFile == "" {
		return fmt.Errorf("invalid ModelFile: should not be empty")
	}

	if _, err := os.Stat(c.ModelFile); err != nil {
		return fmt.Errorf("invalid ModelFile: failed to stat model file: %w", err)
	}

	if c.NumThreads < 1 || c.NumThreads > runtime.NumCPU() {
		return fmt.Errorf("invalid NumThreads: should be in the range [1, %d]", runtime.NumCPU())
	}

	return nil
}

// Context wraps a loaded whisper.cpp model. The model is loaded once per
// process and shared across invocations; whisper_full is not safe for
// concurrent use on the same context so calls are serialized.
type Context struct {
	cfg Config
	mut sync.Mutex
	ctx *C.struct_whisper_context
}

func NewContext(cfg Config) (*Context, error) {
	var c Context

	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	c.cfg = cfg

	slog.Debug("loading whisper model", slog.String("modelFile", cfg.ModelFile))

	path := C.CString(cfg.ModelFile)
	defer C.free(unsafe.Pointer(path))

	cparams := C.whisper_context_default_params()
	c.ctx = C.whisper_init_from_file_with_params(path, cparams)
	if c.ctx == nil {
		return nil, fmt.Errorf("failed to load model file")
	}

	return &c, nil
}

func (c *Context) Destroy() error {
	if c.ctx == nil {
		return fmt.Errorf("context is not initialized")
	}
	C.whisper_free(c.ctx)
	c.ctx = nil
	return nil
}

// Recognize implements pipeline.Recognizer. The input must be a 16kHz WAV
// clip; langCode is a whisper language id (e.g. "hi").
func (c *Context) Recognize(ctx context.Context, audio pipeline.AudioBlob, langCode string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if audio.Format != pipeline.FormatWAV {
		return "", fmt.Errorf("unsupported container format %q: local inference requires WAV input", audio.Format)
	}

	samples, rate, err := wav.Decode(audio.Data)
	if err != nil {
		return "", fmt.Errorf("failed to decode audio: %w", err)
	}
	if rate != sampleRate {
		return "", fmt.Errorf("unsupported sample rate %d: local inference requires %dHz input", rate, sampleRate)
	}

	segments, err := c.transcribe(samples, langCode)
	if err != nil {
		return "", err
	}

	return strings.Join(segments, " "), nil
}

func (c *Context) transcribe(samples []float32, lang string) ([]string, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("samples should not be empty")
	}

	c.mut.Lock()
	defer c.mut.Unlock()

	if c.ctx == nil {
		return nil, fmt.Errorf("context is not initialized")
	}

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.n_threads = C.int(c.cfg.NumThreads)
	params.no_context = C.bool(true)
	params.print_progress = C.bool(false)
	if lang == "" {
		lang = "auto"
	}
	cLang := C.CString(lang)
	defer C.free(unsafe.Pointer(cLang))
	params.language = cLang

	ret := C.whisper_full(c.ctx, params, (*C.float)(&samples[0]), C.int(len(samples)))
	if ret != 0 {
		return nil, fmt.Errorf("whisper_full failed with code %d", ret)
	}

	n := int(C.whisper_full_n_segments(c.ctx))
	segments := make([]string, n)
	for i := 0; i < n; i++ {
		segments[i] = strings.TrimSpace(C.GoString(C.whisper_full_get_segment_text(c.ctx, C.int(i))))
	}

	return segments, nil
}
