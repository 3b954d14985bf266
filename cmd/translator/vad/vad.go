// Package vad implements the pipeline's speech gate on top of the Silero
// voice activity detection model.
package vad

import (
	"fmt"
	"os"

	"voice-translator/cmd/translator/pipeline"
	"voice-translator/cmd/translator/wav"

	"github.com/streamer45/silero-vad-go/speech"
)

const (
	sampleRate = 16000

	// Detection settings. WindowSize of 512 gives the finest-grained
	// detection the model supports at 16kHz.
	windowSizeInSamples  = 512
	threshold            = 0.5
	minSilenceDurationMs = 150
	minSpeechDurationMs  = 200
	silencePadMs         = 32
)

type Config struct {
	// ModelPath points at the silero_vad.onnx model file.
	ModelPath string
}

func (c Config) IsValid() error {
	if c.ModelPath == "" {
		return fmt.Errorf("invalid ModelPath: should not be empty")
	}

	if _, err := os.Stat(c.ModelPath); err != nil {
		return fmt.Errorf("invalid ModelPath: failed to stat model file: %w", err)
	}

	return nil
}

// Gate screens audio for speech before any recognizer quota is spent. It
// only judges 16kHz PCM WAV input; anything it can't decode passes through
// so the recognize chain stays the authority.
type Gate struct {
	cfg Config
}

func NewGate(cfg Config) (*Gate, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return &Gate{
		cfg: cfg,
	}, nil
}

// HasSpeech implements pipeline.SpeechGate. The detector keeps internal
// state, so one is created and destroyed per call.
func (g *Gate) HasSpeech(audio pipeline.AudioBlob) (bool, error) {
	if audio.Format != pipeline.FormatWAV {
		return true, nil
	}

	samples, rate, err := wav.Decode(audio.Data)
	if err != nil || rate != sampleRate {
		return true, nil
	}
	if len(samples) < windowSizeInSamples {
		return false, nil
	}

	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            g.cfg.ModelPath,
		SampleRate:           sampleRate,
		WindowSize:           windowSizeInSamples,
		Threshold:            threshold,
		MinSilenceDurationMs: minSilenceDurationMs,
		MinSpeechDurationMs:  minSpeechDurationMs,
		SilencePadMs:         silencePadMs,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create speech detector: %w", err)
	}
	defer func() {
		_ = sd.Destroy()
	}()

	segments, err := sd.Detect(samples)
	if err != nil {
		return false, fmt.Errorf("failed to detect speech: %w", err)
	}

	return len(segments) > 0, nil
}
