package azure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"voice-translator/cmd/translator/pipeline"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
)

type SpeechRecognizerConfig struct {
	SpeechKey    string
	SpeechRegion string
}

func (c SpeechRecognizerConfig) IsValid() error {
	if c.SpeechKey == "" {
		return fmt.Errorf("invalid SpeechKey: should not be empty")
	}

	if c.SpeechRegion == "" {
		return fmt.Errorf("invalid SpeechRegion: should not be empty")
	}

	return nil
}

// SpeechRecognizer transcribes one audio clip per call through the Azure
// Speech service. The struct holds only credentials, so it's safe for
// concurrent reuse; session objects are created and torn down per call.
type SpeechRecognizer struct {
	cfg SpeechRecognizerConfig
}

func NewSpeechRecognizer(cfg SpeechRecognizerConfig) (*SpeechRecognizer, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return &SpeechRecognizer{
		cfg: cfg,
	}, nil
}

// Recognize implements pipeline.Recognizer. langCode is an Azure locale
// (e.g. "hi-IN"). The input is expected to be 16kHz, 16-bit mono PCM WAV,
// which is what the default push stream format assumes.
func (s *SpeechRecognizer) Recognize(ctx context.Context, clip pipeline.AudioBlob, langCode string) (string, error) {
	if clip.Format != pipeline.FormatWAV {
		return "", fmt.Errorf("unsupported container format %q: the push stream requires WAV input", clip.Format)
	}

	cfg, err := speech.NewSpeechConfigFromSubscription(s.cfg.SpeechKey, s.cfg.SpeechRegion)
	if err != nil {
		return "", fmt.Errorf("failed to create speech config: %w", err)
	}
	defer cfg.Close()

	if err := cfg.SetSpeechRecognitionLanguage(langCode); err != nil {
		return "", fmt.Errorf("failed to set recognition language: %w", err)
	}

	stream, err := audio.CreatePushAudioInputStream()
	if err != nil {
		return "", fmt.Errorf("failed to create audio stream: %w", err)
	}
	defer stream.Close()

	audioConfig, err := audio.NewAudioConfigFromStreamInput(stream)
	if err != nil {
		return "", fmt.Errorf("failed to create audio config: %w", err)
	}
	defer audioConfig.Close()

	speechRecognizer, err := speech.NewSpeechRecognizerFromConfig(cfg, audioConfig)
	if err != nil {
		return "", fmt.Errorf("failed to create speech recognizer: %w", err)
	}
	defer speechRecognizer.Close()

	var mut sync.Mutex
	var texts []string
	stoppedCh := make(chan struct{}, 1)
	errCh := make(chan error, 1)

	speechRecognizer.SessionStarted(func(event speech.SessionEventArgs) {
		defer event.Close()
		slog.Debug("session started", slog.String("sessionID", event.SessionID))
	})
	speechRecognizer.SessionStopped(func(event speech.SessionEventArgs) {
		defer event.Close()
		slog.Debug("session stopped", slog.String("sessionID", event.SessionID))
		select {
		case stoppedCh <- struct{}{}:
		default:
		}
	})
	speechRecognizer.Canceled(func(event speech.SpeechRecognitionCanceledEventArgs) {
		defer event.Close()
		if event.Reason == common.EndOfStream {
			return
		}
		select {
		case errCh <- fmt.Errorf("recognition canceled: %s", event.ErrorDetails):
		default:
		}
	})
	speechRecognizer.Recognized(func(event speech.SpeechRecognitionEventArgs) {
		defer event.Close()
		if event.Result.Reason != common.RecognizedSpeech {
			return
		}
		mut.Lock()
		texts = append(texts, event.Result.Text)
		mut.Unlock()
	})

	if err := <-speechRecognizer.StartContinuousRecognitionAsync(); err != nil {
		return "", fmt.Errorf("failed to start recognizer: %w", err)
	}
	defer func() {
		if err := <-speechRecognizer.StopContinuousRecognitionAsync(); err != nil {
			slog.Error("failed to stop recognizer", slog.String("err", err.Error()))
		}
	}()

	if err := stream.Write(clip.Data); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	// Flushes out any remaining audio data.
	stream.CloseStream()

	select {
	case <-stoppedCh:
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}

	mut.Lock()
	defer mut.Unlock()
	return strings.Join(texts, " "), nil
}
