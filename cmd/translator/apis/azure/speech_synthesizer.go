package azure

import (
	"context"
	"fmt"

	"voice-translator/cmd/translator/pipeline"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
)

type SpeechSynthesizerConfig struct {
	SpeechKey    string
	SpeechRegion string
}

func (c SpeechSynthesizerConfig) IsValid() error {
	if c.SpeechKey == "" {
		return fmt.Errorf("invalid SpeechKey: should not be empty")
	}

	if c.SpeechRegion == "" {
		return fmt.Errorf("invalid SpeechRegion: should not be empty")
	}

	return nil
}

// SpeechSynthesizer renders one text per call through the Azure Speech
// service, returning the synthesized audio as an MP3 blob. Safe for
// concurrent reuse.
type SpeechSynthesizer struct {
	cfg SpeechSynthesizerConfig
}

func NewSpeechSynthesizer(cfg SpeechSynthesizerConfig) (*SpeechSynthesizer, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return &SpeechSynthesizer{
		cfg: cfg,
	}, nil
}

// Synthesize implements pipeline.Synthesizer. voiceCode is an Azure neural
// voice name (e.g. "hi-IN-SwaraNeural").
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text, voiceCode string) (pipeline.AudioBlob, error) {
	cfg, err := speech.NewSpeechConfigFromSubscription(s.cfg.SpeechKey, s.cfg.SpeechRegion)
	if err != nil {
		return pipeline.AudioBlob{}, fmt.Errorf("failed to create speech config: %w", err)
	}
	defer cfg.Close()

	if err := cfg.SetSpeechSynthesisVoiceName(voiceCode); err != nil {
		return pipeline.AudioBlob{}, fmt.Errorf("failed to set speech voice name: %w", err)
	}

	if err := cfg.SetSpeechSynthesisOutputFormat(common.Audio16Khz32KBitRateMonoMp3); err != nil {
		return pipeline.AudioBlob{}, fmt.Errorf("failed to set speech output format: %w", err)
	}

	// A nil audio config makes the SDK return the audio in-memory on the
	// result instead of playing it back.
	speechSynthesizer, err := speech.NewSpeechSynthesizerFromConfig(cfg, nil)
	if err != nil {
		return pipeline.AudioBlob{}, fmt.Errorf("failed to create speech synthesizer: %w", err)
	}
	defer speechSynthesizer.Close()

	select {
	case outcome := <-speechSynthesizer.SpeakTextAsync(text):
		if outcome.Error != nil {
			return pipeline.AudioBlob{}, fmt.Errorf("synthesis failed: %w", outcome.Error)
		}
		defer outcome.Close()

		if outcome.Result.Reason != common.SynthesizingAudioCompleted {
			details, err := speech.NewCancellationDetailsFromSpeechSynthesisResult(outcome.Result)
			if err != nil {
				return pipeline.AudioBlob{}, fmt.Errorf("synthesis did not complete (reason %d)", outcome.Result.Reason)
			}
			return pipeline.AudioBlob{}, fmt.Errorf("synthesis canceled: %s", details.ErrorDetails)
		}

		return pipeline.AudioBlob{
			Data:   outcome.Result.AudioData,
			Format: pipeline.FormatMP3,
		}, nil
	case <-ctx.Done():
		return pipeline.AudioBlob{}, ctx.Err()
	}
}
