package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"voice-translator/cmd/translator/pipeline"
)

const (
	ttsBaseURLDefault = "https://translate.google.com"

	// The endpoint rejects long inputs, so text is split into chunks of at
	// most this many characters and the resulting MP3 payloads are
	// concatenated (frame streams concatenate cleanly).
	maxChunkLen = 200
)

type SynthesizerConfig struct {
	// BaseURL overrides the TTS endpoint, mainly for tests.
	BaseURL string
}

// Synthesizer renders text to MP3 through the public translate_tts endpoint.
type Synthesizer struct {
	cfg        SynthesizerConfig
	httpClient *http.Client
}

func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ttsBaseURLDefault
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Synthesizer{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: httpTimeoutDefault,
		},
	}
}

// Synthesize implements pipeline.Synthesizer. voiceCode is a two-letter
// language code (e.g. "hi"); the endpoint picks the voice.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceCode string) (pipeline.AudioBlob, error) {
	var audio []byte
	for _, chunk := range splitText(text, maxChunkLen) {
		data, err := s.fetchChunk(ctx, chunk, voiceCode)
		if err != nil {
			return pipeline.AudioBlob{}, err
		}
		audio = append(audio, data...)
	}

	return pipeline.AudioBlob{
		Data:   audio,
		Format: pipeline.FormatMP3,
	}, nil
}

func (s *Synthesizer) fetchChunk(ctx context.Context, text, lang string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)

	reqURL := fmt.Sprintf("%s/translate_tts?%s", s.cfg.BaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return body, nil
}

// splitText breaks text into chunks of at most maxLen runes, preferring to
// split at spaces. Words longer than maxLen are split mid-word.
func splitText(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	words := strings.Fields(text)
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, w := range words {
		wLen := utf8.RuneCountInString(w)

		if wLen > maxLen {
			flush()
			runes := []rune(w)
			for len(runes) > maxLen {
				chunks = append(chunks, string(runes[:maxLen]))
				runes = runes[maxLen:]
			}
			cur.WriteString(string(runes))
			curLen = len(runes)
			continue
		}

		if curLen > 0 && curLen+1+wLen > maxLen {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(w)
		curLen += wLen
	}
	flush()

	return chunks
}
