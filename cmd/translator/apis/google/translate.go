// Package google implements the unauthenticated Google translation and
// text-to-speech web endpoints as pipeline backends.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	translateBaseURLDefault = "https://translate.googleapis.com"
	httpTimeoutDefault      = 30 * time.Second
)

type TranslatorConfig struct {
	// BaseURL overrides the translation endpoint, mainly for tests.
	BaseURL string
}

// Translator translates text through the public translate endpoint. The
// zero-dependency web API is what the original service used; it needs no
// credentials but can rate-limit, which is why it's typically paired with a
// fallback in the chain.
type Translator struct {
	cfg        TranslatorConfig
	httpClient *http.Client
}

func NewTranslator(cfg TranslatorConfig) *Translator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = translateBaseURLDefault
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Translator{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: httpTimeoutDefault,
		},
	}
}

// Translate implements pipeline.Translator. srcCode and dstCode are
// two-letter codes (e.g. "hi", "en").
func (t *Translator) Translate(ctx context.Context, text, srcCode, dstCode string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", srcCode)
	q.Set("tl", dstCode)
	q.Set("dt", "t")
	q.Set("q", text)

	reqURL := fmt.Sprintf("%s/translate_a/single?%s", t.cfg.BaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return parseTranslateResponse(body)
}

// parseTranslateResponse unpacks the endpoint's nested-array payload:
// [[["translated","original",...],...],...]. Long inputs come back split
// into multiple sentence chunks that need to be joined.
func parseTranslateResponse(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("unexpected empty response")
	}

	var sentences [][]json.RawMessage
	if err := json.Unmarshal(payload[0], &sentences); err != nil {
		return "", fmt.Errorf("failed to unmarshal sentences: %w", err)
	}

	var sb strings.Builder
	for _, sentence := range sentences {
		if len(sentence) == 0 {
			continue
		}
		var chunk string
		if err := json.Unmarshal(sentence[0], &chunk); err != nil {
			return "", fmt.Errorf("failed to unmarshal sentence chunk: %w", err)
		}
		sb.WriteString(chunk)
	}

	return sb.String(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
