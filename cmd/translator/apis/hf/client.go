// Package hf implements speech recognition and neural translation backends
// on top of a Hugging Face style inference endpoint.
package hf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-translator/cmd/translator/pipeline"
)

const (
	asrModelDefault      = "openai/whisper-small"
	translationModelTmpl = "Helsinki-NLP/opus-mt-%s-%s"
	clientTimeoutDefault = 60 * time.Second
)

type Config struct {
	// BaseURL is the inference endpoint root, e.g.
	// "https://api-inference.huggingface.co".
	BaseURL string
	// Token is sent as a Bearer credential when set.
	Token string
	// ASRModel overrides the default speech recognition model.
	ASRModel string
}

func (c Config) IsValid() error {
	if c.BaseURL == "" {
		return fmt.Errorf("invalid BaseURL: should not be empty")
	}
	return nil
}

// Client calls hosted inference models. One round-trip per stage call, no
// internal retries: a loading or rate-limited model surfaces as a failed
// attempt so the chain can move on.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.ASRModel == "" {
		cfg.ASRModel = asrModelDefault
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: clientTimeoutDefault,
		},
	}, nil
}

type errorResponse struct {
	Error         string   `json:"error"`
	EstimatedTime *float64 `json:"estimated_time,omitempty"`
}

// Recognize implements pipeline.Recognizer. The hosted whisper models are
// multilingual and detect the spoken language themselves; langCode is kept
// for the registry's mapping contract but not sent.
func (c *Client) Recognize(ctx context.Context, audio pipeline.AudioBlob, _ string) (string, error) {
	url := fmt.Sprintf("%s/models/%s", c.cfg.BaseURL, c.cfg.ASRModel)
	body, err := c.post(ctx, url, audio.Format.MimeType(), audio.Data)
	if err != nil {
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return out.Text, nil
}

// Translate implements pipeline.Translator through per-pair opus-mt models.
func (c *Client) Translate(ctx context.Context, text, srcCode, dstCode string) (string, error) {
	model := fmt.Sprintf(translationModelTmpl, srcCode, dstCode)
	payload, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.cfg.BaseURL, model)
	body, err := c.post(ctx, url, "application/json", payload)
	if err != nil {
		return "", err
	}

	var out []struct {
		TranslationText string `json:"translation_text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("unexpected empty response")
	}

	return out[0].TranslationText, nil
}

func (c *Client) post(ctx context.Context, url, contentType string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			if er.EstimatedTime != nil {
				return nil, fmt.Errorf("request failed with status %d: %s (model loading, estimated %.0fs)",
					resp.StatusCode, er.Error, *er.EstimatedTime)
			}
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, er.Error)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return body, nil
}
