package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient talks to a LibreTranslate-compatible /translate endpoint.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPClient returns a client for endpoint, e.g.
// "http://localhost:5000/translate". A non-positive timeout selects 5s.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate implements Translator. On failure the original text is
// returned together with the error.
func (c *HTTPClient) Translate(ctx context.Context, text, target string) (string, error) {
	if text == "" {
		return text, nil
	}

	body, err := json.Marshal(libreRequest{
		Q:      text,
		Source: "auto",
		Target: BaseLanguage(target),
		Format: "text",
		APIKey: c.apiKey,
	})
	if err != nil {
		return text, fmt.Errorf("translate: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return text, fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return text, fmt.Errorf("translate: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return text, fmt.Errorf("translate: read response: %w", err)
	}

	var out libreResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return text, fmt.Errorf("translate: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return text, fmt.Errorf("translate: status %d: %s", resp.StatusCode, out.Error)
	}
	if out.TranslatedText == "" {
		return text, fmt.Errorf("translate: empty translation")
	}
	return out.TranslatedText, nil
}
