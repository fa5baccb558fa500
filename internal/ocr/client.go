// Package ocr is the HTTP client for the OCR collaborator, a tesseract-style
// sidecar exposing a single text-extraction endpoint. Failures are expected
// and non-fatal to callers.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the OCR sidecar.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates an OCR client for the given endpoint.
func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type response struct {
	Text string `json:"text"`
}

// ExtractText posts image bytes to the sidecar and returns the recognized
// text. The caller bounds the call with its context; errors mean no text.
func (c *Client) ExtractText(ctx context.Context, imageBytes []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/v1/extract", bytes.NewReader(imageBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr error %d: %s", resp.StatusCode, string(body))
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return out.Text, nil
}
