// Package httpinfer calls the sign-recognition inference sidecar over HTTP.
// The sidecar owns the landmark extraction and sequence model; this adapter
// only carries video bytes in and a prediction out.
package httpinfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/port"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type inferResponse struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

func (c *Client) Infer(ctx context.Context, video []byte) (domain.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", bytes.NewReader(video))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "video/mp4")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("read inference response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return domain.Prediction{}, fmt.Errorf("inference returned status %d: %s", resp.StatusCode, raw)
	}

	var out inferResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Prediction{}, fmt.Errorf("decode inference response: %w", err)
	}
	if out.Action == "" {
		return domain.Prediction{}, fmt.Errorf("inference returned empty action")
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return domain.Prediction{}, fmt.Errorf("inference returned confidence %v out of range", out.Confidence)
	}

	return domain.Prediction{Action: out.Action, Confidence: out.Confidence}, nil
}

var _ port.Recognizer = (*Client)(nil)
