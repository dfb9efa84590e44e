// Package prediction provides the HTTP client for the external model
// serving endpoint. The core only sees the prediction.Engine interface.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emsgrid/dispatchd/core/prediction"
	"github.com/emsgrid/dispatchd/infra/logger"
)

// Config configures the model serving client.
type Config struct {
	// URL is the base URL of the serving endpoint.
	URL string `json:"url"`
	// TimeoutSeconds bounds each HTTP call.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies the production defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
}

// HTTPClient calls a model serving endpoint over HTTP. It implements
// prediction.Engine.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	log     logger.Logger
}

// NewHTTPClient creates a client for the given endpoint.
func NewHTTPClient(cfg Config) *HTTPClient {
	cfg.SetDefaults()
	return &HTTPClient{
		baseURL: cfg.URL,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:     logger.New("prediction-client"),
	}
}

// Predict requests a single prediction.
func (c *HTTPClient) Predict(ctx context.Context, f prediction.Features) (prediction.Result, error) {
	var res prediction.Result
	if err := c.post(ctx, "/predict", f, &res); err != nil {
		return prediction.Result{}, err
	}
	return res, nil
}

// PredictBatch requests predictions for several feature vectors in one call.
func (c *HTTPClient) PredictBatch(ctx context.Context, fs []prediction.Features) ([]prediction.Result, error) {
	var res []prediction.Result
	if err := c.post(ctx, "/predict/batch", fs, &res); err != nil {
		return nil, err
	}
	if len(res) != len(fs) {
		return nil, fmt.Errorf("prediction: batch size mismatch: sent %d, received %d", len(fs), len(res))
	}
	return res, nil
}

// Healthy reports whether the serving endpoint answers its health probe.
func (c *HTTPClient) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnf("health probe failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("prediction: failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("prediction: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("prediction: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("prediction: unexpected status %d: %s", resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("prediction: failed to decode response: %w", err)
	}
	return nil
}
