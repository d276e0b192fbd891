package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
)

// Wire labels used by the predictor service
const (
	labelReal     = "Real"
	labelDeepfake = "Deepfake"
)

// Predictor service API structures
type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Label               string  `json:"label"`
	Confidence          float64 `json:"confidence"`
	DeepfakeProbability float64 `json:"deepfake_probability"`
	RealProbability     float64 `json:"real_probability"`
}

// Client talks to the external authenticity predictor service. The adapter
// never fails an analysis: a nil prediction is the degraded signal for
// unavailable, timed out, or unparseable responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	available  atomic.Bool
}

// NewClient creates a predictor client. An empty BaseURL leaves the adapter
// permanently disabled.
func NewClient(cfg model.ClassifierConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "classifier").Logger(),
	}
}

// Enabled reports whether a predictor endpoint is configured
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Probe checks the predictor's health endpoint and records the outcome.
// Called once at startup; an unreachable service disables the adapter for
// the life of the process.
func (c *Client) Probe(ctx context.Context) bool {
	if c.baseURL == "" {
		c.logger.Info().Msg("secondary classifier not configured")
		return false
	}

	url := fmt.Sprintf("%s/health", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("classifier health probe failed, adapter disabled")
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", c.baseURL).Msg("classifier unreachable, adapter disabled")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("classifier health probe rejected, adapter disabled")
		return false
	}

	c.available.Store(true)
	c.logger.Info().Str("url", c.baseURL).Msg("secondary classifier available")
	return true
}

// Predict runs the text authenticity classifier. Nil means no prediction;
// the caller blends without the secondary signal.
func (c *Client) Predict(ctx context.Context, text string) *model.SecondaryPrediction {
	if !c.available.Load() {
		return nil
	}

	body, err := json.Marshal(predictRequest{Text: text})
	if err != nil {
		c.logger.Warn().Err(err).Msg("secondary prediction failed, continuing without it")
		return nil
	}

	pred, err := c.post(ctx, "/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		c.logger.Warn().Err(err).Msg("secondary prediction failed, continuing without it")
		return nil
	}

	return c.mapPrediction(pred)
}

// PredictImage runs the image authenticity classifier on raw image bytes
func (c *Client) PredictImage(ctx context.Context, filename string, data []byte) *model.SecondaryPrediction {
	if !c.available.Load() {
		return nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		c.logger.Warn().Err(err).Msg("image prediction failed, continuing without it")
		return nil
	}
	if _, err := part.Write(data); err != nil {
		c.logger.Warn().Err(err).Msg("image prediction failed, continuing without it")
		return nil
	}
	if err := w.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("image prediction failed, continuing without it")
		return nil
	}

	pred, err := c.post(ctx, "/predict/image", w.FormDataContentType(), &buf)
	if err != nil {
		c.logger.Warn().Err(err).Str("filename", filename).Msg("image prediction failed, continuing without it")
		return nil
	}

	return c.mapPrediction(pred)
}

// post sends one request to the predictor API
func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*predictResponse, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Detail != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Detail)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var pred predictResponse
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &pred, nil
}

// mapPrediction converts the wire labels into the model vocabulary
func (c *Client) mapPrediction(p *predictResponse) *model.SecondaryPrediction {
	var label model.PredictionLabel
	switch p.Label {
	case labelReal:
		label = model.LabelReal
	case labelDeepfake:
		label = model.LabelFake
	default:
		c.logger.Warn().Str("label", p.Label).Msg("unknown prediction label, ignoring prediction")
		return nil
	}

	return &model.SecondaryPrediction{
		Label:           label,
		Confidence:      p.Confidence,
		RealProbability: p.RealProbability,
		FakeProbability: p.DeepfakeProbability,
	}
}
