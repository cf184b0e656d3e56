package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"singlish-bot/model"
)

const maxBody = 64 << 10

var ErrMalformed = fmt.Errorf("%w: malformed prediction", model.ErrDependencyUnavailable)

// Prediction is a validated provider answer.
type Prediction struct {
	Response   string
	Intent     string
	Confidence float64
}

// Validate accepts a raw provider answer only when every field is present
// and the confidence lies within [0,1].
func Validate(raw model.PredictResponse) (Prediction, error) {
	switch {
	case raw.Response == nil || strings.TrimSpace(*raw.Response) == "":
		return Prediction{}, fmt.Errorf("%w: response missing", ErrMalformed)
	case raw.Intent == nil || strings.TrimSpace(*raw.Intent) == "":
		return Prediction{}, fmt.Errorf("%w: intent missing", ErrMalformed)
	case raw.Confidence == nil:
		return Prediction{}, fmt.Errorf("%w: confidence missing", ErrMalformed)
	}
	c := *raw.Confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return Prediction{}, fmt.Errorf("%w: confidence %v out of range", ErrMalformed, c)
	}
	return Prediction{
		Response:   *raw.Response,
		Intent:     strings.TrimSpace(*raw.Intent),
		Confidence: c,
	}, nil
}

// Client calls the scored-intent HTTP service.
type Client struct {
	baseURL string
	apiKey  string
	httpCli *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpCli: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Predict(ctx context.Context, req model.PredictRequest) (Prediction, error) {
	bs, err := json.Marshal(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("encode predict request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(bs))
	if err != nil {
		return Prediction{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpCli.Do(httpReq)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", model.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: read body: %v", model.ErrDependencyUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Prediction{}, fmt.Errorf("%w: provider status %d", model.ErrDependencyUnavailable, resp.StatusCode)
	}

	var raw model.PredictResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Prediction{}, fmt.Errorf("%w: field %s has wrong type", ErrMalformed, typeErr.Field)
		}
		return Prediction{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Validate(raw)
}
