package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/synaptica-ai/symptomscan/pkg/common/models"
)

// StatusError is a non-2xx answer from the inference service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference service returned %d: %s", e.Code, e.Message)
}

// PredictClient calls a running inference service.
type PredictClient struct {
	baseURL   string
	client    *http.Client
	attempts  int
	baseDelay time.Duration
}

func NewPredictClient(baseURL string, timeout time.Duration, attempts int) *PredictClient {
	return &PredictClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    New(timeout),
		attempts:  attempts,
		baseDelay: 200 * time.Millisecond,
	}
}

// Predict submits symptoms. 4xx answers are returned without retrying.
func (c *PredictClient) Predict(ctx context.Context, symptoms []string) (*models.PredictResponse, error) {
	body, err := json.Marshal(map[string][]string{"symptoms": symptoms})
	if err != nil {
		return nil, err
	}
	var out models.PredictResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/predict", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Symptoms fetches the service's vocabulary.
func (c *PredictClient) Symptoms(ctx context.Context) ([]string, error) {
	var out models.SymptomsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/symptoms", nil, &out); err != nil {
		return nil, err
	}
	return out.Symptoms, nil
}

func (c *PredictClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	return Retry(ctx, c.attempts, c.baseDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			var apiErr models.ErrorResponse
			msg := strings.TrimSpace(string(payload))
			if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
				msg = apiErr.Error
			}
			statusErr := &StatusError{Code: resp.StatusCode, Message: msg}
			if resp.StatusCode < 500 {
				return Permanent(statusErr)
			}
			return statusErr
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}
