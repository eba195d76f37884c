package choices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

const publishTimeout = 15 * time.Second

// HTTPPublisher pushes the label list to the form provider's update endpoint
// as a single JSON document.
type HTTPPublisher struct {
	url    string
	token  string
	client *http.Client
	logger *logging.Logger
}

// NewHTTPPublisher builds a publisher for the provider endpoint. token may be
// empty when the endpoint is unauthenticated.
func NewHTTPPublisher(url, token string, logger *logging.Logger) *HTTPPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPPublisher{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: publishTimeout},
		logger: logger,
	}
}

type replacePayload struct {
	Choices []string `json:"choices"`
}

// ReplaceAll overwrites the provider's choice list. An empty slice is sent as
// an empty array, clearing the selector.
func (p *HTTPPublisher) ReplaceAll(ctx context.Context, labels []string) error {
	if labels == nil {
		labels = []string{}
	}
	body, err := json.Marshal(replacePayload{Choices: labels})
	if err != nil {
		return fmt.Errorf("choices: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("choices: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("choices: publish: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("choices: publish: status %d: %s", resp.StatusCode, snippet)
	}
	p.logger.Info("choices: list replaced", "count", len(labels))
	return nil
}

var _ Publisher = (*HTTPPublisher)(nil)
