// Package httpprovider is the default reference router.Provider: it POSTs
// the JSON-encoded ConnectRequest to ARTINET_API_URL and decodes the
// returned ConnectResponse, using pkg/httpclient's exponential-backoff /
// rate-limit-aware retry strategy for transient failures the way the
// bundled LLM providers do.
package httpprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/the-artinet-project/router"
	"github.com/the-artinet-project/router/pkg/httpclient"
)

// StatusError reports a non-2xx HTTP response from the provider endpoint.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpprovider: %s: %s", e.Status, e.Body)
}

// Config configures New. URL defaults to ARTINET_API_URL when empty.
type Config struct {
	URL        string
	AuthHeader string
	AuthToken  string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

type provider struct {
	url    string
	header string
	token  string
	client *httpclient.Client
}

// New builds a router.Provider that round-trips ConnectRequest/ConnectResponse
// as JSON over HTTP POST.
func New(cfg Config) router.Provider {
	url := cfg.URL
	if url == "" {
		url = os.Getenv("ARTINET_API_URL")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}

	p := &provider{
		url:    url,
		header: cfg.AuthHeader,
		token:  cfg.AuthToken,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(maxRetries),
			httpclient.WithBaseDelay(baseDelay),
		),
	}
	return p.do
}

// envelope accepts either a bare ConnectResponse or { "body": ConnectResponse }.
type envelope struct {
	Body *router.ConnectResponse `json:"body"`
}

func (p *provider) do(ctx context.Context, req router.ConnectRequest) (router.ConnectResponse, error) {
	if p.url == "" {
		return router.ConnectResponse{}, fmt.Errorf("httpprovider: no ARTINET_API_URL configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return router.ConnectResponse{}, fmt.Errorf("httpprovider: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return router.ConnectResponse{}, fmt.Errorf("httpprovider: build request: %w", err)
	}
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.header != "" && p.token != "" {
		httpReq.Header.Set(p.header, p.token)
	}

	resp, err := p.client.Do(httpReq)
	// For a non-2xx reply the client returns the response alongside an
	// error; that case falls through to the StatusError below.
	if err != nil && resp == nil {
		return router.ConnectResponse{}, fmt.Errorf("httpprovider: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return router.ConnectResponse{}, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Body != nil {
		return *env.Body, nil
	}

	var out router.ConnectResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return router.ConnectResponse{}, fmt.Errorf("httpprovider: decode response: %w", err)
	}
	return out, nil
}
