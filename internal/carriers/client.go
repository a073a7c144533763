package carriers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Client issues a single authenticated round trip against the carrier API.
// No retries, no backoff: a failed call is reported to the caller, and
// re-attempting is an explicit separate invocation (typically the sync cron).
type Client interface {
	Call(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error)
}

// APIError is a non-2xx carrier response. The raw body is kept verbatim so
// callers can pattern-match it for recoverable conditions.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("carrier API returned status %d: %s", e.StatusCode, e.Body)
}

// Config holds carrier connection settings.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	Enabled  bool
}

// HTTPClient is the production carrier client. Bearer tokens come from the
// injected TokenProvider.
type HTTPClient struct {
	cfg        Config
	tokens     TokenProvider
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewHTTPClient creates a carrier client backed by the given token provider.
func NewHTTPClient(cfg Config, tokens TokenProvider, logger *logrus.Logger) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.WithField("component", "carriers.client"),
	}
}

// Call performs one JSON round trip against the carrier. A non-2xx response
// is returned as *APIError with the raw body retained.
func (c *HTTPClient) Call(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire carrier token: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(payload)
	}

	url := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("Carrier call failed")
		if resp.StatusCode == http.StatusUnauthorized {
			// Stale token; force a re-login on the next call.
			if inv, ok := c.tokens.(interface{ Invalidate(context.Context) }); ok {
				inv.Invalidate(ctx)
			}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	return DecodeResponse(bodyBytes)
}

// DecodeResponse parses a raw carrier body into a generic document. Numbers
// are kept as json.Number so numeric identifiers survive stringification.
// A non-object top level (the carrier occasionally returns bare arrays) is
// wrapped under "data" so path extraction stays uniform.
func DecodeResponse(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if obj, ok := doc.(map[string]interface{}); ok {
		return obj, nil
	}
	return map[string]interface{}{"data": doc}, nil
}
