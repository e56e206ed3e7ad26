package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("render: embed unavailable")

// EmbedEZ verifies links against the EmbedEZ combined provider endpoint.
type EmbedEZ struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ Verifier = (*EmbedEZ)(nil)

func NewEmbedEZ(endpoint, apiKey string, timeout time.Duration) *EmbedEZ {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &EmbedEZ{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		client:   &http.Client{Timeout: timeout},
	}
}

// Verify succeeds on any 2xx response.
func (c *EmbedEZ) Verify(ctx context.Context, fixedURL string) error {
	u, err := url.Parse(c.endpoint)
	if err != nil || c.endpoint == "" {
		return fmt.Errorf("embedez endpoint %q: %w", c.endpoint, ErrUnavailable)
	}
	q := u.Query()
	q.Set("q", fixedURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedez request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: embedez status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
