// Package sender delivers rendered messages over SMS (Twilio) and WhatsApp (Graph API).
package sender

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 512

// client is the shared outbound HTTP plumbing of both providers.
type client struct {
	baseURL    string
	httpClient *http.Client
}

func newClient(baseURL string) client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// post sends body to path and treats any non-2xx answer as an error carrying the provider's reply.
func (c client) post(ctx context.Context, path string, body io.Reader, decorate func(*http.Request)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("provider answered %d: %s", resp.StatusCode, strings.TrimSpace(string(reply)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
