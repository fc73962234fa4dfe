// Package notify posts a plain-text webhook when the work loop stops.
// ntfy.sh is the usual target, but any endpoint accepting a POST body works.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// requestTimeout bounds each attempt.
const requestTimeout = 10 * time.Second

// Notifier posts messages to a single webhook URL. The zero URL disables it.
type Notifier struct {
	url    string
	title  string
	client *retryablehttp.Client
}

// New creates a Notifier. title is sent as the X-Title header; retryMax is
// how many times a failed attempt is repeated.
func New(url, title string, retryMax int) *Notifier {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.HTTPClient.Timeout = requestTimeout
	client.Logger = nil // suppress retryablehttp's default logging
	return &Notifier{url: url, title: title, client: client}
}

// Enabled reports whether a URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Send posts message. It is a no-op when the notifier is disabled. A
// response outside 2xx after retries is an error.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if !n.Enabled() {
		return nil
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	if n.title != "" {
		req.Header.Set("X-Title", n.title)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post notification: unexpected status %s", resp.Status)
	}
	return nil
}
