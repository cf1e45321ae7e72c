package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient is the timeout-bounded client shared by the HTTP-based
// notifier backends. A short client-side timeout matters more here than
// retry: Sink.send already treats a failed delivery as a log line, not a
// queued retry, so a hung dial would otherwise stall the handler that
// triggered the alert.
func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// postJSON marshals body, POSTs it to url with the given headers, and
// treats any non-2xx response as an error. It drains and discards the
// response body so the underlying connection can be reused.
func postJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: dispatch request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: remote returned status %d", resp.StatusCode)
	}
	return nil
}
