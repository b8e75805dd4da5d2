// Package http provides the HTTP clients of the checkout backends: the
// session-creation endpoint and the lead-creation endpoint.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	checkout "github.com/aprskavec/stripe-framer"
)

// DefaultTimeout bounds every backend call
const DefaultTimeout = 10 * time.Second

// errTimedOut is the cancellation cause installed by the client-side timeout
var errTimedOut = errors.New("backend request timed out")

// postJSON sends body to url and returns the status and raw response body.
// Transport failures are mapped to the checkout error taxonomy; the caller
// decides what a non-2xx status means.
func postJSON(ctx context.Context, client *http.Client, timeout time.Duration, url string, body interface{}) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, checkout.WrapError(checkout.ErrKindValidation, "failed to marshal request", err)
	}

	reqCtx, cancel := context.WithTimeoutCause(ctx, timeout, errTimedOut)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, checkout.WrapError(checkout.ErrKindNetwork, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, transportError(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, transportError(ctx, reqCtx, err)
	}
	return resp.StatusCode, data, nil
}

// transportError classifies a failed round trip
func transportError(parent, reqCtx context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return checkout.ErrCancelled
	}
	if errors.Is(context.Cause(reqCtx), errTimedOut) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return checkout.WrapError(checkout.ErrKindTimeout, "request timed out", err)
	}
	return checkout.WrapError(checkout.ErrKindNetwork, "network error", err)
}

// statusError reports a non-2xx response
func statusError(kind checkout.ErrorKind, status int, body []byte) error {
	return checkout.NewCheckoutError(kind, fmt.Sprintf("unexpected status %d", status), map[string]interface{}{
		"status": status,
		"body":   string(body),
	})
}

func resolveClient(client *http.Client) *http.Client {
	if client == nil {
		return http.DefaultClient
	}
	return client
}

func resolveTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
