// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the external-service
// clients. Requests are executed once: failures are classified into
// apierr kinds and returned, never retried.
package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/citation-engine/internal/apierr"
)

// maxErrorBody bounds how much of a failed response body is kept for the error.
const maxErrorBody = 4096

// CallContext derives a context bounded by the per-call timeout. A
// non-positive timeout leaves the parent deadline in charge.
func CallContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// Do executes req and returns the response when the status is 2xx. Any
// other status is drained, closed, and returned as an *apierr.ServiceError.
// Transport failures and expired deadlines are classified the same way.
func Do(ctx context.Context, client *http.Client, req *http.Request, service, op string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, apierr.FromTransport(service, op, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, apierr.FromStatus(service, op, resp.StatusCode, string(body))
}

// GetJSON issues a GET with the given headers and decodes a JSON body into v.
// A body that does not decode is reported as apierr.ErrParse.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, service, op string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, val := range headers {
		if val != "" {
			req.Header.Set(k, val)
		}
	}

	resp, err := Do(ctx, client, req, service, op)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s %s: %w: %v", service, op, apierr.ErrParse, err)
	}
	return nil
}
