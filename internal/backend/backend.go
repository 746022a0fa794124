// Package backend holds the JSON/HTTP clients for the two upstream
// services: the analysis back-end that manages capture sources and the
// recognition back-end that owns face libraries and matching.
//
// Every call POSTs a JSON body to <base>/<method> and decodes a JSON
// response carrying {code, msg, ...payload}. code != 0 is a logical
// failure and surfaces as *APIError.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Status is the envelope every back-end response starts with.
type Status struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// APIError is a logical back-end failure (code != 0).
type APIError struct {
	Method string
	Code   int64
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: code %d, msg %q", e.Method, e.Code, e.Msg)
}

func (s Status) err(method string) error {
	if s.Code != 0 {
		return &APIError{Method: method, Code: s.Code, Msg: s.Msg}
	}
	return nil
}

type client struct {
	base string
	hc   *http.Client
}

func newClient(base string, timeout time.Duration) client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return client{
		base: base,
		hc:   &http.Client{Timeout: timeout},
	}
}

// post sends req as JSON to <base>/<method> and decodes the body into
// out. Transport and decode errors are wrapped with the method name.
func (c *client) post(ctx context.Context, method string, req, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("backend %s: marshal request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend %s: create request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend %s: http status %d", method, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("backend %s: parse response: %w", method, err)
	}
	return nil
}
