package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/getmockd/mockd-statsd/pkg/admin"
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// APIError is an error reported by the admin API or by the transport.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// adminClient talks to a running admin API.
type adminClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAdminClient(baseURL string) *adminClient {
	return &adminClient{
		baseURL: baseURL,
		// Verification may block up to admin.MaxVerifyTimeout.
		httpClient: &http.Client{Timeout: admin.MaxVerifyTimeout + 5*time.Second},
	}
}

func (c *adminClient) verify(ctx context.Context, req admin.VerifyRequest) (statsd.Result, error) {
	var res statsd.Result
	err := c.do(ctx, http.MethodPost, "/verify", req, &res)
	return res, err
}

func (c *adminClient) records(ctx context.Context, name, typ string) (admin.RecordListResponse, error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if typ != "" {
		q.Set("type", typ)
	}
	path := "/records"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out admin.RecordListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *adminClient) reset(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/records", nil, nil)
}

// do performs an HTTP request and decodes a 2xx JSON body into out.
func (c *adminClient) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{
			ErrorCode: "connection_error",
			Message:   fmt.Sprintf("cannot connect to admin API at %s: %v", c.baseURL, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return parseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseError parses an error response from the API.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp admin.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorCode:  errResp.Error,
			Message:    errResp.Message,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		ErrorCode:  "unknown_error",
		Message:    fmt.Sprintf("server returned status %d: %s", resp.StatusCode, string(body)),
	}
}

// formatConnectionError returns a user-friendly message for connection failures.
func formatConnectionError(err error) error {
	if apiErr, ok := err.(*APIError); ok && apiErr.ErrorCode == "connection_error" {
		return fmt.Errorf(`%s

Suggestions:
  • Start the server with the admin API: mockd-statsd serve --admin
  • Check the --admin-url flag or MOCKD_STATSD_ADMIN_PORT`, apiErr.Message)
	}
	return err
}
