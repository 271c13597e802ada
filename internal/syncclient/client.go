// Package syncclient is the HTTP client for the aurasync server. It speaks
// the pull/push wire protocol and exposes a generic replay entry point for
// queued offline operations.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AuraTechWave/auraconnectai-sub011/internal/models"
)

// Client is an HTTP client for the aurasync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new sync client.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Wire types (mirrors internal/api, independently defined) ---

// PullRequest asks for every change since the client's watermark.
type PullRequest struct {
	LastPulledAt  int64 `json:"last_pulled_at"`
	SchemaVersion int   `json:"schema_version"`
}

// PullResponse carries the remote deltas and the server timestamp the cursor
// advances to once they are applied.
type PullResponse struct {
	Changes   models.ChangeSet `json:"changes"`
	Timestamp int64            `json:"timestamp"`
}

// PushRequest sends local collection deltas together with the watermark they
// were computed against, so the server can detect divergence.
type PushRequest struct {
	Changes      models.ChangeSet `json:"changes"`
	LastPulledAt int64            `json:"last_pulled_at"`
}

// PushResponse partitions the pushed records per-item.
type PushResponse struct {
	Accepted  []AcceptedItem `json:"accepted,omitempty"`
	Rejected  []RejectedItem `json:"rejected,omitempty"`
	Conflicts []ConflictItem `json:"conflicts,omitempty"`
}

// AcceptedItem confirms one record and carries its server identifier.
type AcceptedItem struct {
	Collection models.Collection `json:"collection"`
	LocalID    string            `json:"local_id"`
	ServerID   string            `json:"server_id"`
}

// RejectedItem explains why one record was refused. Rejections are
// permanent: retrying the same record cannot succeed.
type RejectedItem struct {
	Collection models.Collection `json:"collection"`
	LocalID    string            `json:"local_id"`
	Reason     string            `json:"reason"`
	Code       string            `json:"code,omitempty"`
}

// ConflictItem reports a record changed on both sides since the last pull.
type ConflictItem struct {
	Collection          models.Collection `json:"collection"`
	LocalID             string            `json:"local_id"`
	ServerID            string            `json:"server_id,omitempty"`
	LocalData           json.RawMessage   `json:"local_data"`
	ServerData          json.RawMessage   `json:"server_data"`
	SuggestedResolution string            `json:"suggested_resolution,omitempty"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pull fetches remote deltas since the given cursor.
func (c *Client) Pull(ctx context.Context, req *PullRequest) (*PullResponse, error) {
	var resp PullResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sync/pull", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Push sends local deltas and returns the per-item partition.
func (c *Client) Push(ctx context.Context, req *PushRequest) (*PushResponse, error) {
	var resp PushResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sync/push", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Replay reissues a captured offline request: the original verb against the
// original resource with the original payload. The server applies these
// idempotently, keyed by client identifiers in the payload.
func (c *Client) Replay(ctx context.Context, verb, resource string, payload []byte) error {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, verb, c.BaseURL+resource, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode, nil)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			return classifyStatus(resp.StatusCode, &apiErr)
		}
		return classifyStatus(resp.StatusCode, &apiError{Code: "http_error", Message: string(respBody)})
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// classifyStatus maps an HTTP status into the error taxonomy.
func classifyStatus(status int, apiErr *apiError) error {
	detail := ""
	if apiErr != nil {
		detail = ": " + apiErr.Error()
	}
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w%s", ErrUnauthorized, detail)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d%s", ErrServer, status, detail)
	default:
		return fmt.Errorf("%w: HTTP %d%s", ErrRejected, status, detail)
	}
}
