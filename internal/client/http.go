package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/stats"
)

// HTTPClient implements EventsClient using the eventdesk HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ EventsClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Events ---

func (c *HTTPClient) Submit(ctx context.Context, ev *model.Event) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events", ev, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var ev model.Event
	if err := c.doJSON(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(id), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *HTTPClient) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error) {
	q := url.Values{}
	if req.Status != "" {
		q.Set("status", req.Status)
	}
	if req.OrderID != "" {
		q.Set("order_id", req.OrderID)
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Integration != "" {
		q.Set("integration", req.Integration)
	}
	if !req.After.IsZero() {
		q.Set("after", req.After.UTC().Format(time.RFC3339))
	}
	if !req.Before.IsZero() {
		q.Set("before", req.Before.UTC().Format(time.RFC3339))
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Transitions ---

func (c *HTTPClient) Reprocess(ctx context.Context, id string) (*model.Event, error) {
	var ev model.Event
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(id)+"/reprocess", nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *HTTPClient) Retry(ctx context.Context, req *model.RetryRequest) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(req.EventID)+"/retry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Republish(ctx context.Context, id string) (*model.RetryMessage, error) {
	var msg model.RetryMessage
	if err := c.doJSON(ctx, http.MethodPost, "/v1/events/"+url.PathEscape(id)+"/republish", nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// --- Stats ---

func (c *HTTPClient) Stats(ctx context.Context) (*stats.Snapshot, error) {
	var snap stats.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) IntegrationSummary(ctx context.Context) (map[string]int, error) {
	summary := map[string]int{}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats/integrations", nil, &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// --- Stream ---

func (c *HTTPClient) Stream(ctx context.Context, topics []string, fn func(StreamEvent) error) error {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 8<<20)
	var cur StreamEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			cur.ID = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			cur.Topic = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			cur.Data = []byte(strings.TrimPrefix(line, "data:"))
		case line == "":
			if cur.Topic != "" || len(cur.Data) > 0 {
				if err := fn(cur); err != nil {
					return err
				}
			}
			cur = StreamEvent{}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Kind       model.ErrorKind
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func apiError(status int, body []byte) *APIError {
	var errResp struct {
		Error string          `json:"error"`
		Kind  model.ErrorKind `json:"kind"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Kind: errResp.Kind, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
