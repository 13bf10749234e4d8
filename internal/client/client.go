// Package client provides a Go SDK for talking to the distributed KV
// store. Put and Get are each two HTTP hops: first the controller is
// asked which worker currently holds (or should hold) the key, then the
// actual operation is sent straight to that worker. The client never
// implements placement or replication logic itself — it only does what
// spec.md §6 describes a caller doing.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one controller and, through it, to the worker fleet.
type Client struct {
	controllerURL string
	httpClient    *http.Client
}

// New creates a Client. timeout bounds every individual HTTP call this
// client makes; zero selects a 10s default per spec.md §5's client->worker
// PUT bound.
func New(controllerURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		controllerURL: controllerURL,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = fmt.Errorf("key not found")

// APIError carries the HTTP status and the error message the server sent.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// queryResult mirrors the controller's GET /query response.
type queryResult struct {
	Key             string   `json:"key"`
	PrimaryWorker   string   `json:"primary_worker"`
	PrimaryWorkerID string   `json:"primary_worker_id"`
	Replicas        []string `json:"replicas"`
	ReplicaIDs      []string `json:"replica_ids"`
}

func (c *Client) query(ctx context.Context, key string) (*queryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/query?key=%s", c.controllerURL, key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query controller: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var result queryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PutResult is what Put returns after a successful write.
type PutResult struct {
	Key             string
	ReplicasWritten int
}

// Put queries the controller for key's primary, then writes directly to
// that worker. A successful HTTP 200 means the worker met SyncReplicas. On
// any other status Put returns both a PutResult carrying the body's
// replicas_written count and an *APIError whose Message is the body's
// error string.
func (c *Client) Put(ctx context.Context, key, value string) (*PutResult, error) {
	q, err := c.query(ctx, key)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"key": key, "value": value})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		q.PrimaryWorker+"/put", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("put to %s: %w", q.PrimaryWorker, err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Key             string `json:"key"`
		ReplicasWritten int    `json:"replicas_written"`
		Error           string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode != http.StatusOK {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("replicas_written=%d", decoded.ReplicasWritten)
		}
		return &PutResult{Key: key, ReplicasWritten: decoded.ReplicasWritten},
			&APIError{Status: resp.StatusCode, Message: msg}
	}
	return &PutResult{Key: key, ReplicasWritten: decoded.ReplicasWritten}, nil
}

// Get queries the controller for key's primary, then reads directly from
// that worker.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	q, err := c.query(ctx, key)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/get?key=%s", q.PrimaryWorker, key), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get from %s: %w", q.PrimaryWorker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var decoded struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.Value, nil
}

// Workers returns the controller's GET /workers response, decoded loosely
// since the shape is informational rather than part of the core protocol.
func (c *Client) Workers(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/workers")
}

// Status returns the controller's GET /status response.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/status")
}

func (c *Client) getJSON(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.controllerURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out map[string]any
	return out, json.NewDecoder(resp.Body).Decode(&out)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
