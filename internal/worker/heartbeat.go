package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HeartbeatClient sends periodic heartbeats to the controller, per
// spec.md §4.7. Errors are logged and the loop continues — heartbeat loss
// is left to the controller's failure detector to notice, not retried here.
type HeartbeatClient struct {
	workerID      string
	controllerURL string
	interval      time.Duration
	httpClient    *http.Client
	log           zerolog.Logger
}

// NewHeartbeatClient creates a client that will send heartbeats for
// workerID every interval once Run is started.
func NewHeartbeatClient(workerID, controllerURL string, interval time.Duration, log zerolog.Logger) *HeartbeatClient {
	return &HeartbeatClient{
		workerID:      workerID,
		controllerURL: controllerURL,
		interval:      interval,
		httpClient:    &http.Client{Timeout: 2 * time.Second},
		log:           log,
	}
}

// Register performs the one-time POST /register call at start-up.
func (h *HeartbeatClient) Register(ctx context.Context, host string, port int) error {
	payload, err := json.Marshal(map[string]any{
		"worker_id": h.workerID,
		"host":      host,
		"port":      port,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.controllerURL+"/register", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return &httpStatusError{resp.StatusCode}
	}
	return nil
}

// Run blocks, sending a heartbeat every interval until ctx is canceled.
func (h *HeartbeatClient) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.send(ctx); err != nil {
				h.log.Warn().Err(err).Str("worker_id", h.workerID).Msg("heartbeat failed")
			}
		}
	}
}

func (h *HeartbeatClient) send(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"worker_id": h.workerID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.controllerURL+"/heartbeat", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{resp.StatusCode}
	}
	return nil
}

type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP %d %s", e.code, http.StatusText(e.code))
}
