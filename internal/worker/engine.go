package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"distributed-kvstore/internal/metrics"

	"github.com/rs/zerolog"
)

// Config bundles the tunables one Engine needs.
type Config struct {
	SelfID        string
	SelfURL       string
	ControllerURL string
	SyncReplicas  int
}

// Engine implements spec.md §4.6: local put/get/replicate plus the
// synchronous fan-out a put performs against the worker's current replica
// set. It holds no lock of its own beyond Storage's — replication happens
// entirely after the local write releases that lock.
type Engine struct {
	cfg        Config
	storage    *Storage
	httpClient *http.Client
	log        zerolog.Logger
	metrics    *metrics.Worker
}

// New creates an Engine over storage.
func New(cfg Config, storage *Storage, log zerolog.Logger, m *metrics.Worker) *Engine {
	return &Engine{
		cfg:        cfg,
		storage:    storage,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
		metrics:    m,
	}
}

// queryResponse mirrors the controller's GET /query JSON body.
type queryResponse struct {
	Key             string   `json:"key"`
	PrimaryWorker   string   `json:"primary_worker"`
	PrimaryWorkerID string   `json:"primary_worker_id"`
	Replicas        []string `json:"replicas"`
	ReplicaIDs      []string `json:"replica_ids"`
}

// Put implements the five steps of spec.md §4.6's put: local write, a fresh
// controller query, sequential replicate fan-out to every peer, and a
// quorum check against SyncReplicas. The local write is never rolled back
// regardless of how the fan-out goes.
func (e *Engine) Put(ctx context.Context, key, value string) (written int, err error) {
	e.storage.Put(key, value)

	peers, queryErr := e.queryPeers(ctx, key)
	written = 1 // self
	if queryErr != nil {
		e.log.Warn().Err(queryErr).Str("key", key).Msg("could not contact controller for replica list")
	} else {
		for _, peerURL := range peers {
			if peerURL == e.cfg.SelfURL {
				continue
			}
			if e.pushReplicate(ctx, peerURL, key, value) {
				written++
			}
		}
	}

	outcome := "quorum_met"
	if written < e.cfg.SyncReplicas {
		outcome = "quorum_not_met"
	}
	if e.metrics != nil {
		e.metrics.PutsTotal.WithLabelValues(outcome).Inc()
		e.metrics.KeysGauge.Set(float64(e.storage.Len()))
	}

	if written < e.cfg.SyncReplicas {
		return written, fmt.Errorf("only %d replicas written, need %d", written, e.cfg.SyncReplicas)
	}
	return written, nil
}

// Get returns the local value for key.
func (e *Engine) Get(key string) (string, bool) {
	value, ok := e.storage.Get(key)
	outcome := "hit"
	if !ok {
		outcome = "miss"
	}
	if e.metrics != nil {
		e.metrics.GetsTotal.WithLabelValues(outcome).Inc()
	}
	return value, ok
}

// Replicate is the unconditional local write a peer primary pushes here.
// No quorum logic on the receiving side.
func (e *Engine) Replicate(key, value string) {
	e.storage.Put(key, value)
	if e.metrics != nil {
		e.metrics.ReplicateTotal.Inc()
		e.metrics.KeysGauge.Set(float64(e.storage.Len()))
	}
}

// NumKeys reports the local key count, for /status.
func (e *Engine) NumKeys() int {
	return e.storage.Len()
}

func (e *Engine) queryPeers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/query?key=%s", e.cfg.ControllerURL, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("controller query returned HTTP %d", resp.StatusCode)
	}
	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Replicas, nil
}

func (e *Engine) pushReplicate(ctx context.Context, peerURL, key, value string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"key": key, "value": value})
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peerURL+"/replicate",
		bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.log.Warn().Err(err).Str("peer", peerURL).Str("key", key).Msg("replicate call failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
