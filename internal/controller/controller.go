// Package controller implements the coordinator: the request handlers for
// register/heartbeat/query/notify_put, the failure detector, and the
// re-replicator. It owns the single global lock that guards the registry,
// the hash ring and the key index together — see spec.md §5 for why that
// lock must never be held across outbound I/O.
package controller

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"distributed-kvstore/internal/keyindex"
	"distributed-kvstore/internal/metrics"
	"distributed-kvstore/internal/registry"
	"distributed-kvstore/internal/ring"

	"github.com/rs/zerolog"
)

// ErrNoWorkers is returned by Query when the ring is empty.
var ErrNoWorkers = errors.New("no workers available")

// Config bundles the tunables a Coordinator needs.
type Config struct {
	ReplicationFactor int
	SyncReplicas      int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	VirtualNodes      int
}

// Coordinator owns cluster metadata: membership, the placement ring and the
// key index. globalMu is the single lock spec.md §4.3/§5 calls for — every
// exported method below acquires it only for the in-memory portion of its
// work and releases it before any outbound HTTP call.
type Coordinator struct {
	globalMu sync.Mutex

	registry *registry.Registry
	ring     *ring.Ring
	keys     *keyindex.Index

	cfg Config

	httpClient *http.Client
	log        zerolog.Logger
	metrics    *metrics.Controller
}

// New creates a Coordinator with empty membership.
func New(cfg Config, log zerolog.Logger, m *metrics.Controller) *Coordinator {
	return &Coordinator{
		registry:   registry.New(),
		ring:       ring.New(cfg.VirtualNodes),
		keys:       keyindex.New(),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
		metrics:    m,
	}
}

// Register adds or refreshes a worker. The registry update, ring insertion
// and key-index slot creation happen atomically under the global lock, per
// spec.md §4.2.
func (c *Coordinator) Register(id, host string, port int) registry.Worker {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	w := c.registry.Register(id, host, port, time.Now())
	c.ring.AddWorker(id)
	c.keys.EnsureWorker(id)
	c.observeWorkerCounts()
	return w
}

// Heartbeat refreshes liveness for id. Returns registry.ErrUnknownWorker if
// id was never registered.
func (c *Coordinator) Heartbeat(id string) error {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	err := c.registry.UpdateHeartbeat(id, time.Now())
	c.observeWorkerCounts()
	return err
}

// QueryResult is what Query hands back to an HTTP caller.
type QueryResult struct {
	Key         string
	PrimaryURL  string
	PrimaryID   string
	ReplicaURLs []string
	ReplicaIDs  []string
}

// Query resolves the replica set for key, drops any replica whose URL is
// missing (defensive — should not happen for a worker the ring knows
// about), and records the key against every surviving replica in the key
// index, all under the global lock. It returns ErrNoWorkers if the ring is
// empty.
func (c *Coordinator) Query(key string) (QueryResult, error) {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	if c.metrics != nil {
		c.metrics.QueriesTotal.Inc()
	}

	ids := c.ring.GetReplicas(key, c.cfg.ReplicationFactor)
	if len(ids) == 0 {
		return QueryResult{}, ErrNoWorkers
	}

	result := QueryResult{Key: key}
	for _, id := range ids {
		url, ok := c.registry.GetWorkerURL(id)
		if !ok {
			continue
		}
		result.ReplicaIDs = append(result.ReplicaIDs, id)
		result.ReplicaURLs = append(result.ReplicaURLs, url)
	}
	if len(result.ReplicaIDs) == 0 {
		return QueryResult{}, ErrNoWorkers
	}

	result.PrimaryID = result.ReplicaIDs[0]
	result.PrimaryURL = result.ReplicaURLs[0]

	c.keys.Record(key, result.ReplicaIDs)
	return result, nil
}

// NotifyPut records key against every id in replicas that has a key-index
// slot. Idempotent, always succeeds for well-formed input.
func (c *Coordinator) NotifyPut(key string, replicas []string) {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	c.keys.Record(key, replicas)
}

// Workers returns every registered worker's record.
func (c *Coordinator) Workers() []registry.Worker {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	return c.registry.GetAllWorkers()
}

// Status is the /status response payload's data.
type Status struct {
	TotalWorkers      int
	ActiveWorkers     int
	ReplicationFactor int
	HeartbeatTimeout  time.Duration
}

// Status summarizes current membership and configured parameters.
func (c *Coordinator) Status() Status {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	all := c.registry.GetAllWorkers()
	active := 0
	for _, w := range all {
		if w.Status == registry.StatusActive {
			active++
		}
	}
	return Status{
		TotalWorkers:      len(all),
		ActiveWorkers:     active,
		ReplicationFactor: c.cfg.ReplicationFactor,
		HeartbeatTimeout:  c.cfg.HeartbeatTimeout,
	}
}

// observeWorkerCounts updates the workers-by-status gauge. Called with
// globalMu already held; cheap, in-memory only.
func (c *Coordinator) observeWorkerCounts() {
	if c.metrics == nil {
		return
	}
	active, failed := 0, 0
	for _, w := range c.registry.GetAllWorkers() {
		if w.Status == registry.StatusActive {
			active++
		} else {
			failed++
		}
	}
	c.metrics.WorkersTotal.WithLabelValues(string(registry.StatusActive)).Set(float64(active))
	c.metrics.WorkersTotal.WithLabelValues(string(registry.StatusFailed)).Set(float64(failed))
}

// workerURL is a pure reader, safe to call without the global lock.
func (c *Coordinator) workerURL(id string) (string, bool) {
	return c.registry.GetWorkerURL(id)
}
