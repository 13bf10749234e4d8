package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RecoveryOutcome classifies how one key's recovery attempt ended.
type RecoveryOutcome string

const (
	OutcomeHealed        RecoveryOutcome = "healed"        // already has enough live copies
	OutcomeRecovered     RecoveryOutcome = "recovered"      // successfully re-replicated to a new home
	OutcomeUnrecoverable RecoveryOutcome = "unrecoverable" // no source copy, no spare worker, or the push to the new home failed
)

// RecoveryReport summarizes one failed-worker recovery pass.
type RecoveryReport struct {
	Worker    string
	TotalKeys int
	Outcomes  map[RecoveryOutcome]int
}

func newRecoveryReport(worker string, total int) RecoveryReport {
	return RecoveryReport{
		Worker:    worker,
		TotalKeys: total,
		Outcomes:  make(map[RecoveryOutcome]int),
	}
}

func (r *RecoveryReport) record(o RecoveryOutcome) {
	r.Outcomes[o]++
}

// Recover runs the full re-replication procedure for one failed worker:
// every key it is believed to have held (snapshotted from the key index)
// is checked and, if needed, pushed to a new home. Recovery is best-effort
// and per-key independent — one key's failure never aborts the pass. The
// global lock is never held across outbound I/O.
func (c *Coordinator) Recover(ctx context.Context, failedID string) RecoveryReport {
	keysToRecover := c.keys.Snapshot(failedID)
	report := newRecoveryReport(failedID, len(keysToRecover))

	c.log.Info().Str("worker", failedID).Int("keys", len(keysToRecover)).Msg("starting re-replication")

	for _, key := range keysToRecover {
		outcome := c.recoverKey(ctx, key, failedID)
		report.record(outcome)
		if c.metrics != nil {
			c.metrics.RecoveryKeysTotal.WithLabelValues(string(outcome)).Inc()
		}
	}

	c.log.Info().
		Str("worker", failedID).
		Interface("outcomes", report.Outcomes).
		Msg("re-replication complete")
	return report
}

// recoverKey implements spec.md §4.5 steps 1-6 for a single key.
func (c *Coordinator) recoverKey(ctx context.Context, key, failedID string) RecoveryOutcome {
	c.globalMu.Lock()
	target := c.ring.GetReplicas(key, c.cfg.ReplicationFactor)
	active := c.registry.GetActiveWorkers()
	c.globalMu.Unlock()

	survivors := without(target, failedID)

	// Step 2: locate a surviving copy, walking target\{failed} in ring order.
	sourceValue, found := c.findSourceCopy(ctx, key, survivors)
	if !found {
		c.log.Warn().Str("key", key).Msg("no surviving copy found, key is lost")
		return OutcomeUnrecoverable
	}

	// Step 4: count how many survivors currently hold the value.
	count := c.countHolders(ctx, key, survivors)
	if count >= c.cfg.ReplicationFactor-1 {
		return OutcomeHealed
	}

	// Step 5: pick the first active id not already in target.
	newHome := firstNotIn(active, target)
	if newHome == "" {
		c.log.Warn().Str("key", key).Msg("no spare worker available for recovery")
		return OutcomeUnrecoverable
	}

	// Step 6: push the value to its new home.
	url, ok := c.workerURL(newHome)
	if !ok {
		return OutcomeUnrecoverable
	}
	if err := c.pushReplicate(ctx, url, key, sourceValue); err != nil {
		c.log.Warn().Err(err).Str("key", key).Str("new_home", newHome).Msg("re-replicate failed")
		return OutcomeUnrecoverable
	}

	c.globalMu.Lock()
	c.keys.Record(key, []string{newHome})
	c.globalMu.Unlock()

	c.log.Info().Str("key", key).Str("new_home", newHome).Msg("key re-replicated")
	return OutcomeRecovered
}

func (c *Coordinator) findSourceCopy(ctx context.Context, key string, candidates []string) (string, bool) {
	for _, id := range candidates {
		url, ok := c.workerURL(id)
		if !ok {
			continue
		}
		if value, ok := c.probeGet(ctx, url, key); ok {
			return value, true
		}
	}
	return "", false
}

func (c *Coordinator) countHolders(ctx context.Context, key string, candidates []string) int {
	count := 0
	for _, id := range candidates {
		url, ok := c.workerURL(id)
		if !ok {
			continue
		}
		if _, ok := c.probeGet(ctx, url, key); ok {
			count++
		}
	}
	return count
}

// probeGet fetches key from a worker with a bounded timeout. Network
// failures and 404s both resolve to (``, false) — the caller can't tell
// "down" from "doesn't have it", which is fine: either way it isn't a
// usable source.
func (c *Coordinator) probeGet(ctx context.Context, workerURL, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/get?key=%s", workerURL, key), nil)
	if err != nil {
		return "", false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false
	}
	return body.Value, true
}

// pushReplicate sends key/value to a worker's /replicate endpoint.
func (c *Coordinator) pushReplicate(ctx context.Context, workerURL, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"key": key, "value": value})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		workerURL+"/replicate", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("worker returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

func firstNotIn(candidates, exclude []string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	for _, id := range candidates {
		if !excluded[id] {
			return id
		}
	}
	return ""
}
