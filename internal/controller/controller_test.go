package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"distributed-kvstore/internal/registry"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ReplicationFactor: 3,
		SyncReplicas:      2,
		HeartbeatInterval: 50 * time.Millisecond,
		HeartbeatTimeout:  150 * time.Millisecond,
		VirtualNodes:      32,
	}
}

func newTestCoordinator() *Coordinator {
	return New(testConfig(), zerolog.Nop(), nil)
}

func TestRegisterIsIdempotentAndAddsToRing(t *testing.T) {
	c := newTestCoordinator()
	w := c.Register("worker_1", "localhost", 6001)
	assert.Equal(t, "http://localhost:6001", w.URL)
	assert.Equal(t, 1, c.ring.WorkerCount())

	c.Register("worker_1", "localhost", 6001)
	assert.Equal(t, 1, c.ring.WorkerCount())
}

func TestHeartbeatUnknownWorker(t *testing.T) {
	c := newTestCoordinator()
	err := c.Heartbeat("ghost")
	assert.ErrorIs(t, err, registry.ErrUnknownWorker)
}

func TestQueryNoWorkers(t *testing.T) {
	c := newTestCoordinator()
	_, err := c.Query("some-key")
	assert.ErrorIs(t, err, ErrNoWorkers)
}

func TestQueryReturnsPrimaryAndReplicasAndRecordsKeyIndex(t *testing.T) {
	c := newTestCoordinator()
	c.Register("worker_1", "host1", 6001)
	c.Register("worker_2", "host2", 6002)
	c.Register("worker_3", "host3", 6003)

	result, err := c.Query("user:42")
	require.NoError(t, err)
	assert.Len(t, result.ReplicaIDs, 3)
	assert.Equal(t, result.ReplicaIDs[0], result.PrimaryID)
	assert.Equal(t, result.ReplicaURLs[0], result.PrimaryURL)

	for _, id := range result.ReplicaIDs {
		assert.Contains(t, c.keys.Snapshot(id), "user:42")
	}
}

func TestNotifyPutOnlyRecordsKnownWorkers(t *testing.T) {
	c := newTestCoordinator()
	c.Register("worker_1", "host1", 6001)

	c.NotifyPut("k", []string{"worker_1", "worker_ghost"})
	assert.Equal(t, []string{"k"}, c.keys.Snapshot("worker_1"))
	assert.Empty(t, c.keys.Snapshot("worker_ghost"))
}

func TestStatusCountsActiveAndFailed(t *testing.T) {
	c := newTestCoordinator()
	c.Register("worker_1", "host1", 6001)
	c.Register("worker_2", "host2", 6002)

	st := c.Status()
	assert.Equal(t, 2, st.TotalWorkers)
	assert.Equal(t, 2, st.ActiveWorkers)
	assert.Equal(t, 3, st.ReplicationFactor)
}

func TestFailureDetectorFlipsStaleWorkers(t *testing.T) {
	c := newTestCoordinator()
	c.Register("worker_1", "host1", 6001)

	c.globalMu.Lock()
	failed := c.registry.CheckFailed(time.Now().Add(time.Hour), c.cfg.HeartbeatTimeout)
	c.globalMu.Unlock()

	require.Len(t, failed, 1)
	assert.Equal(t, "worker_1", failed[0])
}

// fakeWorker serves /get and /replicate backed by a plain map, standing in
// for a worker process during recovery tests.
type fakeWorker struct {
	srv  *httptest.Server
	data map[string]string
}

func newFakeWorker(initial map[string]string) *fakeWorker {
	fw := &fakeWorker{data: make(map[string]string)}
	for k, v := range initial {
		fw.data[k] = v
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/get", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		v, ok := fw.data[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"value": v})
	})
	mux.HandleFunc("/replicate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fw.data[body["key"]] = body["value"]
		w.WriteHeader(http.StatusOK)
	})
	fw.srv = httptest.NewServer(mux)
	return fw
}

func (fw *fakeWorker) Close() { fw.srv.Close() }

func registerFake(t *testing.T, c *Coordinator, id string, fw *fakeWorker) {
	t.Helper()
	u, err := url.Parse(fw.srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	c.Register(id, u.Hostname(), port)
}

// recoveryFixture registers four fake workers with replication factor 3,
// then asks the real ring which three of them hold "k1" so the test can set
// up fakes that match what the coordinator will actually compute, instead
// of guessing at hash placement.
type recoveryFixture struct {
	coord     *Coordinator
	fakes     map[string]*fakeWorker
	failed    string
	survivors []string
	spare     string
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()
	cfg := testConfig()
	cfg.ReplicationFactor = 3
	c := New(cfg, zerolog.Nop(), nil)

	ids := []string{"w1", "w2", "w3", "w4"}
	fakes := make(map[string]*fakeWorker, len(ids))
	for _, id := range ids {
		fw := newFakeWorker(nil)
		fakes[id] = fw
		registerFake(t, c, id, fw)
	}

	c.globalMu.Lock()
	target := c.ring.GetReplicas("k1", 3)
	c.globalMu.Unlock()
	require.Len(t, target, 3)

	var spare string
	for _, id := range ids {
		if !contains(target, id) {
			spare = id
		}
	}
	require.NotEmpty(t, spare)

	return &recoveryFixture{
		coord:     c,
		fakes:     fakes,
		failed:    target[0],
		survivors: target[1:],
		spare:     spare,
	}
}

func (f *recoveryFixture) Close() {
	for _, fw := range f.fakes {
		fw.Close()
	}
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestRecoverPushesKeyToNewHomeWhenUnderReplicated(t *testing.T) {
	f := newRecoveryFixture(t)
	defer f.Close()

	// Only one of the two survivors actually has the value — the write's
	// sync fan-out reached it but not the other, leaving the key below
	// ReplicationFactor-1 surviving copies.
	f.fakes[f.survivors[0]].data["k1"] = "v1"

	f.coord.keys.Record("k1", []string{f.failed, f.survivors[0], f.survivors[1]})

	report := f.coord.Recover(context.Background(), f.failed)
	require.Equal(t, 1, report.TotalKeys)
	assert.Equal(t, 1, report.Outcomes[OutcomeRecovered])
	assert.Equal(t, "v1", f.fakes[f.spare].data["k1"])
}

func TestRecoverReportsHealedWhenEnoughSurvivorsHoldIt(t *testing.T) {
	f := newRecoveryFixture(t)
	defer f.Close()

	// Both survivors already have a copy: ReplicationFactor-1 = 2 copies
	// survive the failure, so no new placement is needed.
	f.fakes[f.survivors[0]].data["k1"] = "v1"
	f.fakes[f.survivors[1]].data["k1"] = "v1"

	f.coord.keys.Record("k1", []string{f.failed, f.survivors[0], f.survivors[1]})

	report := f.coord.Recover(context.Background(), f.failed)
	assert.Equal(t, 1, report.Outcomes[OutcomeHealed])
	assert.Empty(t, f.fakes[f.spare].data["k1"])
}

func TestRecoverReportsUnrecoverableWhenNoSurvivorHasTheKey(t *testing.T) {
	f := newRecoveryFixture(t)
	defer f.Close()

	f.coord.keys.Record("lost-key", []string{f.failed, f.survivors[0], f.survivors[1]})

	report := f.coord.Recover(context.Background(), f.failed)
	assert.Equal(t, 1, report.Outcomes[OutcomeUnrecoverable])
}
