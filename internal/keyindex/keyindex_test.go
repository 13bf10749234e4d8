package keyindex

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordRequiresSlot(t *testing.T) {
	idx := New()
	idx.Record("user:1", []string{"worker_1", "worker_2"})
	assert.Empty(t, idx.Snapshot("worker_1"))
}

func TestEnsureWorkerThenRecord(t *testing.T) {
	idx := New()
	idx.EnsureWorker("worker_1")
	idx.EnsureWorker("worker_2")

	idx.Record("user:1", []string{"worker_1", "worker_2"})
	idx.Record("user:2", []string{"worker_1"})

	got := idx.Snapshot("worker_1")
	sort.Strings(got)
	assert.Equal(t, []string{"user:1", "user:2"}, got)
	assert.Equal(t, []string{"user:1"}, idx.Snapshot("worker_2"))
}

func TestRecordIdempotent(t *testing.T) {
	idx := New()
	idx.EnsureWorker("worker_1")
	idx.Record("k", []string{"worker_1"})
	idx.Record("k", []string{"worker_1"})
	assert.Equal(t, []string{"k"}, idx.Snapshot("worker_1"))
}

func TestEntriesNeverPruned(t *testing.T) {
	idx := New()
	idx.EnsureWorker("worker_1")
	idx.Record("k", []string{"worker_1"})
	// No Remove/Prune method exists by design — recovery moving a key
	// elsewhere does not erase the stale entry here.
	assert.Equal(t, []string{"k"}, idx.Snapshot("worker_1"))
}
