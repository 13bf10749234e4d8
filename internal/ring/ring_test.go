package ring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReplicasEmptyRing(t *testing.T) {
	r := New(150)
	assert.Nil(t, r.GetReplicas("anykey", 3))
}

func TestAddWorkerPlacesExactlyVirtualNodes(t *testing.T) {
	r := New(150)
	r.AddWorker("worker_1")
	assert.Equal(t, 150, r.PositionsFor("worker_1"))
	assert.Equal(t, 1, r.WorkerCount())
}

func TestGetReplicasDistinctAndBounded(t *testing.T) {
	r := New(50)
	for _, id := range []string{"worker_1", "worker_2", "worker_3", "worker_4"} {
		r.AddWorker(id)
	}

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key_%d", i)
		replicas := r.GetReplicas(key, 3)
		require.Len(t, replicas, 3)

		seen := make(map[string]bool)
		for _, id := range replicas {
			assert.False(t, seen[id], "duplicate replica id returned")
			seen[id] = true
		}
	}
}

func TestGetReplicasCappedByWorkerCount(t *testing.T) {
	r := New(50)
	r.AddWorker("worker_1")
	r.AddWorker("worker_2")

	replicas := r.GetReplicas("somekey", 5)
	assert.Len(t, replicas, 2)
}

func TestGetReplicasDeterministic(t *testing.T) {
	r := New(100)
	for _, id := range []string{"a", "b", "c"} {
		r.AddWorker(id)
	}

	first := r.GetReplicas("stable-key", 3)
	second := r.GetReplicas("stable-key", 3)
	assert.Equal(t, first, second)
}

func TestRemoveWorkerTakesItOffTheRing(t *testing.T) {
	r := New(50)
	r.AddWorker("worker_1")
	r.AddWorker("worker_2")
	r.AddWorker("worker_3")

	r.RemoveWorker("worker_2")
	assert.Equal(t, 2, r.WorkerCount())
	assert.Equal(t, 0, r.PositionsFor("worker_2"))

	for i := 0; i < 30; i++ {
		replicas := r.GetReplicas(fmt.Sprintf("k%d", i), 3)
		for _, id := range replicas {
			assert.NotEqual(t, "worker_2", id)
		}
	}
}

func TestAddWorkerIdempotent(t *testing.T) {
	r := New(150)
	r.AddWorker("worker_1")
	before := r.GetReplicas("some-key", 1)
	r.AddWorker("worker_1")
	after := r.GetReplicas("some-key", 1)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, r.WorkerCount())
}
