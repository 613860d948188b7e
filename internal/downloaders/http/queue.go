package partgethttp

import (
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v5"
	"github.com/tanq16/partget/internal/utils"
)

type chunkJob struct {
	ID          int
	Range       utils.Range
	Interrupted bool
	Attempts    int
	backoff     *backoff.ExponentialBackOff
}

// jobQueue is a FIFO of chunk jobs with a drain latch. Every put must be
// matched by one done; drained closes when the outstanding count reaches zero.
// Capacity is the chunk count, which is enough because a chunk never has more
// than one live job.
type jobQueue struct {
	jobs        chan *chunkJob
	outstanding atomic.Int64
	drained     chan struct{}
	once        sync.Once
}

func newJobQueue(capacity int) *jobQueue {
	return &jobQueue{
		jobs:    make(chan *chunkJob, capacity),
		drained: make(chan struct{}),
	}
}

func (q *jobQueue) put(job *chunkJob) {
	q.outstanding.Add(1)
	q.jobs <- job
}

func (q *jobQueue) done() {
	if q.outstanding.Add(-1) == 0 {
		q.once.Do(func() { close(q.drained) })
	}
}

func (q *jobQueue) pending() int64 {
	return q.outstanding.Load()
}
