package engine

import (
	"sync"
	"time"
)

// Job is the hand-off between the submission path and the worker. The record
// itself stays in the store; the job only carries what the send needs.
type Job struct {
	MessageID string
	Number    string
	Body      string
}

// Queue is an unbounded FIFO. Enqueue never blocks the submitter; Dequeue
// waits a bounded interval for work. There is deliberately no backpressure: a
// persistently unavailable modem lets jobs accumulate (see DESIGN.md).
type Queue struct {
	mu     sync.Mutex
	jobs   []Job
	signal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

func (q *Queue) Enqueue(j Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue pops the oldest job, waiting up to wait when the queue is empty.
// Absence of a job is not an error; the second return is false.
func (q *Queue) Dequeue(wait time.Duration) (Job, bool) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			j := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return j, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
			// Re-check; the signal is a wakeup hint, not a claim.
		case <-deadline.C:
			return Job{}, false
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
