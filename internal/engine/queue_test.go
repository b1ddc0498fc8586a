package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	q.Enqueue(Job{MessageID: "a"})
	q.Enqueue(Job{MessageID: "b"})
	q.Enqueue(Job{MessageID: "c"})

	for _, want := range []string{"a", "b", "c"} {
		j, ok := q.Dequeue(10 * time.Millisecond)
		if !ok {
			t.Fatalf("expected job %q, queue reported empty", want)
		}
		if j.MessageID != want {
			t.Fatalf("expected job %q, got %q", want, j.MessageID)
		}
	}

	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len %d", q.Len())
	}
}

func TestQueue_DequeueEmptyTimesOut(t *testing.T) {
	t.Parallel()

	q := NewQueue()

	start := time.Now()
	_, ok := q.Dequeue(30 * time.Millisecond)
	if ok {
		t.Fatalf("expected empty dequeue to report false")
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("expected dequeue to wait close to the deadline, waited %v", elapsed)
	}
}

func TestQueue_DequeueWakesOnEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(Job{MessageID: "late"})
	}()

	j, ok := q.Dequeue(time.Second)
	if !ok {
		t.Fatalf("expected dequeue to pick up the late job")
	}
	if j.MessageID != "late" {
		t.Fatalf("expected job %q, got %q", "late", j.MessageID)
	}
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(Job{MessageID: fmt.Sprintf("m%d", i)})
		}(i)
	}
	wg.Wait()

	if q.Len() != n {
		t.Fatalf("expected %d queued jobs, got %d", n, q.Len())
	}

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		j, ok := q.Dequeue(10 * time.Millisecond)
		if !ok {
			t.Fatalf("queue ran dry after %d jobs", i)
		}
		if seen[j.MessageID] {
			t.Fatalf("job %q dequeued twice", j.MessageID)
		}
		seen[j.MessageID] = true
	}
}
