package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geekinsanemx/sms-gateway/internal/cache"
	"github.com/geekinsanemx/sms-gateway/internal/model"
	"github.com/geekinsanemx/sms-gateway/internal/modem"
	"github.com/geekinsanemx/sms-gateway/internal/store"
)

type WorkerConfig struct {
	// QueueWait bounds how long one loop iteration blocks waiting for a job.
	QueueWait time.Duration
	// PollInterval is the cadence of the device inbox poll.
	PollInterval time.Duration
}

// Worker is the single consumer of the queue and the single owner of the
// device handle; no other component invokes device operations. The handle
// field is only ever touched from the worker goroutine.
type Worker struct {
	store      *store.Store
	queue      *Queue
	dial       modem.Dialer
	correlator *Correlator
	outcomes   cache.OutcomeLog
	cfg        WorkerConfig

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	handle       modem.Modem
	inboxCleared bool
}

func NewWorker(s *store.Store, q *Queue, dial modem.Dialer, c *Correlator, outcomes cache.OutcomeLog, cfg WorkerConfig) *Worker {
	if cfg.QueueWait <= 0 {
		cfg.QueueWait = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Worker{
		store:      s,
		queue:      q,
		dial:       dial,
		correlator: c,
		outcomes:   outcomes,
		cfg:        cfg,
		done:       make(chan struct{}),
	}
}

func (w *Worker) Start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running.Store(true)

	go w.run(ctx)
	return true
}

// Stop signals the worker and waits for it to drain the queue and exit.
func (w *Worker) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return false
	}

	w.cancel()
	<-w.done
	w.running.Store(false)
	return true
}

func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	// Cancellation is cooperative: in-flight device calls are never cut off,
	// and the queue is drained before exiting.
	opCtx := context.WithoutCancel(ctx)

	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()

	slog.Info("send worker started",
		"queue_wait", w.cfg.QueueWait.String(),
		"poll_interval", w.cfg.PollInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			if w.queue.Len() == 0 {
				slog.Info("send worker stopped")
				return
			}
		default:
		}

		if job, ok := w.queue.Dequeue(w.cfg.QueueWait); ok {
			w.process(opCtx, job)
		}

		select {
		case <-poll.C:
			w.pollInbox(opCtx)
		default:
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	m := w.acquire(ctx)
	if m == nil {
		// Failed before any send attempt: no sent_at.
		w.finish(ctx, job.MessageID, func(rec *model.Message) {
			rec.Status = model.StatusFailed
			rec.FailureCode = model.FailureModemUnavailable
			rec.FailureDetail = "could not establish connection to modem"
		})
		return
	}

	err := m.Send(ctx, job.Number, job.Body)
	now := time.Now().UTC()

	if err != nil {
		kind := modem.KindOf(err)
		w.finish(ctx, job.MessageID, func(rec *model.Message) {
			rec.Status = model.StatusFailed
			rec.SentAt = &now
			rec.FailureCode = failureCode(kind)
			rec.FailureDetail = err.Error()
		})
		slog.Warn("send failed",
			"message_id", job.MessageID,
			"to", job.Number,
			"kind", kind.String(),
			"error", err,
		)
		if kind == modem.KindDevice || kind == modem.KindPermission {
			w.handle = nil
		}
		return
	}

	updated, ok := w.store.Update(job.MessageID, func(rec *model.Message) {
		rec.Status = model.StatusSent
		rec.SentAt = &now
	})
	if !ok {
		return
	}
	slog.Info("message sent",
		"message_id", updated.ID,
		"to", updated.ToNumber,
		"requester", updated.Requester,
		"reply_expected", updated.RequiresReply,
	)
	w.record(ctx, updated)
}

func (w *Worker) pollInbox(ctx context.Context) {
	m := w.acquire(ctx)
	if m == nil {
		return
	}

	items, err := m.ListInbox(ctx)
	if err != nil {
		slog.Warn("inbox poll failed", "error", err)
		w.handle = nil
		return
	}

	for _, item := range items {
		rec, ok := w.correlator.Apply(item)
		if !ok {
			continue
		}
		w.record(ctx, rec)

		// Best effort: a delete failure is logged, the match stands.
		if err := m.Delete(ctx, item.Folder, item.Location); err != nil {
			slog.Warn("failed to delete matched inbox item",
				"folder", item.Folder,
				"location", item.Location,
				"error", err,
			)
		}
	}
}

// acquire returns a live device handle, probing the existing one and dialing
// a fresh one when needed. Returns nil when the device is unavailable.
func (w *Worker) acquire(ctx context.Context) modem.Modem {
	if w.handle != nil {
		err := w.handle.Ping(ctx)
		if err == nil {
			return w.handle
		}
		slog.Warn("modem liveness probe failed, reconnecting", "error", err)
		w.handle = nil
	}

	m, err := w.dial(ctx)
	if err != nil {
		slog.Warn("modem dial failed", "error", err)
		return nil
	}
	w.handle = m

	if !w.inboxCleared {
		w.clearInbox(ctx, m)
		w.inboxCleared = true
	}
	return m
}

// clearInbox drops whatever the device accumulated before we started, so
// stale messages can never be correlated to fresh sends.
func (w *Worker) clearInbox(ctx context.Context, m modem.Modem) {
	items, err := m.ListInbox(ctx)
	if err != nil {
		slog.Warn("startup inbox listing failed", "error", err)
		return
	}
	for _, item := range items {
		if err := m.Delete(ctx, item.Folder, item.Location); err != nil {
			slog.Warn("startup inbox delete failed", "location", item.Location, "error", err)
		}
	}
	if len(items) > 0 {
		slog.Info("inbox cleared", "count", len(items))
	}
}

func (w *Worker) finish(ctx context.Context, id string, mutate func(*model.Message)) {
	updated, ok := w.store.Update(id, mutate)
	if !ok {
		return
	}
	w.record(ctx, updated)
}

func (w *Worker) record(ctx context.Context, m model.Message) {
	if w.outcomes == nil {
		return
	}
	if err := w.outcomes.Record(ctx, m); err != nil {
		slog.Warn("outcome log write failed", "message_id", m.ID, "error", err)
	}
}

func failureCode(k modem.Kind) model.FailureCode {
	switch k {
	case modem.KindTimeout:
		return model.FailureModemTimeout
	case modem.KindDevice:
		return model.FailureModemDevice
	case modem.KindPermission:
		return model.FailureModemPermission
	default:
		return model.FailureSend
	}
}
