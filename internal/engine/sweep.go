package engine

import (
	"log/slog"
	"time"

	"github.com/geekinsanemx/sms-gateway/internal/model"
	"github.com/geekinsanemx/sms-gateway/internal/store"
)

// SweepTimeouts demotes every outstanding record whose reply window has
// elapsed to timeout and returns copies of the records it transitioned.
// Idempotent: timeout is terminal, a swept record is never revisited.
func SweepTimeouts(s *store.Store, now time.Time) []model.Message {
	var swept []model.Message

	s.Scan(func(records map[string]*model.Message) {
		for _, rec := range records {
			if !rec.RequiresReply || rec.Status != model.StatusSent || rec.SentAt == nil {
				continue
			}
			deadline := rec.SentAt.Add(rec.ReplyWindow)
			if !now.After(deadline) {
				continue
			}

			elapsed := int64(now.Sub(*rec.SentAt) / time.Second)
			if window := int64(rec.ReplyWindow / time.Second); elapsed < window {
				elapsed = window
			}

			rec.Status = model.StatusTimeout
			rec.ElapsedSeconds = &elapsed
			rec.ReplyText = nil
			rec.ReplyAt = nil

			swept = append(swept, rec.Clone())
		}
	})

	for _, m := range swept {
		slog.Info("reply timeout",
			"message_id", m.ID,
			"to", m.ToNumber,
			"requester", m.Requester,
			"window", m.ReplyWindow.String(),
		)
	}
	return swept
}

// CleanExpired hard-deletes every record older than retention, regardless of
// status. A non-positive retention disables cleaning entirely.
func CleanExpired(s *store.Store, retention time.Duration, now time.Time) int {
	if retention <= 0 {
		return 0
	}

	cutoff := now.Add(-retention)
	var expired []model.Message

	s.Scan(func(records map[string]*model.Message) {
		for id, rec := range records {
			if rec.CreatedAt.Before(cutoff) {
				expired = append(expired, rec.Clone())
				delete(records, id)
			}
		}
	})

	for _, m := range expired {
		slog.Info("record expired",
			"message_id", m.ID,
			"status", string(m.Status),
			"age", now.Sub(m.CreatedAt).String(),
		)
	}
	return len(expired)
}
