// Package service is the submission and query surface of the gateway: it
// validates, records and enqueues outbound messages, and scopes queries to
// their requester.
package service

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/geekinsanemx/sms-gateway/internal/engine"
	"github.com/geekinsanemx/sms-gateway/internal/model"
	"github.com/geekinsanemx/sms-gateway/internal/phone"
	"github.com/geekinsanemx/sms-gateway/internal/store"
)

// ValidationError rejects a submission synchronously; no record is created.
type ValidationError struct {
	Code   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

const (
	CodeInvalidPhoneNumber = "INVALID_PHONE_NUMBER"
	CodeInvalidTimeout     = "INVALID_TIMEOUT_VALUE"
)

type Config struct {
	ContentMax         int
	DefaultReplyWindow time.Duration
	MaxReplyWindow     time.Duration
}

type Service struct {
	store      *store.Store
	queue      *engine.Queue
	normalizer *phone.Normalizer
	cfg        Config
}

func New(s *store.Store, q *engine.Queue, n *phone.Normalizer, cfg Config) *Service {
	return &Service{store: s, queue: q, normalizer: n, cfg: cfg}
}

type SubmitRequest struct {
	Number        string
	Body          string
	Requester     string
	ClientIP      string
	RequiresReply bool
	// WindowSeconds of nil means "use the default"; only meaningful when
	// RequiresReply is set.
	WindowSeconds *int
}

// Submit validates the request, creates the record as queued and hands the
// job to the worker. Enqueue always succeeds once validation passes.
func (s *Service) Submit(req SubmitRequest) (model.Message, error) {
	window := s.cfg.DefaultReplyWindow
	if req.RequiresReply && req.WindowSeconds != nil {
		w := time.Duration(*req.WindowSeconds) * time.Second
		if w < time.Second || w > s.cfg.MaxReplyWindow {
			return model.Message{}, &ValidationError{
				Code:   CodeInvalidTimeout,
				Detail: fmt.Sprintf("timeout must be between 1 and %d seconds", int(s.cfg.MaxReplyWindow/time.Second)),
			}
		}
		window = w
	}

	normalized, err := s.normalizer.ValidateAndNormalize(req.Number)
	if err != nil {
		return model.Message{}, &ValidationError{
			Code:   CodeInvalidPhoneNumber,
			Detail: err.Error(),
		}
	}

	body := req.Body
	var annotations model.Annotations
	if utf8.RuneCountInString(body) > s.cfg.ContentMax {
		runes := []rune(body)
		body = string(runes[:s.cfg.ContentMax])
		annotations = model.Annotations{
			"truncated":       true,
			"original_length": len(runes),
			"sent_length":     s.cfg.ContentMax,
		}
	}

	m := model.Message{
		ID:             uuid.NewString(),
		OriginalNumber: req.Number,
		ToNumber:       normalized,
		Body:           body,
		Requester:      req.Requester,
		ClientIP:       req.ClientIP,
		Status:         model.StatusQueued,
		CreatedAt:      time.Now().UTC(),
		RequiresReply:  req.RequiresReply,
		Annotations:    annotations,
	}
	if req.RequiresReply {
		m.ReplyWindow = window
	}

	created := s.store.Create(m)
	s.queue.Enqueue(engine.Job{
		MessageID: created.ID,
		Number:    created.ToNumber,
		Body:      created.Body,
	})

	slog.Info("message queued",
		"message_id", created.ID,
		"to", created.ToNumber,
		"requester", created.Requester,
		"reply_expected", created.RequiresReply,
	)
	return created, nil
}

// Query returns the record only to its requester; anything else looks like
// absence.
func (s *Service) Query(id, requester string) (model.Message, bool) {
	m, ok := s.store.Get(id)
	if !ok || m.Requester != requester {
		return model.Message{}, false
	}
	return m, true
}

// QueueDepth is surfaced by the health endpoint.
func (s *Service) QueueDepth() int {
	return s.queue.Len()
}
