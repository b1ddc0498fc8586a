package model

import "time"

type Status string

const (
	StatusQueued  Status = "queued"
	StatusSent    Status = "sent"
	StatusReplied Status = "replied"
	StatusTimeout Status = "timeout"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusReplied || s == StatusTimeout || s == StatusFailed
}

// FailureCode is the machine-readable reason a message ended up failed.
type FailureCode string

const (
	FailureModemUnavailable FailureCode = "MODEM_NOT_AVAILABLE"
	FailureModemTimeout     FailureCode = "MODEM_TIMEOUT"
	FailureModemDevice      FailureCode = "MODEM_DEVICE_ERROR"
	FailureModemPermission  FailureCode = "MODEM_PERMISSION_ERROR"
	FailureSend             FailureCode = "SEND_FAILED"
)

// Annotations carries side-channel metadata attached at submit time (for
// example truncation warnings). The engine never inspects it.
type Annotations map[string]any

// Message is the unit of work and of client-visible state.
type Message struct {
	ID string

	// OriginalNumber is the destination exactly as submitted; ToNumber is the
	// canonical form used for modem I/O and reply matching.
	OriginalNumber string
	ToNumber       string

	Body      string
	Requester string
	ClientIP  string

	Status    Status
	CreatedAt time.Time
	SentAt    *time.Time

	RequiresReply bool
	ReplyWindow   time.Duration

	ReplyText      *string
	ReplyAt        *time.Time
	ElapsedSeconds *int64

	FailureCode   FailureCode
	FailureDetail string

	Annotations Annotations
}

// Clone returns a deep copy so callers can never alias store-held state.
func (m Message) Clone() Message {
	c := m
	if m.SentAt != nil {
		t := *m.SentAt
		c.SentAt = &t
	}
	if m.ReplyText != nil {
		s := *m.ReplyText
		c.ReplyText = &s
	}
	if m.ReplyAt != nil {
		t := *m.ReplyAt
		c.ReplyAt = &t
	}
	if m.ElapsedSeconds != nil {
		v := *m.ElapsedSeconds
		c.ElapsedSeconds = &v
	}
	if m.Annotations != nil {
		c.Annotations = make(Annotations, len(m.Annotations))
		for k, v := range m.Annotations {
			c.Annotations[k] = v
		}
	}
	return c
}
