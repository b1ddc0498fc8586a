package engine

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/geekinsanemx/sms-gateway/internal/model"
	"github.com/geekinsanemx/sms-gateway/internal/modem"
	"github.com/geekinsanemx/sms-gateway/internal/phone"
	"github.com/geekinsanemx/sms-gateway/internal/store"
)

var firstDigitsRe = regexp.MustCompile(`\d+`)

// Correlator attributes an inbound inbox item to the outstanding message that
// caused it. The device gives no correlation id, so matching is by normalized
// sender, service-number heuristics, and the reply window.
type Correlator struct {
	store      *store.Store
	normalizer *phone.Normalizer

	// Balance replies arrive from the operator, not from the queried number,
	// so they are recognized by a marker token instead. Recharge confirmations
	// echo back the device number embedded in the outbound body.
	balanceNumber  string
	balanceMarker  string
	rechargeNumber string
}

func NewCorrelator(s *store.Store, n *phone.Normalizer, balanceNumber, balanceMarker, rechargeNumber string) *Correlator {
	return &Correlator{
		store:          s,
		normalizer:     n,
		balanceNumber:  balanceNumber,
		balanceMarker:  strings.ToLower(balanceMarker),
		rechargeNumber: rechargeNumber,
	}
}

// Apply matches item against the outstanding records and, on a match,
// transitions the winner to replied. It returns the matched record (as a
// copy) and whether a match happened. The whole scan-and-update runs in one
// store pass so the sweeper can never race it for the same record.
func (c *Correlator) Apply(item modem.InboxMessage) (model.Message, bool) {
	if item.Sender == "" {
		return model.Message{}, false
	}

	receivedAt := item.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	var (
		matched model.Message
		found   bool
	)

	c.store.Scan(func(records map[string]*model.Message) {
		var best *model.Message

		for _, rec := range records {
			if !rec.RequiresReply || rec.Status != model.StatusSent || rec.SentAt == nil {
				continue
			}
			if !c.candidate(rec, item) {
				continue
			}

			// The reply must arrive strictly after the send and within the window.
			deadline := rec.SentAt.Add(rec.ReplyWindow)
			if !receivedAt.After(*rec.SentAt) || receivedAt.After(deadline) {
				continue
			}

			// Latest-sent wins. Preserved from the original service even
			// though it can attribute a reply to a newer outstanding request.
			if best == nil || rec.SentAt.After(*best.SentAt) {
				best = rec
			}
		}

		if best == nil {
			return
		}

		elapsed := int64(receivedAt.Sub(*best.SentAt) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}

		text := item.Text
		at := receivedAt
		best.Status = model.StatusReplied
		best.ReplyText = &text
		best.ReplyAt = &at
		best.ElapsedSeconds = &elapsed
		best.FailureCode = ""
		best.FailureDetail = ""

		matched = best.Clone()
		found = true
	})

	if found {
		slog.Info("reply matched",
			"message_id", matched.ID,
			"sender", item.Sender,
			"requester", matched.Requester,
			"elapsed_seconds", *matched.ElapsedSeconds,
		)
	}
	return matched, found
}

func (c *Correlator) candidate(rec *model.Message, item modem.InboxMessage) bool {
	if rec.ToNumber == c.balanceNumber && c.balanceMarker != "" &&
		strings.Contains(strings.ToLower(item.Text), c.balanceMarker) {
		return true
	}

	if rec.ToNumber == c.rechargeNumber {
		if token := firstDigitsRe.FindString(rec.Body); token != "" && strings.Contains(item.Text, token) {
			return true
		}
	}

	return c.normalizer.Match(rec.ToNumber, item.Sender)
}
