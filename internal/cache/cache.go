package cache

import (
	"context"

	"github.com/geekinsanemx/sms-gateway/internal/model"
)

// OutcomeLog keeps a queryable trail of message outcomes outside the live
// store. The in-memory store stays authoritative; this is observability only.
type OutcomeLog interface {
	Record(ctx context.Context, m model.Message) error
}
