// Package modem defines the capability interface toward the serial-attached
// messaging device and a typed failure taxonomy for its operations. The
// wire-level protocol lives in the modem daemon; this package only talks to
// its RPC surface.
package modem

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a device operation failure. The worker uses it both for the
// failure code recorded on the message and to decide whether the connection
// handle must be discarded.
type Kind int

const (
	KindGeneric Kind = iota
	KindTimeout
	KindDevice
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDevice:
		return "device"
	case KindPermission:
		return "permission"
	default:
		return "generic"
	}
}

// Error is the typed failure returned by every device operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("modem %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, defaulting to KindGeneric.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindGeneric
}

// InboxMessage is one entry of the device inbox.
type InboxMessage struct {
	Sender     string    `json:"sender"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"receivedAt"`
	Folder     int       `json:"folder"`
	Location   int       `json:"location"`
}

// Modem is the device capability surface. The send worker is its only caller.
type Modem interface {
	Send(ctx context.Context, number, text string) error
	ListInbox(ctx context.Context) ([]InboxMessage, error)
	Delete(ctx context.Context, folder, location int) error
	Ping(ctx context.Context) error
}

// Dialer establishes a fresh device handle. The worker invokes it whenever it
// has none, and again after invalidating one.
type Dialer func(ctx context.Context) (Modem, error)
