package modem

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatAndUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("port busy")
	err := &Error{Kind: KindDevice, Op: "send", Err: inner}

	if !errors.Is(err, inner) {
		t.Fatalf("expected errors.Is to see the wrapped error")
	}
	if msg := err.Error(); !strings.Contains(msg, "send") || !strings.Contains(msg, "port busy") {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	if got := KindOf(&Error{Kind: KindPermission, Op: "send", Err: errors.New("denied")}); got != KindPermission {
		t.Fatalf("expected permission kind, got %v", got)
	}

	wrapped := fmt.Errorf("while sending: %w", &Error{Kind: KindTimeout, Op: "send", Err: errors.New("slow")})
	if got := KindOf(wrapped); got != KindTimeout {
		t.Fatalf("expected timeout kind through wrapping, got %v", got)
	}

	if got := KindOf(errors.New("plain")); got != KindGeneric {
		t.Fatalf("expected generic kind for plain errors, got %v", got)
	}
	if got := KindOf(nil); got != KindGeneric {
		t.Fatalf("expected generic kind for nil, got %v", got)
	}
}
