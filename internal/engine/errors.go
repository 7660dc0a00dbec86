package engine

import (
	"errors"
	"fmt"

	"github.com/iliyamo/train-ticket-market/internal/ledger"
)

// Kind classifies engine failures.  The transport layer maps kinds onto the
// closed error unions of each operation; internally every kind stays
// distinct so logs and tests can tell them apart.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidState
	KindInventoryExhausted
	KindCancellationExpired
	KindInsufficientFunds
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindInventoryExhausted:
		return "inventory_exhausted"
	case KindCancellationExpired:
		return "cancellation_expired"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error carries a kind plus a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// E builds an engine error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from any error.  Ledger sentinels are translated
// to their engine kinds; anything unrecognized is KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ledger.ErrTicketNotFound):
		return KindNotFound
	case errors.Is(err, ledger.ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ledger.ErrCancellationExpired):
		return KindCancellationExpired
	}
	return KindUnknown
}
