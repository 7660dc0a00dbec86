package engine

import (
	"context"
	"errors"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

// ErrInsufficientFunds is returned by a Gateway when the payer cannot cover
// the sum.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrGatewayTimeout is returned by a Gateway when the processor did not
// answer within its deadline.  The engine treats it exactly like a failure:
// everything reserved so far is rolled back.
var ErrGatewayTimeout = errors.New("payment gateway timeout")

// Gateway is the payment collaborator.  Authorize charges the payer for an
// aggregate booking sum; Reverse refunds part or all of a charge on
// cancellation.  Both may fail with ErrInsufficientFunds (Authorize only),
// ErrGatewayTimeout, or an arbitrary processor error.
type Gateway interface {
	Authorize(ctx context.Context, payerEmail string, sum model.Money) error
	Reverse(ctx context.Context, payerEmail string, sum model.Money) error
}

// InProcessGateway authorizes everything immediately.  main wires it when
// no payment processor is configured, and tests use it as a base case.
type InProcessGateway struct{}

func (InProcessGateway) Authorize(context.Context, string, model.Money) error { return nil }
func (InProcessGateway) Reverse(context.Context, string, model.Money) error   { return nil }

// paymentError maps a gateway failure onto an engine error.
func paymentError(err error) *Error {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return E(KindInsufficientFunds, "payment declined: insufficient funds")
	case errors.Is(err, ErrGatewayTimeout), errors.Is(err, context.DeadlineExceeded):
		return E(KindTimeout, "payment processor timed out")
	default:
		return E(KindUnknown, "payment failed: %v", err)
	}
}
