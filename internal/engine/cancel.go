package engine

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/inventory"
	"github.com/iliyamo/train-ticket-market/internal/ledger"
	"github.com/iliyamo/train-ticket-market/internal/model"
)

// RefundPolicy decides how much of a ticket's price comes back when it is
// cancelled inside the free-cancellation window.  The policy is injected so
// operators can swap the curve without touching the engine.
type RefundPolicy interface {
	Refund(price model.Money, now, deadline time.Time) model.Money
}

// FullRefund returns the whole price.  This is the default policy.
type FullRefund struct{}

func (FullRefund) Refund(price model.Money, _, _ time.Time) model.Money { return price }

// FlatFeeRefund withholds a fixed processing fee, never refunding below
// zero.
type FlatFeeRefund struct {
	Fee model.Money
}

func (p FlatFeeRefund) Refund(price model.Money, _, _ time.Time) model.Money {
	if price <= p.Fee {
		return 0
	}
	return price - p.Fee
}

// Canceler reverses bookings inside the free-cancellation window.
type Canceler struct {
	inv    *inventory.Inventory
	ledger *ledger.Ledger
	pay    Gateway
	policy RefundPolicy
	now    func() time.Time
}

// NewCanceler wires a cancellation engine.  policy may be nil (FullRefund)
// and now may be nil (time.Now UTC).
func NewCanceler(inv *inventory.Inventory, led *ledger.Ledger, pay Gateway, policy RefundPolicy, now func() time.Time) *Canceler {
	if policy == nil {
		policy = FullRefund{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Canceler{inv: inv, ledger: led, pay: pay, policy: policy, now: now}
}

// Cancellation is the outcome for one successfully cancelled ticket.
// Relisted is the fresh on-sale ticket representing the unit returned to
// the pool; it is nil when the fare had no current unit price to snapshot.
type Cancellation struct {
	Ticket   model.Ticket
	Relisted *model.Ticket
}

// Cancel processes the batch per ticket, in ascending-id order.  Unlike
// booking, the batch is not all-or-nothing: a failed ticket does not undo
// the ones already cancelled, and processing continues past it.  Each
// individual cancellation is atomic though: ledger transition, refund bill
// and inventory credit land together or not at all.
//
// The returned error is the first failure encountered; tickets cancelled in
// the same call are returned regardless.
func (c *Canceler) Cancel(ctx context.Context, ticketIDs []uint64) ([]Cancellation, error) {
	if len(ticketIDs) == 0 {
		return nil, E(KindUnknown, "empty cancellation batch")
	}
	ids := make([]uint64, len(ticketIDs))
	copy(ids, ticketIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	cancelled := make([]Cancellation, 0, len(ids))
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, id := range ids {
		now := c.now()
		// Claim the slot before the refund.  The claim is what keeps two
		// concurrent cancellations of the same ticket from both reaching
		// the processor: the loser fails here and never refunds.
		t, err := c.ledger.BeginCancellation(id, now)
		if err != nil {
			fail(E(KindOf(err), "cancel ticket %d: %v", id, err))
			continue
		}

		refund := c.policy.Refund(t.Price, now, t.FreeCancellationUntil)
		if refund > 0 {
			if err := c.pay.Reverse(ctx, t.Bill.PayerEmail, refund); err != nil {
				// Release the claim; the ticket stays booked.
				_ = c.ledger.Restore(t)
				fail(paymentError(err))
				continue
			}
		}

		var refundBill *model.Bill
		if refund > 0 {
			refundBill = &model.Bill{
				ID:         c.ledger.NextBillID(),
				Sum:        refund,
				Date:       now,
				PayerEmail: t.Bill.PayerEmail,
			}
		}
		ct, err := c.ledger.MarkCancelled(id, refundBill, now)
		if err != nil {
			_ = c.ledger.Restore(t)
			fail(err)
			continue
		}

		key := inventory.Key{TrainID: ct.TrainID, Class: ct.Class}
		if err := c.inv.Restock(key, 1); err != nil {
			// Unknown fare means the seed data is inconsistent.  Put the
			// ticket back so ledger and inventory stay in step.
			_ = c.ledger.Restore(t)
			fail(E(KindUnknown, "restock %v: %v", key, err))
			continue
		}
		// Relist the returned unit so the pool of on-sale tickets matches the
		// fare's available amount.  Price snapshots the fare's current unit
		// price, not the cancelled ticket's.
		out := Cancellation{Ticket: ct}
		if price, ok := c.inv.UnitPrice(key); ok {
			nt := c.ledger.CreatePendingTicket(ct.TrainID, ct.Class, price, ct.LuggageIncluded, ct.FreeCancellationUntil)
			out.Relisted = &nt
		}
		cancelled = append(cancelled, out)
	}
	return cancelled, firstErr
}
