// Package engine implements the booking and cancellation engines on top of
// the fare inventory and the ticket ledger.  Both engines roll every
// partial effect back before returning an error, so no failure ever leaves
// inventory or ledger half-mutated.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/inventory"
	"github.com/iliyamo/train-ticket-market/internal/ledger"
	"github.com/iliyamo/train-ticket-market/internal/model"
)

// BookingRequest asks for one on-sale ticket to be booked for a passenger.
type BookingRequest struct {
	TicketID  uint64
	Passenger model.User
}

// Booker books batches of tickets all-or-nothing.
type Booker struct {
	inv    *inventory.Inventory
	ledger *ledger.Ledger
	pay    Gateway
	now    func() time.Time
}

// NewBooker wires a booking engine.  now may be nil, in which case
// time.Now (UTC) is used.
func NewBooker(inv *inventory.Inventory, led *ledger.Ledger, pay Gateway, now func() time.Time) *Booker {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Booker{inv: inv, ledger: led, pay: pay, now: now}
}

// Book processes the batch as one unit: every requested ticket is reserved,
// the aggregate sum is authorized once, and only then does the ledger
// transition.  Any failure releases every reservation taken by this batch
// and restores any ledger slot it already touched, leaving state exactly as
// it was before the call.
//
// Requests are handled in ascending ticket-id order regardless of payload
// order, so concurrent batches that overlap on fare keys acquire them in a
// consistent order and cannot deadlock.
func (b *Booker) Book(ctx context.Context, requests []BookingRequest) ([]model.Ticket, error) {
	if len(requests) == 0 {
		return nil, E(KindUnknown, "empty booking batch")
	}

	batch := make([]BookingRequest, len(requests))
	copy(batch, requests)
	sort.Slice(batch, func(i, j int) bool { return batch[i].TicketID < batch[j].TicketID })
	for i := 1; i < len(batch); i++ {
		if batch[i].TicketID == batch[i-1].TicketID {
			return nil, E(KindUnknown, "ticket %d appears twice in the batch", batch[i].TicketID)
		}
	}

	// Phase 1: resolve tickets and reserve one unit per fare key.
	held := make([]*inventory.Reservation, 0, len(batch))
	releaseAll := func() {
		for _, r := range held {
			r.Release()
		}
	}

	tickets := make([]model.Ticket, 0, len(batch))
	var total model.Money
	for _, req := range batch {
		t, err := b.ledger.Get(req.TicketID)
		if err != nil {
			releaseAll()
			return nil, E(KindNotFound, "ticket %d not found", req.TicketID)
		}
		if t.State != model.TicketOnSale {
			releaseAll()
			return nil, E(KindInvalidState, "ticket %d is not on sale", req.TicketID)
		}
		res, err := b.inv.TryReserve(inventory.Key{TrainID: t.TrainID, Class: t.Class}, 1)
		if err != nil {
			releaseAll()
			return nil, E(KindInventoryExhausted, "no %s seats left on train %d", t.Class, t.TrainID)
		}
		held = append(held, res)
		tickets = append(tickets, t)
		total += t.Price
	}

	// Phase 2: authorize the aggregate sum before touching the ledger.  The
	// lead passenger's email identifies the payer for the whole batch.
	payer := batch[0].Passenger.Email
	if err := b.pay.Authorize(ctx, payer, total); err != nil {
		releaseAll()
		return nil, paymentError(err)
	}

	// Phase 3: commit.  Transition failures here mean a concurrent writer
	// won the ticket between resolve and commit; undo everything done so far.
	now := b.now()
	booked := make([]model.Ticket, 0, len(batch))
	prior := make([]model.Ticket, 0, len(batch))
	rollback := func() {
		for _, t := range prior {
			_ = b.ledger.Restore(t)
		}
		releaseAll()
		_ = b.pay.Reverse(ctx, payer, total)
	}
	for i, req := range batch {
		t := tickets[i]
		bill := model.Bill{
			ID:         b.ledger.NextBillID(),
			Sum:        t.Price,
			Date:       now,
			PayerEmail: req.Passenger.Email,
		}
		if err := b.ledger.MarkWaitingForPayment(t.ID); err != nil {
			rollback()
			return nil, E(KindUnknown, "booking ticket %d: %v", t.ID, err)
		}
		prior = append(prior, t)
		bt, err := b.ledger.MarkBooked(t.ID, req.Passenger, bill, ticketNo(t), seatLabel(t))
		if err != nil {
			rollback()
			return nil, E(KindUnknown, "booking ticket %d: %v", t.ID, err)
		}
		booked = append(booked, bt)
	}

	for _, r := range held {
		r.Commit()
	}
	return booked, nil
}

func ticketNo(t model.Ticket) string {
	return fmt.Sprintf("TK-%d-%06d", t.TrainID, t.ID)
}

// seatLabel derives the seat from the ticket id.  Ticket ids are never
// reused, so a seat freed by a cancellation is never assigned to a second
// passenger; the relisted replacement carries a fresh id and therefore a
// fresh seat.
func seatLabel(t model.Ticket) string {
	letter := "S"
	switch t.Class {
	case model.ClassEconomy:
		letter = "E"
	case model.ClassBusiness:
		letter = "B"
	}
	return fmt.Sprintf("%02d%s", t.ID, letter)
}
