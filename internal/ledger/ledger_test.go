package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

func day(d int) time.Time {
	return time.Date(2026, 9, d, 12, 0, 0, 0, time.UTC)
}

func onSale(id uint64) model.Ticket {
	return model.Ticket{
		ID:                    id,
		TrainID:               1,
		Class:                 model.ClassEconomy,
		Price:                 2500,
		FreeCancellationUntil: day(20),
		State:                 model.TicketOnSale,
	}
}

func passenger() model.User {
	return model.User{FirstName: "Ada", LastName: "Byron", Email: "ada@example.com"}
}

func bill(id uint64, sum model.Money) model.Bill {
	return model.Bill{ID: id, Sum: sum, Date: day(1), PayerEmail: "ada@example.com"}
}

func TestAddRejectsDuplicates(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(onSale(1)); !errors.Is(err, ErrDuplicateTicket) {
		t.Errorf("err = %v, want ErrDuplicateTicket", err)
	}
}

func TestCreatePendingTicketAdvancesPastSeededIDs(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(41)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	nt := l.CreatePendingTicket(1, model.ClassEconomy, 3000, true, day(25))
	if nt.ID != 42 {
		t.Errorf("relisted id = %d, want 42", nt.ID)
	}
	if nt.State != model.TicketOnSale {
		t.Errorf("state = %s, want ON_SALE", nt.State)
	}
	if nt.Price != 3000 || !nt.LuggageIncluded {
		t.Errorf("relisted ticket did not keep price/luggage: %+v", nt)
	}
}

func TestBookingPath(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := l.MarkWaitingForPayment(1); err != nil {
		t.Fatalf("MarkWaitingForPayment: %v", err)
	}
	// Already off sale; a second transition from ON_SALE must fail.
	if err := l.MarkWaitingForPayment(1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second MarkWaitingForPayment: err = %v, want ErrInvalidState", err)
	}

	bt, err := l.MarkBooked(1, passenger(), bill(1, 2500), "TK-1-000001", "05E")
	if err != nil {
		t.Fatalf("MarkBooked: %v", err)
	}
	if bt.State != model.TicketBooked {
		t.Errorf("state = %s, want BOOKED", bt.State)
	}
	if bt.TicketNo != "TK-1-000001" || bt.Seat != "05E" {
		t.Errorf("ticketNo/seat = %q/%q", bt.TicketNo, bt.Seat)
	}
	if bt.Passenger == nil || bt.Passenger.Email != "ada@example.com" {
		t.Errorf("passenger not attached: %+v", bt.Passenger)
	}
	if bt.Bill == nil || bt.Bill.Sum != 2500 {
		t.Errorf("bill not attached: %+v", bt.Bill)
	}
}

func TestMarkBookedRequiresWaitingForPayment(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := l.MarkBooked(1, passenger(), bill(1, 2500), "TK-1-000001", "01E"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
	if _, err := l.MarkBooked(99, passenger(), bill(1, 2500), "x", "x"); !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("unknown id: err = %v, want ErrTicketNotFound", err)
	}
}

func book(t *testing.T, l *Ledger, id uint64) model.Ticket {
	t.Helper()
	if err := l.MarkWaitingForPayment(id); err != nil {
		t.Fatalf("MarkWaitingForPayment: %v", err)
	}
	bt, err := l.MarkBooked(id, passenger(), bill(1, 2500), "TK-1-000001", "01E")
	if err != nil {
		t.Fatalf("MarkBooked: %v", err)
	}
	return bt
}

func TestMarkCancelledInsideWindow(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	book(t, l, 1)

	if _, err := l.BeginCancellation(1, day(20)); err != nil { // exactly at the deadline
		t.Fatalf("BeginCancellation at deadline: %v", err)
	}
	refund := bill(2, 2500)
	ct, err := l.MarkCancelled(1, &refund, day(20))
	if err != nil {
		t.Fatalf("MarkCancelled at deadline: %v", err)
	}
	if ct.State != model.TicketCancelled {
		t.Errorf("state = %s, want CANCELLED", ct.State)
	}
	if ct.CancellationBill == nil || ct.CancellationBill.Sum != 2500 {
		t.Errorf("cancellation bill = %+v", ct.CancellationBill)
	}
	if ct.CancellationDate == nil || !ct.CancellationDate.Equal(day(20)) {
		t.Errorf("cancellation date = %v, want %v", ct.CancellationDate, day(20))
	}
}

func TestMarkCancelledAfterDeadline(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	book(t, l, 1)

	if _, err := l.BeginCancellation(1, day(20).Add(time.Second)); !errors.Is(err, ErrCancellationExpired) {
		t.Fatalf("err = %v, want ErrCancellationExpired", err)
	}
	// The failed attempt must not have touched the ticket.
	got, err := l.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != model.TicketBooked {
		t.Errorf("state = %s, want BOOKED", got.State)
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	book(t, l, 1)
	cancel(t, l, 1, day(19))

	if err := l.MarkWaitingForPayment(1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("MarkWaitingForPayment on cancelled: err = %v, want ErrInvalidState", err)
	}
	if _, err := l.BeginCancellation(1, day(19)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double cancel: err = %v, want ErrInvalidState", err)
	}
}

// cancel claims and completes a cancellation the way the engine does.
func cancel(t *testing.T, l *Ledger, id uint64, now time.Time) model.Ticket {
	t.Helper()
	if _, err := l.BeginCancellation(id, now); err != nil {
		t.Fatalf("BeginCancellation: %v", err)
	}
	ct, err := l.MarkCancelled(id, nil, now)
	if err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	return ct
}

func TestBeginCancellationClaimsExclusively(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	book(t, l, 1)

	snapshot, err := l.BeginCancellation(1, day(19))
	if err != nil {
		t.Fatalf("BeginCancellation: %v", err)
	}
	if snapshot.State != model.TicketBooked {
		t.Errorf("snapshot state = %s, want BOOKED", snapshot.State)
	}
	// A second claim on the held slot must lose.
	if _, err := l.BeginCancellation(1, day(19)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second claim: err = %v, want ErrInvalidState", err)
	}
	// Completing without the claim must also lose.
	if _, err := l.MarkCancelled(2, nil, day(19)); !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("unknown id: err = %v, want ErrTicketNotFound", err)
	}

	// Releasing the claim puts the slot back to BOOKED and a new claim wins.
	if err := l.Restore(snapshot); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := l.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != model.TicketBooked {
		t.Errorf("state after restore = %s, want BOOKED", got.State)
	}
	if _, err := l.BeginCancellation(1, day(19)); err != nil {
		t.Errorf("reclaim after restore: %v", err)
	}
}

func TestMarkCancelledRequiresClaim(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	book(t, l, 1)

	if _, err := l.MarkCancelled(1, nil, day(19)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("complete without claim: err = %v, want ErrInvalidState", err)
	}
	got, _ := l.Get(1)
	if got.State != model.TicketBooked {
		t.Errorf("state = %s, want BOOKED", got.State)
	}
}

func TestRestorePutsSnapshotBack(t *testing.T) {
	t.Parallel()
	l := New()
	seed := onSale(1)
	if err := l.Add(seed); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.MarkWaitingForPayment(1); err != nil {
		t.Fatalf("MarkWaitingForPayment: %v", err)
	}
	if err := l.Restore(seed); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := l.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != model.TicketOnSale {
		t.Errorf("state after restore = %s, want ON_SALE", got.State)
	}
}

func TestByPassengerEmail(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Add(onSale(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(onSale(2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	book(t, l, 2)

	got := l.ByPassengerEmail("ada@example.com")
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("ByPassengerEmail = %v, want just ticket 2", got)
	}
	if got := l.ByPassengerEmail("nobody@example.com"); len(got) != 0 {
		t.Errorf("unexpected tickets for unknown email: %v", got)
	}
}

func TestBillSequence(t *testing.T) {
	t.Parallel()
	l := New()
	l.SeedBillSequence(10)
	if got := l.NextBillID(); got != 11 {
		t.Errorf("NextBillID = %d, want 11", got)
	}
	// Seeding backwards must not rewind the sequence.
	l.SeedBillSequence(5)
	if got := l.NextBillID(); got != 12 {
		t.Errorf("NextBillID after stale seed = %d, want 12", got)
	}
}
