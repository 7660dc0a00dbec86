package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

// bookTicket books one fixture ticket so cancellation tests start from a
// BOOKED state produced the same way production does.
func bookTicket(t *testing.T, f *fixture, id uint64) model.Ticket {
	t.Helper()
	booked, err := f.booker.Book(context.Background(), []BookingRequest{req(id, "ada@example.com")})
	if err != nil {
		t.Fatalf("book ticket %d: %v", id, err)
	}
	return booked[0]
}

func newCanceler(f *fixture, policy RefundPolicy, now func() time.Time) *Canceler {
	if now == nil {
		now = fixedNow
	}
	return NewCanceler(f.inv, f.ledger, f.pay, policy, now)
}

func TestCancelRefundsAndRestocks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bookTicket(t, f, 1)
	if got := f.available(t, model.ClassEconomy); got != 2 {
		t.Fatalf("economy available after booking = %d, want 2", got)
	}

	c := newCanceler(f, FullRefund{}, nil)
	cancelled, err := c.Cancel(context.Background(), []uint64{1})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(cancelled) != 1 {
		t.Fatalf("cancelled %d tickets, want 1", len(cancelled))
	}
	ct := cancelled[0].Ticket
	if ct.State != model.TicketCancelled {
		t.Errorf("state = %s, want CANCELLED", ct.State)
	}
	if ct.CancellationBill == nil || ct.CancellationBill.Sum != 1000 {
		t.Errorf("cancellation bill = %+v, want full 1000 refund", ct.CancellationBill)
	}
	if ct.CancellationDate == nil || !ct.CancellationDate.Equal(fixedNow()) {
		t.Errorf("cancellation date = %v, want %v", ct.CancellationDate, fixedNow())
	}
	if got := f.available(t, model.ClassEconomy); got != 3 {
		t.Errorf("economy available after cancel = %d, want 3", got)
	}
	if len(f.pay.reversed) != 1 || f.pay.reversed[0] != 1000 {
		t.Errorf("reversed = %v, want [1000]", f.pay.reversed)
	}
}

func TestCancelRelistsReturnedUnit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bookTicket(t, f, 1)

	c := newCanceler(f, FullRefund{}, nil)
	cancelled, err := c.Cancel(context.Background(), []uint64{1})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	nt := cancelled[0].Relisted
	if nt == nil {
		t.Fatal("expected a relisted replacement ticket")
	}
	if nt.State != model.TicketOnSale {
		t.Errorf("relisted state = %s, want ON_SALE", nt.State)
	}
	if nt.TrainID != 1 || nt.Class != model.ClassEconomy {
		t.Errorf("relisted fare = train %d class %s", nt.TrainID, nt.Class)
	}
	// The replacement snapshots the fare's current unit price.
	if nt.Price != 1000 {
		t.Errorf("relisted price = %d, want 1000", nt.Price)
	}
	got, err := f.ledger.Get(nt.ID)
	if err != nil {
		t.Fatalf("relisted ticket not in ledger: %v", err)
	}
	if got.State != model.TicketOnSale {
		t.Errorf("ledger state of relisted = %s, want ON_SALE", got.State)
	}
}

func TestCancelAtDeadlineSucceedsAfterFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bookTicket(t, f, 1)
	bookTicket(t, f, 2)

	atDeadline := newCanceler(f, FullRefund{}, func() time.Time { return deadline() })
	if _, err := atDeadline.Cancel(context.Background(), []uint64{1}); err != nil {
		t.Errorf("cancel exactly at the deadline: %v", err)
	}

	after := newCanceler(f, FullRefund{}, func() time.Time { return deadline().Add(time.Second) })
	_, err := after.Cancel(context.Background(), []uint64{2})
	if KindOf(err) != KindCancellationExpired {
		t.Fatalf("kind = %v, want cancellation_expired", KindOf(err))
	}
	got, _ := f.ledger.Get(2)
	if got.State != model.TicketBooked {
		t.Errorf("ticket 2 state = %s, want BOOKED after expired attempt", got.State)
	}
}

func TestCancelContinuesPastFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bookTicket(t, f, 1)
	bookTicket(t, f, 3)

	c := newCanceler(f, FullRefund{}, nil)
	// Ticket 2 is still on sale, so it fails; 1 and 3 must cancel anyway.
	cancelled, err := c.Cancel(context.Background(), []uint64{3, 2, 1})
	if KindOf(err) != KindInvalidState {
		t.Fatalf("kind = %v, want invalid_state from ticket 2", KindOf(err))
	}
	if len(cancelled) != 2 {
		t.Fatalf("cancelled %d tickets, want 2", len(cancelled))
	}
	if cancelled[0].Ticket.ID != 1 || cancelled[1].Ticket.ID != 3 {
		t.Errorf("cancelled ids = [%d %d], want [1 3]", cancelled[0].Ticket.ID, cancelled[1].Ticket.ID)
	}
}

func TestCancelUnknownTicket(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := newCanceler(f, FullRefund{}, nil)
	_, err := c.Cancel(context.Background(), []uint64{99})
	if KindOf(err) != KindNotFound {
		t.Fatalf("kind = %v, want not_found", KindOf(err))
	}
}

func TestCancelGatewayTimeoutLeavesTicketBooked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bookTicket(t, f, 1)
	f.pay.authorizeErr = nil
	f.pay.reverseErr = ErrGatewayTimeout

	c := newCanceler(f, FullRefund{}, nil)
	_, err := c.Cancel(context.Background(), []uint64{1})
	if KindOf(err) != KindTimeout {
		t.Fatalf("kind = %v, want timeout", KindOf(err))
	}
	got, _ := f.ledger.Get(1)
	if got.State != model.TicketBooked {
		t.Errorf("state = %s, want BOOKED: refund failure must not mutate", got.State)
	}
	if got := f.available(t, model.ClassEconomy); got != 2 {
		t.Errorf("economy available = %d, want 2", got)
	}
}

// slowGateway widens the refund window so racing cancellations overlap
// while one of them is talking to the processor.
type slowGateway struct {
	fakeGateway
	delay time.Duration
}

func (g *slowGateway) Reverse(ctx context.Context, payer string, sum model.Money) error {
	time.Sleep(g.delay)
	return g.fakeGateway.Reverse(ctx, payer, sum)
}

func TestConcurrentCancelRefundsOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bookTicket(t, f, 1)

	pay := &slowGateway{delay: 20 * time.Millisecond}
	c := NewCanceler(f.inv, f.ledger, pay, FullRefund{}, fixedNow)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Cancel(context.Background(), []uint64{1})
		}(i)
	}
	wg.Wait()

	pay.mu.Lock()
	reversals := len(pay.reversed)
	pay.mu.Unlock()
	if reversals != 1 {
		t.Fatalf("processor reversed %d times for one cancellation, want 1", reversals)
	}
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if KindOf(err) != KindInvalidState {
			t.Errorf("loser kind = %v, want invalid_state", KindOf(err))
		}
	}
	if wins != 1 {
		t.Errorf("%d callers succeeded, want exactly 1", wins)
	}
	got, _ := f.ledger.Get(1)
	if got.State != model.TicketCancelled {
		t.Errorf("state = %s, want CANCELLED", got.State)
	}
	if got := f.available(t, model.ClassEconomy); got != 3 {
		t.Errorf("economy available = %d, want 3", got)
	}
}

func TestSeatNotReassignedAfterCancellation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	first := bookTicket(t, f, 1)
	second := bookTicket(t, f, 2)

	c := newCanceler(f, FullRefund{}, nil)
	cancelled, err := c.Cancel(context.Background(), []uint64{1})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	nt := cancelled[0].Relisted
	if nt == nil {
		t.Fatal("expected a relisted replacement ticket")
	}

	// Booking the relisted unit must not hand out the freed seat again.
	third := bookTicket(t, f, nt.ID)
	seats := map[string]uint64{first.Seat: first.ID}
	for _, bt := range []model.Ticket{second, third} {
		if prev, dup := seats[bt.Seat]; dup {
			t.Errorf("seat %q assigned to both ticket %d and ticket %d", bt.Seat, prev, bt.ID)
		}
		seats[bt.Seat] = bt.ID
	}
}

func TestFlatFeeRefund(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bookTicket(t, f, 1)

	c := newCanceler(f, FlatFeeRefund{Fee: 300}, nil)
	cancelled, err := c.Cancel(context.Background(), []uint64{1})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	ct := cancelled[0].Ticket
	if ct.CancellationBill == nil || ct.CancellationBill.Sum != 700 {
		t.Errorf("refund bill = %+v, want 700 after the 300 fee", ct.CancellationBill)
	}
}

func TestFlatFeeRefundNeverNegative(t *testing.T) {
	t.Parallel()
	p := FlatFeeRefund{Fee: 5000}
	if got := p.Refund(1000, fixedNow(), deadline()); got != 0 {
		t.Errorf("refund = %d, want 0 when the fee exceeds the price", got)
	}
}

func TestCancelZeroRefundSkipsProcessorAndBill(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bookTicket(t, f, 1)
	reversals := len(f.pay.reversed)

	c := newCanceler(f, FlatFeeRefund{Fee: 1000}, nil)
	cancelled, err := c.Cancel(context.Background(), []uint64{1})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	ct := cancelled[0].Ticket
	if ct.CancellationBill != nil {
		t.Errorf("cancellation bill = %+v, want none for a zero refund", ct.CancellationBill)
	}
	if len(f.pay.reversed) != reversals {
		t.Errorf("processor was called for a zero refund")
	}
	if got := f.available(t, model.ClassEconomy); got != 3 {
		t.Errorf("economy available = %d, want 3: unit still returns", got)
	}
}
