// Package ledger is the authoritative record of tickets and bills.  It owns
// the ticket state machine and is the only place a ticket's state changes.
package ledger

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

// ErrTicketNotFound is returned for an unknown ticket id.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrInvalidState is returned when a transition is attempted from the wrong
// lifecycle state.  A correct caller never triggers it, but every
// transition checks it anyway.
var ErrInvalidState = errors.New("invalid ticket state")

// ErrCancellationExpired is returned by MarkCancelled when the cancellation
// instant is past the ticket's free-cancellation deadline.
var ErrCancellationExpired = errors.New("cancellation period expired")

// ErrDuplicateTicket is returned when seeding a ticket id twice.
var ErrDuplicateTicket = errors.New("duplicate ticket id")

type slot struct {
	mu sync.Mutex
	t  model.Ticket
}

// Ledger holds one slot per ticket.  The outer map is guarded by mu; each
// slot has its own lock so transitions on different tickets never contend.
// All accessors return copies, never pointers into a slot.
type Ledger struct {
	mu        sync.RWMutex
	slots     map[uint64]*slot
	billSeq   atomic.Uint64
	ticketSeq atomic.Uint64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{slots: make(map[uint64]*slot)}
}

// Add seeds a ticket.  Used at startup and by tests.  The ticket id
// sequence is advanced past the seeded id.
func (l *Ledger) Add(t model.Ticket) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.slots[t.ID]; ok {
		return ErrDuplicateTicket
	}
	l.slots[t.ID] = &slot{t: t}
	for {
		cur := l.ticketSeq.Load()
		if cur >= t.ID || l.ticketSeq.CompareAndSwap(cur, t.ID) {
			break
		}
	}
	return nil
}

// CreatePendingTicket registers a brand-new ON_SALE ticket for a fare,
// snapshotting the given price.  The cancellation engine uses it to relist
// the unit a cancelled ticket returned to the pool, keeping the count of
// on-sale tickets equal to the fare's available amount.
func (l *Ledger) CreatePendingTicket(trainID uint64, class model.TicketClass, price model.Money, luggage bool, freeCancellationUntil time.Time) model.Ticket {
	t := model.Ticket{
		ID:                    l.ticketSeq.Add(1),
		TrainID:               trainID,
		Class:                 class,
		Price:                 price,
		LuggageIncluded:       luggage,
		FreeCancellationUntil: freeCancellationUntil,
		State:                 model.TicketOnSale,
	}
	l.mu.Lock()
	l.slots[t.ID] = &slot{t: t}
	l.mu.Unlock()
	return t
}

// SeedBillSequence moves the bill id sequence past ids already persisted,
// so freshly issued bills never collide with loaded ones.
func (l *Ledger) SeedBillSequence(lastUsed uint64) {
	for {
		cur := l.billSeq.Load()
		if cur >= lastUsed || l.billSeq.CompareAndSwap(cur, lastUsed) {
			return
		}
	}
}

// NextBillID issues a new bill identifier.
func (l *Ledger) NextBillID() uint64 {
	return l.billSeq.Add(1)
}

func (l *Ledger) slot(id uint64) *slot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slots[id]
}

// Get returns a copy of the ticket.
func (l *Ledger) Get(id uint64) (model.Ticket, error) {
	s := l.slot(id)
	if s == nil {
		return model.Ticket{}, ErrTicketNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t, nil
}

// ForTrain snapshots every ticket of one train, ordered by id.
func (l *Ledger) ForTrain(trainID uint64) []model.Ticket {
	return l.collect(func(t model.Ticket) bool { return t.TrainID == trainID })
}

// ByPassengerEmail snapshots every booked or cancelled ticket whose
// passenger carries the given email.  Used by the `me` query.
func (l *Ledger) ByPassengerEmail(email string) []model.Ticket {
	return l.collect(func(t model.Ticket) bool {
		return t.Passenger != nil && t.Passenger.Email == email
	})
}

func (l *Ledger) collect(keep func(model.Ticket) bool) []model.Ticket {
	l.mu.RLock()
	ids := make([]uint64, 0, len(l.slots))
	for id := range l.slots {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.Ticket, 0, len(ids))
	for _, id := range ids {
		s := l.slot(id)
		if s == nil {
			continue
		}
		s.mu.Lock()
		t := s.t
		s.mu.Unlock()
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// MarkWaitingForPayment transitions ON_SALE -> WAITING_FOR_PAYMENT.
func (l *Ledger) MarkWaitingForPayment(id uint64) error {
	s := l.slot(id)
	if s == nil {
		return ErrTicketNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t.State != model.TicketOnSale {
		return ErrInvalidState
	}
	s.t.State = model.TicketWaitingForPayment
	return nil
}

// MarkBooked transitions WAITING_FOR_PAYMENT -> BOOKED, attaching the
// passenger, the bill and the assigned ticket number and seat.  Returns a
// copy of the booked ticket.
func (l *Ledger) MarkBooked(id uint64, passenger model.User, bill model.Bill, ticketNo, seat string) (model.Ticket, error) {
	s := l.slot(id)
	if s == nil {
		return model.Ticket{}, ErrTicketNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t.State != model.TicketWaitingForPayment {
		return model.Ticket{}, ErrInvalidState
	}
	p := passenger
	b := bill
	s.t.State = model.TicketBooked
	s.t.Passenger = &p
	s.t.Bill = &b
	s.t.TicketNo = ticketNo
	s.t.Seat = seat
	return s.t, nil
}

// BeginCancellation claims a booked ticket for cancellation.  State and
// free-cancellation window are checked under the slot lock and the slot
// moves to CANCELLING, so of two concurrent cancellations of the same
// ticket exactly one obtains the claim and only that one may talk to the
// payment processor.  The returned snapshot is what Restore puts back if
// the refund fails.
func (l *Ledger) BeginCancellation(id uint64, now time.Time) (model.Ticket, error) {
	s := l.slot(id)
	if s == nil {
		return model.Ticket{}, ErrTicketNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t.State != model.TicketBooked {
		return model.Ticket{}, ErrInvalidState
	}
	if now.After(s.t.FreeCancellationUntil) {
		return model.Ticket{}, ErrCancellationExpired
	}
	snapshot := s.t
	s.t.State = model.TicketCancelling
	return snapshot, nil
}

// MarkCancelled transitions CANCELLING -> CANCELLED, completing a claim
// taken with BeginCancellation.  It fails with ErrInvalidState when the
// caller does not hold the claim, and with ErrCancellationExpired when now
// is past the free-cancellation deadline.  cancellationBill may be nil
// when the refund policy produced nothing.  CANCELLED is terminal; no
// transition leaves it.
func (l *Ledger) MarkCancelled(id uint64, cancellationBill *model.Bill, now time.Time) (model.Ticket, error) {
	s := l.slot(id)
	if s == nil {
		return model.Ticket{}, ErrTicketNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t.State != model.TicketCancelling {
		return model.Ticket{}, ErrInvalidState
	}
	if now.After(s.t.FreeCancellationUntil) {
		return model.Ticket{}, ErrCancellationExpired
	}
	if cancellationBill != nil {
		b := *cancellationBill
		s.t.CancellationBill = &b
	}
	d := now
	s.t.CancellationDate = &d
	s.t.State = model.TicketCancelled
	return s.t, nil
}

// Restore overwrites a ticket slot with a previously taken snapshot.  It is
// rollback support for the engines: the booking engine puts saved copies
// back when a batch fails partway, and the cancellation engine releases a
// CANCELLING claim back to BOOKED when the refund fails.
func (l *Ledger) Restore(t model.Ticket) error {
	s := l.slot(t.ID)
	if s == nil {
		return ErrTicketNotFound
	}
	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
	return nil
}
