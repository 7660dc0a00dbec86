// Package inventory holds the per-fare seat counters that booking and
// cancellation contend on.  A fare is the (train, class) pair; its counter
// is the atomic unit of contention, and every decrement or credit happens
// under that fare's own lock.
package inventory

import (
	"errors"
	"sort"
	"sync"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

// ErrInsufficient is returned by TryReserve when the fare has fewer units
// left than requested.  There is no queueing: the caller fails immediately.
var ErrInsufficient = errors.New("insufficient inventory")

// ErrUnknownFare is returned when no fare exists for the requested key.
var ErrUnknownFare = errors.New("unknown fare")

// Key identifies a fare: one sellable class on one train.
type Key struct {
	TrainID uint64
	Class   model.TicketClass
}

// Entry is a read-only snapshot of a fare taken for catalog queries.
type Entry struct {
	Key       Key
	Available int
	UnitPrice model.Money
}

type fare struct {
	mu        sync.Mutex
	available int
	unitPrice model.Money
}

// Inventory is the set of fare counters.  The outer map is guarded by mu;
// each fare carries its own lock so contention on one train/class never
// blocks reservations on another.
type Inventory struct {
	mu    sync.RWMutex
	fares map[Key]*fare
}

// New returns an empty inventory.
func New() *Inventory {
	return &Inventory{fares: make(map[Key]*fare)}
}

// Add seeds a fare with its unit price and available seat count.  Seeding
// an existing key overwrites it; Add is meant for startup loading only.
func (inv *Inventory) Add(key Key, available int, unitPrice model.Money) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.fares[key] = &fare{available: available, unitPrice: unitPrice}
}

func (inv *Inventory) lookup(key Key) *fare {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.fares[key]
}

// Reservation is the token returned by a successful TryReserve.  Exactly
// one of Release or Commit may take effect; both are safe to call more
// than once, and releasing after a commit is a no-op, so inventory can
// never be double-credited through a token.
type Reservation struct {
	inv *Inventory
	key Key
	qty int

	mu      sync.Mutex
	settled bool
}

// Key reports which fare the reservation was taken from.
func (r *Reservation) Key() Key { return r.key }

// Release credits the reserved units back to the fare.  Idempotent per
// token: only the first call has any effect.
func (r *Reservation) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled {
		return
	}
	r.settled = true

	f := r.inv.lookup(r.key)
	if f == nil {
		return
	}
	f.mu.Lock()
	f.available += r.qty
	f.mu.Unlock()
}

// Commit seals the token: the decrement stands and any later Release is a
// no-op.  Called once the booking that holds the token has fully committed.
func (r *Reservation) Commit() {
	r.mu.Lock()
	r.settled = true
	r.mu.Unlock()
}

// TryReserve atomically takes qty units from the fare, or fails with
// ErrInsufficient without taking anything.  Concurrent callers on the same
// key serialize on the fare's lock, so the counter can never be oversold.
func (inv *Inventory) TryReserve(key Key, qty int) (*Reservation, error) {
	if qty <= 0 {
		return nil, errors.New("inventory: quantity must be positive")
	}
	f := inv.lookup(key)
	if f == nil {
		return nil, ErrUnknownFare
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.available < qty {
		return nil, ErrInsufficient
	}
	f.available -= qty
	return &Reservation{inv: inv, key: key, qty: qty}, nil
}

// Restock credits qty units back to the fare outside of any reservation
// token.  Cancellation uses it when a booked ticket returns to the pool.
func (inv *Inventory) Restock(key Key, qty int) error {
	if qty <= 0 {
		return errors.New("inventory: quantity must be positive")
	}
	f := inv.lookup(key)
	if f == nil {
		return ErrUnknownFare
	}
	f.mu.Lock()
	f.available += qty
	f.mu.Unlock()
	return nil
}

// Available reports the current count for a fare.
func (inv *Inventory) Available(key Key) (int, bool) {
	f := inv.lookup(key)
	if f == nil {
		return 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available, true
}

// UnitPrice reports the current unit price for a fare.
func (inv *Inventory) UnitPrice(key Key) (model.Money, bool) {
	f := inv.lookup(key)
	if f == nil {
		return 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unitPrice, true
}

// ForTrain snapshots every fare of one train, ordered by class for
// deterministic output.
func (inv *Inventory) ForTrain(trainID uint64) []Entry {
	inv.mu.RLock()
	keys := make([]Key, 0, 4)
	for k := range inv.fares {
		if k.TrainID == trainID {
			keys = append(keys, k)
		}
	}
	inv.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Class < keys[j].Class })
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		f := inv.lookup(k)
		if f == nil {
			continue
		}
		f.mu.Lock()
		out = append(out, Entry{Key: k, Available: f.available, UnitPrice: f.unitPrice})
		f.mu.Unlock()
	}
	return out
}
