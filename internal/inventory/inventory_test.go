package inventory

import (
	"errors"
	"sync"
	"testing"

	"github.com/iliyamo/train-ticket-market/internal/model"
)

func TestTryReserveDecrements(t *testing.T) {
	t.Parallel()
	inv := New()
	key := Key{TrainID: 1, Class: model.ClassEconomy}
	inv.Add(key, 5, 1000)

	res, err := inv.TryReserve(key, 2)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	if got, _ := inv.Available(key); got != 3 {
		t.Errorf("available = %d, want 3", got)
	}
	if res.Key() != key {
		t.Errorf("reservation key = %v, want %v", res.Key(), key)
	}
}

func TestTryReserveInsufficient(t *testing.T) {
	t.Parallel()
	inv := New()
	key := Key{TrainID: 1, Class: model.ClassBusiness}
	inv.Add(key, 1, 5000)

	if _, err := inv.TryReserve(key, 2); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("err = %v, want ErrInsufficient", err)
	}
	// A failed reservation must not have taken anything.
	if got, _ := inv.Available(key); got != 1 {
		t.Errorf("available = %d, want 1", got)
	}
}

func TestTryReserveUnknownFare(t *testing.T) {
	t.Parallel()
	inv := New()
	if _, err := inv.TryReserve(Key{TrainID: 99, Class: model.ClassEconomy}, 1); !errors.Is(err, ErrUnknownFare) {
		t.Fatalf("err = %v, want ErrUnknownFare", err)
	}
}

func TestNoOversellUnderContention(t *testing.T) {
	t.Parallel()
	inv := New()
	key := Key{TrainID: 7, Class: model.ClassStandard}
	const seats = 10
	const callers = 100
	inv.Add(key, seats, 2000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := inv.TryReserve(key, 1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != seats {
		t.Errorf("granted = %d, want %d", granted, seats)
	}
	if got, _ := inv.Available(key); got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()
	inv := New()
	key := Key{TrainID: 2, Class: model.ClassEconomy}
	inv.Add(key, 3, 1500)

	res, err := inv.TryReserve(key, 1)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	res.Release()
	res.Release()
	res.Release()

	if got, _ := inv.Available(key); got != 3 {
		t.Errorf("available after repeated release = %d, want 3", got)
	}
}

func TestReleaseAfterCommitIsNoOp(t *testing.T) {
	t.Parallel()
	inv := New()
	key := Key{TrainID: 2, Class: model.ClassBusiness}
	inv.Add(key, 3, 9000)

	res, err := inv.TryReserve(key, 1)
	if err != nil {
		t.Fatalf("TryReserve: %v", err)
	}
	res.Commit()
	res.Release()

	if got, _ := inv.Available(key); got != 2 {
		t.Errorf("available = %d, want 2: committed unit must stay taken", got)
	}
}

func TestRestock(t *testing.T) {
	t.Parallel()
	inv := New()
	key := Key{TrainID: 3, Class: model.ClassEconomy}
	inv.Add(key, 0, 1200)

	if err := inv.Restock(key, 1); err != nil {
		t.Fatalf("Restock: %v", err)
	}
	if got, _ := inv.Available(key); got != 1 {
		t.Errorf("available = %d, want 1", got)
	}
	if err := inv.Restock(Key{TrainID: 99, Class: model.ClassEconomy}, 1); !errors.Is(err, ErrUnknownFare) {
		t.Errorf("restock unknown fare: err = %v, want ErrUnknownFare", err)
	}
}

func TestForTrainSortedByClass(t *testing.T) {
	t.Parallel()
	inv := New()
	inv.Add(Key{TrainID: 4, Class: model.ClassStandard}, 2, 2000)
	inv.Add(Key{TrainID: 4, Class: model.ClassBusiness}, 1, 5000)
	inv.Add(Key{TrainID: 4, Class: model.ClassEconomy}, 5, 1000)
	inv.Add(Key{TrainID: 5, Class: model.ClassEconomy}, 9, 900)

	entries := inv.ForTrain(4)
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	want := []model.TicketClass{model.ClassBusiness, model.ClassEconomy, model.ClassStandard}
	for i, e := range entries {
		if e.Key.Class != want[i] {
			t.Errorf("entries[%d].Class = %s, want %s", i, e.Key.Class, want[i])
		}
	}
}
