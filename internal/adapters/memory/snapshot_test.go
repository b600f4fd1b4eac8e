package memory_test

import (
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/vastmap/internal/adapters/memory"
	"github.com/samirrijal/vastmap/internal/core/domain"
)

func makeSnapshot(n int) *domain.Snapshot {
	vehicles := make([]domain.Vehicle, n)
	for i := range vehicles {
		vehicles[i] = domain.Vehicle{ID: "v", Line: "6", Type: domain.VehicleTram}
	}
	return &domain.Snapshot{Vehicles: vehicles, FetchedAt: time.Now(), Count: n}
}

func TestRead_BeforeFirstPublish(t *testing.T) {
	store := memory.NewSnapshotStore()

	s := store.Read()
	if s == nil {
		t.Fatal("Read returned nil before first publish")
	}
	if len(s.Vehicles) != 0 || s.Count != 0 {
		t.Errorf("expected empty snapshot, got %d vehicles", len(s.Vehicles))
	}
	if s.Vehicles == nil {
		t.Error("empty snapshot should serialize as [], not null")
	}
}

func TestPublishThenRead(t *testing.T) {
	store := memory.NewSnapshotStore()
	store.Publish(makeSnapshot(3))

	if got := store.Read(); got.Count != 3 || len(got.Vehicles) != 3 {
		t.Errorf("expected 3 vehicles, got count=%d len=%d", got.Count, len(got.Vehicles))
	}
}

func TestRead_NeverObservesPartialSnapshot(t *testing.T) {
	store := memory.NewSnapshotStore()

	const oldLen, newLen = 5, 9
	store.Publish(makeSnapshot(oldLen))

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// Writers alternate between the two sizes.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				store.Publish(makeSnapshot(newLen))
			} else {
				store.Publish(makeSnapshot(oldLen))
			}
		}
	}()

	// Readers must only ever see one of the two published lengths.
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5000; i++ {
				s := store.Read()
				if n := len(s.Vehicles); n != oldLen && n != newLen {
					t.Errorf("observed snapshot of length %d, want %d or %d", n, oldLen, newLen)
					return
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
}
