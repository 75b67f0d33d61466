package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreGetUpsert(t *testing.T) {
	st := NewStore()
	if _, ok := st.Get("u1"); ok {
		t.Fatal("Get on empty store returned a session")
	}
	now := time.Now().UTC()
	st.Upsert(Session{ID: "u1", DisplayName: "Alice", IsActive: true, LastObservedAt: now})
	got, ok := st.Get("u1")
	if !ok {
		t.Fatal("Get after Upsert missed")
	}
	if got.DisplayName != "Alice" || !got.IsActive {
		t.Errorf("got %+v", got)
	}

	// Mutating the returned copy must not touch stored state.
	got.AccruedSeconds = 999
	stored, _ := st.Get("u1")
	if stored.AccruedSeconds != 0 {
		t.Errorf("store leaked a reference: accrued = %d", stored.AccruedSeconds)
	}
}

func TestStoreFilters(t *testing.T) {
	st := NewStore()
	st.Upsert(Session{ID: "b", IsActive: true})
	st.Upsert(Session{ID: "a", IsActive: true, GameMode: true})
	st.Upsert(Session{ID: "c", IsActive: false})

	all := st.All()
	if len(all) != 3 || all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "c" {
		t.Errorf("All = %+v, want a,b,c ordered", all)
	}
	if active := st.Active(); len(active) != 2 {
		t.Errorf("Active = %d sessions, want 2", len(active))
	}
	if gm := st.GameMode(); len(gm) != 1 || gm[0].ID != "a" {
		t.Errorf("GameMode = %+v, want [a]", gm)
	}
	if st.Len() != 3 {
		t.Errorf("Len = %d, want 3", st.Len())
	}
}

func TestStoreConcurrentReaders(t *testing.T) {
	st := NewStore()
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			st.Upsert(Session{ID: fmt.Sprintf("u%d", i%10), AccruedSeconds: i, IsActive: i%2 == 0})
		}
	}()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = st.All()
				_ = st.Active()
				_, _ = st.Get("u3")
			}
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(done)
	wg.Wait()
}
