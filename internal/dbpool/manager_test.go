package dbpool

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestGetSyncPanicsBeforeInitialize(t *testing.T) {
	m := NewManager(time.Millisecond, nil)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected GetSync to panic before Initialize")
		}
	}()
	m.GetSync()
}

func TestStatsOnUninitializedManagerIsNilNotPanic(t *testing.T) {
	m := NewManager(time.Millisecond, nil)
	if stats := m.Stats(); stats != nil {
		t.Fatalf("expected nil stats before Initialize, got %v", stats)
	}
}

func TestCloseOnUninitializedManagerIsNoop(t *testing.T) {
	m := NewManager(time.Millisecond, nil)
	if err := m.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

// P3: concurrent readers of GetSync/GetAsync never observe a torn
// generation — every read sees a *pools from a single Initialize/Rotate
// call, never a mix.
func TestConcurrentGetSyncDuringSwapNeverPanics(t *testing.T) {
	m := NewManager(time.Millisecond, nil)
	m.current = &pools{sync: &sql.DB{}, async: &pgxpool.Pool{}}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = m.GetSync()
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		m.mu.Lock()
		m.current = &pools{sync: &sql.DB{}, async: &pgxpool.Pool{}}
		m.mu.Unlock()
	}
	close(stop)
	wg.Wait()
}
