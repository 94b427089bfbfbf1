package feed

import (
	"sync"
	"testing"
	"time"

	"Confluence/internal/domain/models"
)

func TestClientConnectionStateUnderConcurrentAccess(t *testing.T) {
	c := &Client{pingInterval: time.Second, loc: time.UTC}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_ = c.IsConnected()
				_ = c.current()
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_ = c.Close()
			}
		}()
	}
	wg.Wait()

	if c.IsConnected() {
		t.Fatal("client reports connected after Close")
	}
	if c.current() != nil {
		t.Fatal("closed client still exposes a connection")
	}
}

func TestToSnapshotResolvesPhaseFromLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	c := &Client{loc: loc}

	// 2025-03-12 10:00 ET is inside the open phase.
	ts := time.Date(2025, 3, 12, 10, 0, 0, 0, loc)
	snap := c.toSnapshot(&wireSnapshot{
		Symbol:     "SPY",
		T:          ts.UnixMilli(),
		Indicators: map[string]float64{},
	})
	if snap.Phase != models.PhaseOpen {
		t.Fatalf("expected open phase, got %s", snap.Phase)
	}
}
