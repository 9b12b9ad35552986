package hub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-messenger/internal/config"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		SendBuffer:     4,
		OverflowPolicy: config.OverflowDisconnect,
		IdleTimeout:    time.Minute,
	}
}

func TestHub_PutGetRemove(t *testing.T) {
	h := NewHub(testConfig())
	c := NewClient("c1", h, nil, testConfig())

	if _, ok := h.Get("u1"); ok {
		t.Fatal("unexpected entry before Put")
	}
	h.Put("u1", c)

	got, ok := h.Get("u1")
	if !ok || got != c {
		t.Fatalf("Get = %v, %v; want c1", got, ok)
	}
	if !h.Remove("u1", c) {
		t.Fatal("Remove should report removal")
	}
	if h.IsOnline("u1") {
		t.Error("user still online after Remove")
	}
	if h.Remove("u1", c) {
		t.Error("second Remove should be a no-op")
	}
}

func TestHub_GuardedRemove(t *testing.T) {
	h := NewHub(testConfig())
	first := NewClient("c1", h, nil, testConfig())
	second := NewClient("c2", h, nil, testConfig())

	h.Put("u1", first)
	if replaced := h.Put("u1", second); replaced != first {
		t.Errorf("Put replaced = %v, want first client", replaced)
	}

	if h.Remove("u1", first) {
		t.Error("stale client must not evict the newer entry")
	}
	got, ok := h.Get("u1")
	if !ok || got != second {
		t.Fatalf("Get = %v, %v; want second client", got, ok)
	}
	if !h.Remove("u1", second) {
		t.Error("current client should be removable")
	}
}

func TestHub_Snapshot(t *testing.T) {
	h := NewHub(testConfig())
	for i := 0; i < 3; i++ {
		h.Put(fmt.Sprintf("u%d", i), NewClient(fmt.Sprintf("c%d", i), h, nil, testConfig()))
	}

	snap := h.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len(Snapshot) = %d, want 3", len(snap))
	}
	seen := map[string]bool{}
	for _, e := range snap {
		if seen[e.UserID] {
			t.Errorf("duplicate entry %s", e.UserID)
		}
		seen[e.UserID] = true
	}

	// Mutating after the snapshot does not change it.
	h.Put("u9", NewClient("c9", h, nil, testConfig()))
	if len(snap) != 3 {
		t.Error("snapshot changed after Put")
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	h := NewHub(testConfig())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i%10)
			c := NewClient(fmt.Sprintf("c%d", i), h, nil, testConfig())
			h.Register(c)
			h.Put(id, c)
			h.Get(id)
			h.Snapshot()
			h.Remove(id, c)
			h.Unregister(c)
		}(i)
	}
	wg.Wait()

	if n := h.ConnectionCount(); n != 0 {
		t.Errorf("ConnectionCount = %d, want 0", n)
	}
}

func TestHub_SweepIdle(t *testing.T) {
	h := NewHub(testConfig())
	idle := NewClient("idle", h, nil, testConfig())
	active := NewClient("active", h, nil, testConfig())
	h.Register(idle)
	h.Register(active)

	idle.Session.LastActiveAt = time.Now().Add(-2 * time.Minute)

	if n := h.sweepIdle(time.Now()); n != 1 {
		t.Fatalf("sweepIdle closed %d, want 1", n)
	}
	if !idle.Closed() {
		t.Error("idle client not closed")
	}
	if active.Closed() {
		t.Error("active client closed")
	}
}

func TestHub_RunStops(t *testing.T) {
	cfg := testConfig()
	cfg.SweepInterval = 10 * time.Millisecond
	h := NewHub(cfg)
	c := NewClient("c1", h, nil, cfg)
	h.Register(c)

	done := make(chan struct{})
	go func() {
		h.Run(context.Background())
		close(done)
	}()

	h.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if !c.Closed() {
		t.Error("Stop should close open clients")
	}
	h.Stop()
}
