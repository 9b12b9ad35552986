package hub

import (
	"errors"
	"testing"

	"github.com/weiawesome/wes-io-messenger/internal/config"
)

func TestClient_EnqueueDisconnectOnOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.SendBuffer = 2
	c := NewClient("c1", nil, nil, cfg)

	if !c.Enqueue([]byte("1")) || !c.Enqueue([]byte("2")) {
		t.Fatal("enqueue within capacity failed")
	}
	if c.Enqueue([]byte("3")) {
		t.Fatal("enqueue past capacity should fail")
	}
	if !c.Closed() {
		t.Fatal("client should be closed after overflow")
	}
	if c.Enqueue([]byte("4")) {
		t.Error("enqueue after close should fail")
	}

	var got []string
	for m := range c.Send {
		got = append(got, string(m))
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("queued = %v, want [1 2]", got)
	}
}

func TestClient_EnqueueDropOldest(t *testing.T) {
	cfg := testConfig()
	cfg.SendBuffer = 2
	cfg.OverflowPolicy = config.OverflowDropOldest
	c := NewClient("c1", nil, nil, cfg)

	for _, m := range []string{"1", "2", "3"} {
		if !c.Enqueue([]byte(m)) {
			t.Fatalf("enqueue %s failed", m)
		}
	}
	if c.Closed() {
		t.Fatal("drop_oldest must not close the client")
	}

	first, second := string(<-c.Send), string(<-c.Send)
	if first != "2" || second != "3" {
		t.Errorf("queued = [%s %s], want [2 3]", first, second)
	}
}

func TestClient_SendMessageAfterClose(t *testing.T) {
	c := NewClient("c1", nil, nil, testConfig())
	c.Close()
	c.Close()

	if err := c.SendMessage(map[string]string{"type": "pong"}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("err = %v, want ErrClientClosed", err)
	}
}

func TestClient_Allow(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 1
	cfg.RateBurst = 2
	c := NewClient("c1", nil, nil, cfg)

	if !c.Allow() || !c.Allow() {
		t.Fatal("burst should be allowed")
	}
	if c.Allow() {
		t.Error("third frame within the same instant should be limited")
	}

	unlimited := NewClient("c2", nil, nil, testConfig())
	for i := 0; i < 100; i++ {
		if !unlimited.Allow() {
			t.Fatal("zero rate limit should disable limiting")
		}
	}
}
