package presence

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRedisMirror_Keys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	m := newRedisMirror(client, "", 0)
	if got := m.onlineKey(); got != "messenger:presence:online" {
		t.Errorf("onlineKey = %q", got)
	}
	if got := m.userKey("u1"); got != "messenger:presence:user:u1" {
		t.Errorf("userKey = %q", got)
	}

	custom := newRedisMirror(client, "chat", 0)
	if got := custom.userKey("u2"); got != "chat:user:u2" {
		t.Errorf("userKey = %q", got)
	}
}

func TestNopMirror(t *testing.T) {
	var m Mirror = NopMirror{}
	ctx := context.Background()
	if err := m.SetOnline(ctx, "u1", "alice"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetOffline(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	users, err := m.OnlineUsers(ctx)
	if err != nil || len(users) != 0 {
		t.Errorf("OnlineUsers = %v, %v", users, err)
	}
}
