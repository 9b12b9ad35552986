package domain

import (
	"testing"
	"time"
)

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession("c1")
	if s.GetState() != StateUnauthenticated {
		t.Fatalf("initial state = %v", s.GetState())
	}

	ok, first := s.Authenticate("u1", "alice", "Alice A", "a@example.com")
	if !ok || !first {
		t.Fatalf("Authenticate = %v, %v; want true, true", ok, first)
	}
	if !s.IsAuthenticated() || s.GetUserID() != "u1" || s.GetUsername() != "alice" {
		t.Errorf("session = %+v", s)
	}

	ok, first = s.Authenticate("u1", "alice", "", "")
	if !ok || first {
		t.Errorf("re-auth same id = %v, %v; want true, false", ok, first)
	}

	ok, _ = s.Authenticate("u2", "bob", "", "")
	if ok {
		t.Error("re-auth as a different id must be refused")
	}
	if s.GetUserID() != "u1" {
		t.Errorf("identity changed to %q", s.GetUserID())
	}

	if prev := s.Close(); prev != StateAuthenticated {
		t.Errorf("Close prev = %v, want authenticated", prev)
	}
	if prev := s.Close(); prev != StateClosed {
		t.Errorf("second Close prev = %v, want closed", prev)
	}

	if ok, _ := s.Authenticate("u1", "alice", "", ""); ok {
		t.Error("closed session must not re-authenticate")
	}
}

func TestSession_IdleSince(t *testing.T) {
	s := NewSession("c1")
	s.LastActiveAt = time.Now().Add(-time.Minute)
	if d := s.IdleSince(time.Now()); d < time.Minute {
		t.Errorf("IdleSince = %v, want >= 1m", d)
	}
	s.UpdateActivity()
	if d := s.IdleSince(time.Now()); d > time.Second {
		t.Errorf("IdleSince after activity = %v", d)
	}
}

func TestStory_ActiveAt(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st := NewStory("s1", "u1", "hi", "text", created)

	if !st.ActiveAt(created.Add(time.Hour)) {
		t.Error("story should be active one hour after creation")
	}
	if st.ActiveAt(created.Add(25 * time.Hour)) {
		t.Error("story should be expired 25 hours after creation")
	}
	if st.ActiveAt(created.Add(StoryTTL)) {
		t.Error("story should be expired exactly at expiresAt")
	}
}
