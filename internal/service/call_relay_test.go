package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/hub"
)

func offer(t *testing.T, f *fixture, caller *hub.Client, receiverID string) string {
	t.Helper()
	err := f.svc.HandleCall(context.Background(), caller, &domain.CallData{
		Type:       domain.CallOffer,
		ReceiverID: receiverID,
		CallType:   domain.CallTypeVideo,
		Offer:      json.RawMessage(`{"sdp":"v=0"}`),
	})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	return only(t, caller, domain.MsgTypeCallInitiated).str("callId")
}

func TestCall_OfferAnswerCandidateEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.login(t, "alice")
	bob := f.login(t, "bob")
	drain(t, alice)
	drain(t, bob)

	callID := offer(t, f, alice, "bob")
	if callID == "" {
		t.Fatal("call_initiated without callId")
	}
	got := only(t, bob, domain.MsgTypeCallOffer)
	if got.str("callId") != callID || got.str("callerId") != "alice" || got.str("callType") != domain.CallTypeVideo {
		t.Errorf("call_offer = %v", got)
	}
	if sdp, _ := got["offer"].(map[string]interface{}); sdp["sdp"] != "v=0" {
		t.Errorf("offer payload not relayed verbatim: %v", got["offer"])
	}

	if err := f.svc.HandleCall(ctx, bob, &domain.CallData{Type: domain.CallAnswer, ReceiverID: "alice", CallID: callID, Answer: json.RawMessage(`{"sdp":"ok"}`)}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	ans := only(t, alice, domain.MsgTypeCallAnswer)
	if ans.str("from") != "bob" || ans.str("callId") != callID {
		t.Errorf("call_answer = %v", ans)
	}

	for i := 0; i < 3; i++ {
		if err := f.svc.HandleCall(ctx, alice, &domain.CallData{Type: domain.CallCandidate, ReceiverID: "bob", CallID: callID, Candidate: json.RawMessage(`{"c":1}`)}); err != nil {
			t.Fatalf("candidate: %v", err)
		}
	}
	if frames := drain(t, bob); len(frames) != 3 {
		t.Fatalf("bob got %v, want 3 candidates", types(frames))
	}

	if err := f.svc.HandleCall(ctx, bob, &domain.CallData{Type: domain.CallEnd, ReceiverID: "alice", CallID: callID}); err != nil {
		t.Fatalf("end: %v", err)
	}
	only(t, alice, domain.MsgTypeCallEnded)

	f.flush(t)
	rec, err := f.repo.GetCall(ctx, callID)
	if err != nil {
		t.Fatalf("call record: %v", err)
	}
	if rec.Status != domain.CallStatusEnded || rec.EndedAt == nil || rec.Type != domain.CallTypeVideo {
		t.Errorf("call record = %+v", rec)
	}
}

func TestCall_OfferToOfflineReceiverDropped(t *testing.T) {
	f := newFixture(t)
	alice := f.login(t, "alice")
	drain(t, alice)

	err := f.svc.HandleCall(context.Background(), alice, &domain.CallData{Type: domain.CallOffer, ReceiverID: "ghost"})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	none(t, alice)
}

func TestCall_RejectsOutsiders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.login(t, "alice")
	bob := f.login(t, "bob")
	eve := f.login(t, "eve")
	drain(t, alice)
	drain(t, bob)
	drain(t, eve)

	callID := offer(t, f, alice, "bob")
	drain(t, bob)

	err := f.svc.HandleCall(ctx, eve, &domain.CallData{Type: domain.CallCandidate, ReceiverID: "alice", CallID: callID})
	if !errors.Is(err, ErrCallMismatch) {
		t.Fatalf("err = %v, want ErrCallMismatch", err)
	}
	err = f.svc.HandleCall(ctx, eve, &domain.CallData{Type: domain.CallAnswer, ReceiverID: "alice", CallID: "unknown"})
	if !errors.Is(err, ErrCallMismatch) {
		t.Fatalf("unknown call err = %v, want ErrCallMismatch", err)
	}
	none(t, alice)
	none(t, bob)
}

func TestCall_VerifiesFromRepositoryWhenUntracked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.login(t, "alice")
	bob := f.login(t, "bob")
	drain(t, alice)
	drain(t, bob)

	// Started before a restart: persisted, not in memory.
	const callID = "5f0c6a8e-3b1d-4c2e-9a7f-1d2e3f4a5b6c"
	if err := f.repo.InsertCall(ctx, &domain.Call{
		ID: callID, CallerID: "alice", ReceiverID: "bob",
		Type: domain.CallTypeAudio, Status: domain.CallStatusStarted, StartedAt: testNow,
	}); err != nil {
		t.Fatalf("InsertCall: %v", err)
	}

	if err := f.svc.HandleCall(ctx, bob, &domain.CallData{Type: domain.CallAnswer, ReceiverID: "alice", CallID: callID}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got := only(t, alice, domain.MsgTypeCallAnswer); got.str("callId") != callID {
		t.Errorf("answer = %v", got)
	}
}

func TestCall_Validation(t *testing.T) {
	f := newFixture(t)
	alice := f.login(t, "alice")
	f.login(t, "bob")
	ctx := context.Background()

	tests := []struct {
		name string
		data *domain.CallData
	}{
		{"no receiver", &domain.CallData{Type: domain.CallOffer}},
		{"self call", &domain.CallData{Type: domain.CallOffer, ReceiverID: "alice"}},
		{"answer without id", &domain.CallData{Type: domain.CallAnswer, ReceiverID: "bob"}},
		{"unknown type", &domain.CallData{Type: "hangup", ReceiverID: "bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.HandleCall(ctx, alice, tt.data); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("err = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestCall_EndedWhenPartyDisconnects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.login(t, "alice")
	bob := f.login(t, "bob")
	drain(t, alice)
	drain(t, bob)

	callID := offer(t, f, alice, "bob")
	drain(t, bob)

	f.svc.HandleDisconnect(ctx, alice)
	frames := drain(t, bob)
	got := types(frames)
	if len(got) != 2 || got[0] != domain.MsgTypeCallEnded || got[1] != domain.MsgTypeUserOffline {
		t.Fatalf("bob got %v, want call_ended then user_offline", got)
	}
	if frames[0].str("callId") != callID || frames[0].str("from") != "alice" {
		t.Errorf("call_ended = %v", frames[0])
	}

	f.flush(t)
	rec, err := f.repo.GetCall(ctx, callID)
	if err != nil || rec.Status != domain.CallStatusEnded {
		t.Fatalf("call record = %+v, %v", rec, err)
	}
}

func TestCall_UnverifiedRelay(t *testing.T) {
	f := newFixture(t)
	f.svc.(*messengerService).calls.verify = false
	alice := f.login(t, "alice")
	bob := f.login(t, "bob")
	drain(t, alice)
	drain(t, bob)

	err := f.svc.HandleCall(context.Background(), alice, &domain.CallData{Type: domain.CallCandidate, ReceiverID: "bob", CallID: "made-up"})
	if err != nil {
		t.Fatalf("candidate: %v", err)
	}
	only(t, bob, domain.MsgTypeCallCandidate)
}
