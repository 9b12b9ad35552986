package service

import (
	"context"
	"errors"
	"sync"

	"github.com/weiawesome/wes-io-messenger/internal/audit"
	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/hub"
	"github.com/weiawesome/wes-io-messenger/internal/repository"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
	"github.com/weiawesome/wes-io-messenger/pkg/pubsub"
)

type activeCall struct {
	ID         string
	CallerID   string
	ReceiverID string
	Type       string
}

// involves reports whether {a, b} are exactly the call's two parties.
func (c activeCall) involves(a, b string) bool {
	return (c.CallerID == a && c.ReceiverID == b) || (c.CallerID == b && c.ReceiverID == a)
}

func (c activeCall) peer(userID string) string {
	if c.CallerID == userID {
		return c.ReceiverID
	}
	return c.CallerID
}

// callTable tracks calls started by this process that have not ended.
type callTable struct {
	mu     sync.Mutex
	calls  map[string]activeCall
	verify bool
}

func newCallTable(verify bool) *callTable {
	return &callTable{calls: make(map[string]activeCall), verify: verify}
}

func (t *callTable) add(c activeCall) {
	t.mu.Lock()
	t.calls[c.ID] = c
	t.mu.Unlock()
}

func (t *callTable) get(id string) (activeCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	return c, ok
}

func (t *callTable) remove(id string) {
	t.mu.Lock()
	delete(t.calls, id)
	t.mu.Unlock()
}

// takeFor removes and returns every call userID is part of.
func (t *callTable) takeFor(userID string) []activeCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []activeCall
	for id, c := range t.calls {
		if c.CallerID == userID || c.ReceiverID == userID {
			out = append(out, c)
			delete(t.calls, id)
		}
	}
	return out
}

func (s *messengerService) HandleCall(ctx context.Context, c *hub.Client, data *domain.CallData) error {
	userID, username, err := requireAuth(c)
	if err != nil {
		return err
	}
	if data == nil || data.ReceiverID == "" {
		return invalid("data.receiverId is required")
	}

	switch data.Type {
	case domain.CallOffer:
		return s.callOffer(ctx, c, userID, username, data)
	case domain.CallAnswer, domain.CallCandidate, domain.CallEnd:
		if data.CallID == "" {
			return invalid("data.callId is required")
		}
		if err := s.verifyCall(ctx, data.CallID, userID, data.ReceiverID); err != nil {
			return err
		}
	default:
		return invalid("unknown call type " + data.Type)
	}

	switch data.Type {
	case domain.CallAnswer:
		s.sendToUser(data.ReceiverID, &domain.CallSignalEvent{
			Type:   domain.MsgTypeCallAnswer,
			CallID: data.CallID,
			FromID: userID,
			Answer: data.Answer,
		})
	case domain.CallCandidate:
		s.sendToUser(data.ReceiverID, &domain.CallSignalEvent{
			Type:      domain.MsgTypeCallCandidate,
			CallID:    data.CallID,
			FromID:    userID,
			Candidate: data.Candidate,
		})
	case domain.CallEnd:
		call, ok := s.calls.get(data.CallID)
		if !ok || !call.involves(userID, data.ReceiverID) {
			call = activeCall{ID: data.CallID, CallerID: userID, ReceiverID: data.ReceiverID}
		}
		s.endCall(ctx, call, userID)
	}
	return nil
}

func (s *messengerService) callOffer(ctx context.Context, c *hub.Client, callerID, callerName string, data *domain.CallData) error {
	if data.ReceiverID == callerID {
		return invalid("cannot call yourself")
	}
	if !s.hub.IsOnline(data.ReceiverID) {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldReceiverID, data.ReceiverID).Msg("call receiver offline, offer dropped")
		return nil
	}

	callID, err := s.ids.Generate()
	if err != nil {
		return err
	}
	callType := data.CallType
	if callType == "" {
		callType = domain.CallTypeAudio
	}

	call := activeCall{ID: callID, CallerID: callerID, ReceiverID: data.ReceiverID, Type: callType}
	s.calls.add(call)

	record := &domain.Call{
		ID:         callID,
		CallerID:   callerID,
		ReceiverID: data.ReceiverID,
		Type:       callType,
		Status:     domain.CallStatusStarted,
		StartedAt:  s.now().UTC(),
	}
	s.writer.Go("call.insert", callKey(callID), func(ctx context.Context) error {
		return s.repo.InsertCall(ctx, record)
	})

	s.sendToUser(data.ReceiverID, &domain.CallOfferEvent{
		Type:       domain.MsgTypeCallOffer,
		CallID:     callID,
		CallerID:   callerID,
		CallerName: callerName,
		CallType:   callType,
		Offer:      data.Offer,
	})

	s.publish(pubsub.ChannelCalls, pubsub.EventCallStarted, callID, pubsub.CallPayload{
		CallID: callID, CallerID: callerID, ReceiverID: data.ReceiverID, CallType: callType,
	})
	audit.LogWithDetail(ctx, audit.ActionCallStart, callerID, callID, callType, "call offered")

	return c.SendMessage(&domain.CallInitiatedEvent{
		Type:       domain.MsgTypeCallInitiated,
		CallID:     callID,
		ReceiverID: data.ReceiverID,
		CallType:   callType,
	})
}

// verifyCall checks that fromID and toID are the two parties of callID. Ids
// this process could not have minted fail fast; calls not tracked in memory
// are resolved from the repository.
func (s *messengerService) verifyCall(ctx context.Context, callID, fromID, toID string) error {
	if !s.calls.verify {
		return nil
	}
	if ok, _ := s.ids.Validate(callID); !ok {
		return ErrCallMismatch
	}

	call, ok := s.calls.get(callID)
	if !ok {
		rec, err := s.repo.GetCall(ctx, callID)
		if err != nil {
			if !errors.Is(err, repository.ErrCallNotFound) {
				return err
			}
			return ErrCallMismatch
		}
		call = activeCall{ID: rec.ID, CallerID: rec.CallerID, ReceiverID: rec.ReceiverID, Type: rec.Type}
	}

	if !call.involves(fromID, toID) {
		return ErrCallMismatch
	}
	return nil
}

// endCall relays call_ended from endedBy to the other party and closes the
// record.
func (s *messengerService) endCall(ctx context.Context, call activeCall, endedBy string) {
	s.calls.remove(call.ID)

	endedAt := s.now().UTC()
	s.writer.Go("call.end", callKey(call.ID), func(ctx context.Context) error {
		_, err := s.repo.EndCall(ctx, call.ID, endedAt)
		return err
	})

	s.sendToUser(call.peer(endedBy), &domain.CallSignalEvent{
		Type:   domain.MsgTypeCallEnded,
		CallID: call.ID,
		FromID: endedBy,
	})

	s.publish(pubsub.ChannelCalls, pubsub.EventCallEnded, call.ID, pubsub.CallPayload{
		CallID: call.ID, CallerID: call.CallerID, ReceiverID: call.ReceiverID, CallType: call.Type,
	})
	audit.Log(ctx, audit.ActionCallEnd, endedBy, call.ID, "call ended")
}

// endCallsFor ends every call userID was part of when its session goes away.
func (s *messengerService) endCallsFor(ctx context.Context, userID string) {
	for _, call := range s.calls.takeFor(userID) {
		s.endCall(ctx, call, userID)
	}
}

func callKey(id string) string { return "call:" + id }
