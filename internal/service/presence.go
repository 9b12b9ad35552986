package service

import (
	"context"
	"encoding/json"

	"github.com/weiawesome/wes-io-messenger/pkg/log"
	"github.com/weiawesome/wes-io-messenger/pkg/pubsub"
)

func (s *messengerService) Broadcast(v interface{}, excludeUserID string) int {
	data, err := json.Marshal(v)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Msg("failed to marshal broadcast")
		return 0
	}

	delivered := 0
	for _, e := range s.hub.Snapshot() {
		if e.UserID == excludeUserID {
			continue
		}
		if e.Client.Enqueue(data) {
			delivered++
		}
	}
	return delivered
}

// sendToUser delivers v to userID if connected. A missing recipient is not
// an error.
func (s *messengerService) sendToUser(userID string, v interface{}) bool {
	c, ok := s.hub.Get(userID)
	if !ok {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.Enqueue(data)
}

// sendToUsers delivers pre-encoded data to every connected user in ids except
// skip, counting each user once.
func (s *messengerService) sendToUsers(ids []string, data []byte, skip string) int {
	seen := make(map[string]struct{}, len(ids))
	delivered := 0
	for _, id := range ids {
		if id == skip {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		c, ok := s.hub.Get(id)
		if !ok {
			continue
		}
		if c.Enqueue(data) {
			delivered++
		}
	}
	return delivered
}

// publish hands a domain event to the writer so a slow broker never stalls
// routing. Events share the writer's key ordering.
func (s *messengerService) publish(suffix, eventType, key string, payload interface{}) {
	if _, nop := s.publisher.(pubsub.NopPublisher); nop {
		return
	}
	ev, err := pubsub.NewEvent(eventType, key, payload)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldEventType, eventType).Msg("failed to build event")
		return
	}
	channel := pubsub.Channel(s.eventPrefix, suffix)
	s.writer.Go("event.publish", "event:"+key, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, channel, ev)
	})
}
