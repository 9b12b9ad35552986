package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/hub"
)

var (
	// ErrUnauthenticated is returned for frames on a session that has not authenticated.
	ErrUnauthenticated = errors.New("session not authenticated")
	// ErrInvalidPayload is returned when a frame lacks a required field.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrIdentityMismatch is returned when a session re-authenticates as another user.
	ErrIdentityMismatch = errors.New("session already bound to another user")
	// ErrCallMismatch is returned when a signaling frame names the wrong peer for a call.
	ErrCallMismatch = errors.New("call participants do not match")
)

// MessengerService routes inbound frames to their recipients. Handlers never
// close the connection; a returned error means the frame was dropped.
type MessengerService interface {
	HandleAuth(ctx context.Context, c *hub.Client, msg *domain.AuthMessage) error
	HandleMessage(ctx context.Context, c *hub.Client, msg *domain.ChatMessageIn) error
	HandleTyping(ctx context.Context, c *hub.Client, msg *domain.TypingMessage) error
	HandleRead(ctx context.Context, c *hub.Client, msg *domain.ReadMessage) error
	HandleReaction(ctx context.Context, c *hub.Client, msg *domain.ReactionMessage) error
	HandleEdit(ctx context.Context, c *hub.Client, msg *domain.EditMessage) error
	HandleDelete(ctx context.Context, c *hub.Client, msg *domain.DeleteMessage) error
	HandleStory(ctx context.Context, c *hub.Client, msg *domain.StoryMessage) error
	HandleCall(ctx context.Context, c *hub.Client, data *domain.CallData) error
	HandlePing(ctx context.Context, c *hub.Client) error
	HandleLogout(ctx context.Context, c *hub.Client) error
	// HandleDisconnect tears the session down. Only the registered connection
	// for a user marks it offline.
	HandleDisconnect(ctx context.Context, c *hub.Client)

	// ListUsers returns every known user with live online flags.
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
	// Broadcast delivers v to every routable user except excludeUserID and
	// returns how many queues accepted it.
	Broadcast(v interface{}, excludeUserID string) int
}

func invalid(reason string) error {
	return &payloadError{reason: reason}
}

type payloadError struct {
	reason string
}

func (e *payloadError) Error() string {
	return ErrInvalidPayload.Error() + ": " + e.reason
}

func (e *payloadError) Unwrap() error {
	return ErrInvalidPayload
}
