package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-messenger/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrCallNotFound    = errors.New("call not found")
)

// MessageCursor bounds a history page. Only messages strictly before
// (Time, ID) in (timestamp, id) order are listed. A zero Time means no bound
// and an empty ID bounds on Time alone.
type MessageCursor struct {
	Time time.Time
	ID   string
}

// Repository is the persistence gateway. Writes are issued asynchronously by
// the dispatcher; membership and message lookups are read synchronously.
type Repository interface {
	// UpsertUser inserts u if absent. Otherwise it only marks the user online
	// and refreshes last-seen; stored profile fields are never overwritten.
	UpsertUser(ctx context.Context, u *domain.User) (created bool, err error)
	SetUserOnline(ctx context.Context, userID string, online bool, lastSeen time.Time) error
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)

	InsertMessage(ctx context.Context, m *domain.Message) error
	UpdateMessageText(ctx context.Context, id, text string) (int64, error)
	MarkMessageRead(ctx context.Context, id string) (int64, error)
	MarkMessageDeleted(ctx context.Context, id string) (int64, error)
	GetMessageByID(ctx context.Context, id string) (*domain.Message, error)
	// ListMessages returns up to limit non-deleted messages before the
	// cursor, oldest first.
	ListMessages(ctx context.Context, chatID string, before MessageCursor, limit int) ([]domain.Message, error)

	// ListChatMembers resolves the fan-out set. The general chat contains
	// every known user.
	ListChatMembers(ctx context.Context, chatID string) ([]string, error)
	CreateChat(ctx context.Context, c *domain.Chat, memberIDs []string) error
	ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error)
	EnsureGeneralChat(ctx context.Context) error

	InsertStory(ctx context.Context, s *domain.Story) error
	ListActiveStories(ctx context.Context, now time.Time) ([]domain.Story, error)

	// UpsertReaction keeps one row per (message, user, reaction).
	UpsertReaction(ctx context.Context, r *domain.Reaction) error
	ListReactions(ctx context.Context, messageID string) ([]domain.Reaction, error)

	InsertCall(ctx context.Context, c *domain.Call) error
	EndCall(ctx context.Context, callID string, endedAt time.Time) (int64, error)
	GetCall(ctx context.Context, callID string) (*domain.Call, error)
}
