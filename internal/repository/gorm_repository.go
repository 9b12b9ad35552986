package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-messenger/internal/domain"
)

// GormRepository implements Repository using GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM-based repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Users

func (r *GormRepository) UpsertUser(ctx context.Context, u *domain.User) (bool, error) {
	if u.LastSeen.IsZero() {
		u.LastSeen = time.Now().UTC()
	}
	u.Online = true

	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(domain.UserToModel(u))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			created = true
			return nil
		}
		return tx.Model(&domain.UserModel{}).
			Where("id = ?", u.ID).
			Updates(map[string]interface{}{
				"online":    true,
				"last_seen": u.LastSeen,
			}).Error
	})
	if err != nil {
		return false, fmt.Errorf("repository: upsert user %s: %w", u.ID, err)
	}
	return created, nil
}

func (r *GormRepository) SetUserOnline(ctx context.Context, userID string, online bool, lastSeen time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"online":    online,
			"last_seen": lastSeen,
		}).Error
	if err != nil {
		return fmt.Errorf("repository: set online %s: %w", userID, err)
	}
	return nil
}

func (r *GormRepository) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Order("username ASC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("repository: list users: %w", err)
	}

	out := make([]domain.UserSummary, 0, len(models))
	for _, m := range models {
		out = append(out, domain.UserSummary{
			ID:       m.ID,
			Username: m.Username,
			Fullname: m.Fullname,
			Online:   m.Online,
			LastSeen: m.LastSeen,
		})
	}
	return out, nil
}

func (r *GormRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// usernames maps user ids to display names for the given ids.
func (r *GormRepository) usernames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Select("id", "username").Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		names[m.ID] = m.Username
	}
	return names, nil
}

// Messages

func (r *GormRepository) InsertMessage(ctx context.Context, m *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(domain.MessageToModel(m)).Error; err != nil {
		return fmt.Errorf("repository: insert message %s: %w", m.ID, err)
	}
	return nil
}

func (r *GormRepository) updateMessage(ctx context.Context, op, id string, fields map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.MessageModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return 0, fmt.Errorf("repository: %s %s: %w", op, id, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) UpdateMessageText(ctx context.Context, id, text string) (int64, error) {
	return r.updateMessage(ctx, "edit message", id, map[string]interface{}{
		"text":   text,
		"edited": true,
	})
}

func (r *GormRepository) MarkMessageRead(ctx context.Context, id string) (int64, error) {
	return r.updateMessage(ctx, "mark read", id, map[string]interface{}{"is_read": true})
}

// MarkMessageDeleted sets the soft-delete flag. The text is kept.
func (r *GormRepository) MarkMessageDeleted(ctx context.Context, id string) (int64, error) {
	return r.updateMessage(ctx, "delete message", id, map[string]interface{}{"deleted": true})
}

func (r *GormRepository) GetMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	var model domain.MessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (r *GormRepository) ListMessages(ctx context.Context, chatID string, before MessageCursor, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	q := r.db.WithContext(ctx).
		Where("chat_id = ? AND deleted = ?", chatID, false)
	if !before.Time.IsZero() {
		t := before.Time.UTC()
		if before.ID == "" {
			q = q.Where("timestamp < ?", t)
		} else {
			// Same order as below, so rows sharing the cursor's timestamp are
			// neither skipped nor repeated.
			q = q.Where("(timestamp < ? OR (timestamp = ? AND id < ?))", t, t, before.ID)
		}
	}

	var models []domain.MessageModel
	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("repository: list messages %s: %w", chatID, err)
	}

	senderIDs := make([]string, 0, len(models))
	for _, m := range models {
		senderIDs = append(senderIDs, m.SenderID)
	}
	names, err := r.usernames(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: list messages %s: %w", chatID, err)
	}

	out := make([]domain.Message, len(models))
	for i, m := range models {
		msg := m.ToDomain()
		msg.Sender = names[m.SenderID]
		out[len(models)-1-i] = *msg
	}
	return out, nil
}

// Chats

func (r *GormRepository) ListChatMembers(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	var err error
	if chatID == domain.GeneralChatID {
		err = r.db.WithContext(ctx).Model(&domain.UserModel{}).Pluck("id", &ids).Error
	} else {
		err = r.db.WithContext(ctx).Model(&domain.ChatMemberModel{}).
			Where("chat_id = ?", chatID).
			Pluck("user_id", &ids).Error
	}
	if err != nil {
		return nil, fmt.Errorf("repository: list members %s: %w", chatID, err)
	}
	return ids, nil
}

func (r *GormRepository) CreateChat(ctx context.Context, c *domain.Chat, memberIDs []string) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	model := &domain.ChatModel{ID: c.ID, Name: c.Name, Type: c.Type, CreatedAt: c.CreatedAt}

	seen := make(map[string]bool, len(memberIDs))
	members := make([]domain.ChatMemberModel, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, domain.ChatMemberModel{ChatID: c.ID, UserID: id, JoinedAt: c.CreatedAt})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return fmt.Errorf("repository: create chat %s: %w", c.ID, err)
	}
	return nil
}

// ListChatsForUser returns the general chat first, then the user's chats
// newest first.
func (r *GormRepository) ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	var models []domain.ChatModel
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_members ON chat_members.chat_id = chats.id").
		Where("chat_members.user_id = ? AND chats.id <> ?", userID, domain.GeneralChatID).
		Order("chats.created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list chats for %s: %w", userID, err)
	}

	var general domain.ChatModel
	out := make([]domain.Chat, 0, len(models)+1)
	if err := r.db.WithContext(ctx).First(&general, "id = ?", domain.GeneralChatID).Error; err == nil {
		out = append(out, *general.ToDomain())
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("repository: list chats for %s: %w", userID, err)
	}
	for _, m := range models {
		out = append(out, *m.ToDomain())
	}
	return out, nil
}

func (r *GormRepository) EnsureGeneralChat(ctx context.Context) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.ChatModel{
		ID:   domain.GeneralChatID,
		Name: "General",
		Type: domain.ChatTypeGroup,
	}).Error
	if err != nil {
		return fmt.Errorf("repository: ensure general chat: %w", err)
	}
	return nil
}

// Stories

func (r *GormRepository) InsertStory(ctx context.Context, s *domain.Story) error {
	model := &domain.StoryModel{
		ID:        s.ID,
		AuthorID:  s.AuthorID,
		Content:   s.Content,
		Type:      s.Type,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("repository: insert story %s: %w", s.ID, err)
	}
	return nil
}

// ListActiveStories returns stories with now < expires_at, newest first.
func (r *GormRepository) ListActiveStories(ctx context.Context, now time.Time) ([]domain.Story, error) {
	var models []domain.StoryModel
	err := r.db.WithContext(ctx).
		Where("expires_at > ?", now.UTC()).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list stories: %w", err)
	}

	authorIDs := make([]string, 0, len(models))
	for _, m := range models {
		authorIDs = append(authorIDs, m.AuthorID)
	}
	names, err := r.usernames(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: list stories: %w", err)
	}

	out := make([]domain.Story, 0, len(models))
	for _, m := range models {
		s := m.ToDomain()
		s.AuthorName = names[m.AuthorID]
		out = append(out, *s)
	}
	return out, nil
}

// Reactions

func (r *GormRepository) UpsertReaction(ctx context.Context, rx *domain.Reaction) error {
	if rx.CreatedAt.IsZero() {
		rx.CreatedAt = time.Now().UTC()
	}
	model := &domain.ReactionModel{
		MessageID: rx.MessageID,
		UserID:    rx.UserID,
		Reaction:  rx.Reaction,
		CreatedAt: rx.CreatedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "reaction"}},
		DoUpdates: clause.AssignmentColumns([]string{"created_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("repository: upsert reaction on %s: %w", rx.MessageID, err)
	}
	return nil
}

func (r *GormRepository) ListReactions(ctx context.Context, messageID string) ([]domain.Reaction, error) {
	var models []domain.ReactionModel
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list reactions %s: %w", messageID, err)
	}
	out := make([]domain.Reaction, 0, len(models))
	for _, m := range models {
		out = append(out, *m.ToDomain())
	}
	return out, nil
}

// Calls

func (r *GormRepository) InsertCall(ctx context.Context, c *domain.Call) error {
	model := &domain.CallModel{
		ID:         c.ID,
		CallerID:   c.CallerID,
		ReceiverID: c.ReceiverID,
		Type:       c.Type,
		Status:     c.Status,
		StartedAt:  c.StartedAt,
		EndedAt:    c.EndedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("repository: insert call %s: %w", c.ID, err)
	}
	return nil
}

// EndCall marks a started call ended. Ending twice affects zero rows.
func (r *GormRepository) EndCall(ctx context.Context, callID string, endedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.CallModel{}).
		Where("id = ? AND status = ?", callID, domain.CallStatusStarted).
		Updates(map[string]interface{}{
			"status":   domain.CallStatusEnded,
			"ended_at": endedAt,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("repository: end call %s: %w", callID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) GetCall(ctx context.Context, callID string) (*domain.Call, error) {
	var model domain.CallModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", callID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}
