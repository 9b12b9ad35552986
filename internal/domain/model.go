package domain

import "time"

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	Username  string    `gorm:"type:varchar(100);not null"`
	Fullname  string    `gorm:"type:varchar(200)"`
	Email     string    `gorm:"type:varchar(255)"`
	Online    bool      `gorm:"not null;default:false"`
	LastSeen  time.Time `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) ToDomain() *User {
	return &User{
		ID:        m.ID,
		Username:  m.Username,
		Fullname:  m.Fullname,
		Email:     m.Email,
		Online:    m.Online,
		LastSeen:  m.LastSeen,
		CreatedAt: m.CreatedAt,
	}
}

func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:        u.ID,
		Username:  u.Username,
		Fullname:  u.Fullname,
		Email:     u.Email,
		Online:    u.Online,
		LastSeen:  u.LastSeen,
		CreatedAt: u.CreatedAt,
	}
}

// MessageModel is the GORM model for the messages table. Rows are never
// physically removed; Deleted marks a soft delete.
type MessageModel struct {
	ID        string `gorm:"type:varchar(64);primaryKey"`
	ChatID    string `gorm:"type:varchar(64);index:idx_messages_chat_ts,priority:1"`
	SenderID  string `gorm:"type:varchar(64);index;not null"`
	Text      string `gorm:"type:text"`
	Image     string `gorm:"type:varchar(512)"`
	File      string `gorm:"type:varchar(512)"`
	FileName  string `gorm:"type:varchar(255)"`
	FileSize  int64
	Timestamp time.Time `gorm:"index:idx_messages_chat_ts,priority:2;not null"`
	Read      bool      `gorm:"column:is_read;not null;default:false"`
	Edited    bool      `gorm:"not null;default:false"`
	Deleted   bool      `gorm:"not null;default:false"`
}

func (MessageModel) TableName() string { return "messages" }

func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Image:     m.Image,
		File:      m.File,
		FileName:  m.FileName,
		FileSize:  m.FileSize,
		Timestamp: m.Timestamp,
		Read:      m.Read,
		Edited:    m.Edited,
		Deleted:   m.Deleted,
	}
}

func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		Image:     msg.Image,
		File:      msg.File,
		FileName:  msg.FileName,
		FileSize:  msg.FileSize,
		Timestamp: msg.Timestamp,
		Read:      msg.Read,
		Edited:    msg.Edited,
		Deleted:   msg.Deleted,
	}
}

type ChatModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	Name      string    `gorm:"type:varchar(200)"`
	Type      string    `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ChatModel) TableName() string { return "chats" }

func (m *ChatModel) ToDomain() *Chat {
	return &Chat{ID: m.ID, Name: m.Name, Type: m.Type, CreatedAt: m.CreatedAt}
}

// ChatMemberModel relates users to chats.
type ChatMemberModel struct {
	ChatID   string    `gorm:"type:varchar(64);primaryKey"`
	UserID   string    `gorm:"type:varchar(64);primaryKey;index"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

func (ChatMemberModel) TableName() string { return "chat_members" }

type StoryModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	AuthorID  string    `gorm:"type:varchar(64);index;not null"`
	Content   string    `gorm:"type:text"`
	Type      string    `gorm:"type:varchar(32)"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (StoryModel) TableName() string { return "stories" }

func (m *StoryModel) ToDomain() *Story {
	return &Story{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}

// ReactionModel holds at most one row per (message, user, reaction).
type ReactionModel struct {
	MessageID string    `gorm:"type:varchar(64);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);primaryKey"`
	Reaction  string    `gorm:"type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ReactionModel) TableName() string { return "reactions" }

func (m *ReactionModel) ToDomain() *Reaction {
	return &Reaction{MessageID: m.MessageID, UserID: m.UserID, Reaction: m.Reaction, CreatedAt: m.CreatedAt}
}

type CallModel struct {
	ID         string    `gorm:"type:varchar(64);primaryKey"`
	CallerID   string    `gorm:"type:varchar(64);index;not null"`
	ReceiverID string    `gorm:"type:varchar(64);index;not null"`
	Type       string    `gorm:"type:varchar(16)"`
	Status     string    `gorm:"type:varchar(16);not null"`
	StartedAt  time.Time `gorm:"not null"`
	EndedAt    *time.Time
}

func (CallModel) TableName() string { return "calls" }

func (m *CallModel) ToDomain() *Call {
	return &Call{
		ID:         m.ID,
		CallerID:   m.CallerID,
		ReceiverID: m.ReceiverID,
		Type:       m.Type,
		Status:     m.Status,
		StartedAt:  m.StartedAt,
		EndedAt:    m.EndedAt,
	}
}

// Models lists every table for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&MessageModel{},
		&ChatModel{},
		&ChatMemberModel{},
		&StoryModel{},
		&ReactionModel{},
		&CallModel{},
	}
}
