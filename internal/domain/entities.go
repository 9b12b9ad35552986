package domain

import "time"

// GeneralChatID is the public room every known user implicitly belongs to.
const GeneralChatID = "general"

// StoryTTL is how long a story stays readable after creation.
const StoryTTL = 24 * time.Hour

const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"
)

const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

const (
	CallStatusStarted = "started"
	CallStatusEnded   = "ended"
)

// User is a persisted identity. Profile fields are set on first auth only.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Fullname  string    `json:"fullname,omitempty"`
	Email     string    `json:"email,omitempty"`
	Online    bool      `json:"online"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserSummary is the user listing entry sent in auth replies and over REST.
type UserSummary struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Fullname string    `json:"fullname,omitempty"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Sender    string    `json:"senderName,omitempty"`
	Text      string    `json:"text,omitempty"`
	Image     string    `json:"image,omitempty"`
	File      string    `json:"file,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	FileSize  int64     `json:"fileSize,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Edited    bool      `json:"edited"`
	Deleted   bool      `json:"deleted"`
}

type Chat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

type Story struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Content    string    `json:"content"`
	Type       string    `json:"storyType"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// NewStory stamps creation and expiry times.
func NewStory(id, authorID, content, storyType string, now time.Time) *Story {
	return &Story{
		ID:        id,
		AuthorID:  authorID,
		Content:   content,
		Type:      storyType,
		CreatedAt: now,
		ExpiresAt: now.Add(StoryTTL),
	}
}

// ActiveAt reports whether the story is readable at now.
func (s *Story) ActiveAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

type Reaction struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	Reaction  string    `json:"reaction"`
	CreatedAt time.Time `json:"createdAt"`
}

// Call is an audit record of a signaling exchange. It never gates relaying.
type Call struct {
	ID         string     `json:"id"`
	CallerID   string     `json:"callerId"`
	ReceiverID string     `json:"receiverId"`
	Type       string     `json:"callType"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}
