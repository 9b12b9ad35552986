package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeAuth     = "auth"
	MsgTypeMessage  = "message"
	MsgTypeTyping   = "typing"
	MsgTypeRead     = "read"
	MsgTypeReaction = "reaction"
	MsgTypeEdit     = "edit"
	MsgTypeDelete   = "delete"
	MsgTypeStory    = "story"
	MsgTypeCall     = "call"
	MsgTypePing     = "ping"
	MsgTypeLogout   = "logout"
)

// Inner discriminant of a call frame.
const (
	CallOffer     = "offer"
	CallAnswer    = "answer"
	CallCandidate = "candidate"
	CallEnd       = "end"
)

// WebSocket message types to client.
const (
	MsgTypeAuthSuccess     = "auth_success"
	MsgTypeUserOnline      = "user_online"
	MsgTypeUserOffline     = "user_offline"
	MsgTypeNewMessage      = "new_message"
	MsgTypeMessageSent     = "message_sent"
	MsgTypeMessageRead     = "message_read"
	MsgTypeMessageReaction = "message_reaction"
	MsgTypeMessageEdited   = "message_edited"
	MsgTypeMessageDeleted  = "message_deleted"
	MsgTypeNewStory        = "new_story"
	MsgTypeCallInitiated   = "call_initiated"
	MsgTypeCallOffer       = "call_offer"
	MsgTypeCallAnswer      = "call_answer"
	MsgTypeCallCandidate   = "call_candidate"
	MsgTypeCallEnded       = "call_ended"
	MsgTypePong            = "pong"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type AuthMessage struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

type ChatMessageIn struct {
	ChatID   string `json:"chatId"`
	Text     string `json:"text"`
	Image    string `json:"image"`
	File     string `json:"file"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// Empty reports whether the message carries no body at all.
func (m *ChatMessageIn) Empty() bool {
	return m.Text == "" && m.Image == "" && m.File == ""
}

type TypingMessage struct {
	ChatID     string `json:"chatId"`
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

type ReadMessage struct {
	MessageID string `json:"messageId"`
}

type ReactionMessage struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

type EditMessage struct {
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

type DeleteMessage struct {
	MessageID string `json:"messageId"`
}

type StoryMessage struct {
	Content   string `json:"content"`
	StoryType string `json:"storyType"`
}

// CallMessage wraps a signaling payload. Offer, Answer and Candidate are
// relayed without being interpreted.
type CallMessage struct {
	Data CallData `json:"data"`
}

type CallData struct {
	Type       string          `json:"type"`
	ReceiverID string          `json:"receiverId"`
	CallID     string          `json:"callId,omitempty"`
	CallType   string          `json:"callType,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

// Server -> Client messages

type AuthSuccessMessage struct {
	Type   string        `json:"type"`
	UserID string        `json:"userId"`
	Users  []UserSummary `json:"users"`
}

type PresenceMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Fullname string `json:"fullname,omitempty"`
}

// MessageEvent carries new_message and message_sent; the payload is the same.
type MessageEvent struct {
	Type string `json:"type"`
	Message
}

type TypingEvent struct {
	Type     string `json:"type"`
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type MessageReadEvent struct {
	Type       string `json:"type"`
	MessageID  string `json:"messageId"`
	ReaderID   string `json:"readerId"`
	ReaderName string `json:"readerName"`
}

type MessageReactionEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Reaction  string `json:"reaction"`
}

type MessageEditedEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	Text      string `json:"text"`
	EditedBy  string `json:"editedBy"`
}

type MessageDeletedEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	DeletedBy string `json:"deletedBy"`
}

type StoryEvent struct {
	Type string `json:"type"`
	Story
}

type CallInitiatedEvent struct {
	Type       string `json:"type"`
	CallID     string `json:"callId"`
	ReceiverID string `json:"receiverId"`
	CallType   string `json:"callType"`
}

type CallOfferEvent struct {
	Type       string          `json:"type"`
	CallID     string          `json:"callId"`
	CallerID   string          `json:"callerId"`
	CallerName string          `json:"callerName"`
	CallType   string          `json:"callType"`
	Offer      json.RawMessage `json:"offer,omitempty"`
}

// CallSignalEvent carries call_answer, call_candidate and call_ended.
type CallSignalEvent struct {
	Type      string          `json:"type"`
	CallID    string          `json:"callId"`
	FromID    string          `json:"from"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type PongMessage struct {
	Type string `json:"type"`
}
