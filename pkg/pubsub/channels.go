package pubsub

// Channel suffixes. The full name is "<prefix>.<suffix>".
const (
	ChannelMessages = "messages"
	ChannelPresence = "presence"
	ChannelCalls    = "calls"
	ChannelStories  = "stories"
)

// Event types.
const (
	EventMessageCreated = "message.created"
	EventMessageEdited  = "message.edited"
	EventMessageDeleted = "message.deleted"
	EventUserOnline     = "user.online"
	EventUserOffline    = "user.offline"
	EventCallStarted    = "call.started"
	EventCallEnded      = "call.ended"
	EventStoryCreated   = "story.created"
)

// Channel returns the full channel name for suffix.
func Channel(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + "." + suffix
}

// Channels returns every channel this service publishes to.
func Channels(prefix string) []string {
	return []string{
		Channel(prefix, ChannelMessages),
		Channel(prefix, ChannelPresence),
		Channel(prefix, ChannelCalls),
		Channel(prefix, ChannelStories),
	}
}

// MessagePayload accompanies message.* events.
type MessagePayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId,omitempty"`
	Text      string `json:"text,omitempty"`
}

// PresencePayload accompanies user.* events.
type PresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Online   bool   `json:"online"`
}

// CallPayload accompanies call.* events.
type CallPayload struct {
	CallID     string `json:"callId"`
	CallerID   string `json:"callerId"`
	ReceiverID string `json:"receiverId"`
	CallType   string `json:"callType,omitempty"`
}

// StoryPayload accompanies story.* events.
type StoryPayload struct {
	StoryID  string `json:"storyId"`
	AuthorID string `json:"authorId"`
	Type     string `json:"storyType"`
}
