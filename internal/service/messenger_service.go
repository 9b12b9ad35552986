package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-messenger/internal/audit"
	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/hub"
	"github.com/weiawesome/wes-io-messenger/internal/idgen"
	"github.com/weiawesome/wes-io-messenger/internal/metrics"
	"github.com/weiawesome/wes-io-messenger/internal/persist"
	"github.com/weiawesome/wes-io-messenger/internal/presence"
	"github.com/weiawesome/wes-io-messenger/internal/repository"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
	"github.com/weiawesome/wes-io-messenger/pkg/pubsub"
)

// Options wires a MessengerService. Hub, Repo and Writer are required.
type Options struct {
	Hub       *hub.Hub
	Repo      repository.Repository
	Writer    *persist.Writer
	Publisher pubsub.Publisher
	// EventPrefix namespaces published channels, e.g. "messenger".
	EventPrefix string
	Mirror      presence.Mirror
	// MessageIDs mints message ids; IDs mints call, story and chat ids.
	MessageIDs             idgen.Generator
	IDs                    idgen.Generator
	VerifyCallParticipants bool
	RecentMessages         int
	Now                    func() time.Time
}

type messengerService struct {
	hub         *hub.Hub
	repo        repository.Repository
	writer      *persist.Writer
	publisher   pubsub.Publisher
	eventPrefix string
	mirror      presence.Mirror
	messageIDs  idgen.Generator
	ids         idgen.Generator
	now         func() time.Time

	users  singleflight.Group
	recent *recentMessages
	calls  *callTable
}

func NewMessengerService(opts Options) MessengerService {
	s := &messengerService{
		hub:         opts.Hub,
		repo:        opts.Repo,
		writer:      opts.Writer,
		publisher:   opts.Publisher,
		eventPrefix: opts.EventPrefix,
		mirror:      opts.Mirror,
		messageIDs:  opts.MessageIDs,
		ids:         opts.IDs,
		now:         opts.Now,
		recent:      newRecentMessages(opts.RecentMessages),
		calls:       newCallTable(opts.VerifyCallParticipants),
	}
	if s.publisher == nil {
		s.publisher = pubsub.NopPublisher{}
	}
	if s.mirror == nil {
		s.mirror = presence.NopMirror{}
	}
	if s.messageIDs == nil {
		s.messageIDs = idgen.NewULIDGenerator()
	}
	if s.ids == nil {
		s.ids = idgen.NewUUIDGenerator()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// requireAuth returns the session identity or ErrUnauthenticated.
func requireAuth(c *hub.Client) (userID, username string, err error) {
	if !c.Session.IsAuthenticated() {
		return "", "", ErrUnauthenticated
	}
	userID, username = c.Session.Identity()
	return userID, username, nil
}

func (s *messengerService) HandleAuth(ctx context.Context, c *hub.Client, msg *domain.AuthMessage) error {
	if msg.UserID == "" {
		return invalid("userId is required")
	}
	username := msg.Username
	if username == "" {
		username = msg.UserID
	}

	ok, first := c.Session.Authenticate(msg.UserID, username, msg.Fullname, msg.Email)
	if !ok {
		if c.Session.GetState() == domain.StateClosed {
			return ErrUnauthenticated
		}
		return ErrIdentityMismatch
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:       msg.UserID,
		Username: username,
		Fullname: msg.Fullname,
		Email:    msg.Email,
		LastSeen: now,
	}
	s.writer.Go("user.upsert", userKey(user.ID), func(ctx context.Context) error {
		created, err := s.repo.UpsertUser(ctx, user)
		if err == nil && created {
			l := log.L()
			l.Info().Str(log.FieldUserID, user.ID).Str(log.FieldUsername, user.Username).Msg("new user created")
		}
		return err
	})

	replaced := s.hub.Put(msg.UserID, c)
	if replaced != nil {
		l := log.Ctx(ctx)
		l.Info().Str(log.FieldUserID, msg.UserID).Str("replaced_client_id", replaced.ID).Msg("user re-authenticated on a new connection")
	}

	s.writer.Go("presence.online", userKey(msg.UserID), func(ctx context.Context) error {
		return s.mirror.SetOnline(ctx, msg.UserID, username)
	})

	users, err := s.ListUsers(ctx)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list users for auth reply")
		users = nil
	}
	users = withSelf(users, domain.UserSummary{ID: msg.UserID, Username: username, Fullname: msg.Fullname, Online: true, LastSeen: now})

	if err := c.SendMessage(&domain.AuthSuccessMessage{
		Type:   domain.MsgTypeAuthSuccess,
		UserID: msg.UserID,
		Users:  users,
	}); err != nil {
		return err
	}

	audit.Log(ctx, audit.ActionAuth, msg.UserID, c.ID, "session authenticated")

	// A connection taking over from another one is not a presence change.
	if !first || replaced != nil {
		return nil
	}

	s.Broadcast(&domain.PresenceMessage{
		Type:     domain.MsgTypeUserOnline,
		UserID:   msg.UserID,
		Username: username,
		Fullname: msg.Fullname,
	}, msg.UserID)
	s.publish(pubsub.ChannelPresence, pubsub.EventUserOnline, msg.UserID, pubsub.PresencePayload{
		UserID: msg.UserID, Username: username, Online: true,
	})
	return nil
}

func (s *messengerService) HandleMessage(ctx context.Context, c *hub.Client, in *domain.ChatMessageIn) error {
	senderID, senderName, err := requireAuth(c)
	if err != nil {
		return err
	}
	if in.Empty() {
		return invalid("message needs text, image or file")
	}

	id, err := s.messageIDs.Generate()
	if err != nil {
		return err
	}
	msg := &domain.Message{
		ID:        id,
		ChatID:    in.ChatID,
		SenderID:  senderID,
		Sender:    senderName,
		Text:      in.Text,
		Image:     in.Image,
		File:      in.File,
		FileName:  in.FileName,
		FileSize:  in.FileSize,
		Timestamp: s.now().UTC(),
	}

	s.recent.put(msg.ID, messageRef{SenderID: senderID, ChatID: msg.ChatID})
	s.writer.Go("message.insert", messageKey(msg.ID), func(ctx context.Context) error {
		return s.repo.InsertMessage(ctx, msg)
	})

	delivered := 0
	if msg.ChatID != "" {
		recipients, err := s.chatRecipients(ctx, msg.ChatID)
		if err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldChatID, msg.ChatID).Msg("membership lookup failed, skipping fan-out")
		}
		data, err := json.Marshal(&domain.MessageEvent{Type: domain.MsgTypeNewMessage, Message: *msg})
		if err != nil {
			return err
		}
		delivered = s.sendToUsers(recipients, data, senderID)
	}
	metrics.FanoutRecipients.Observe(float64(delivered))

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldMessageID, msg.ID).
		Str(log.FieldChatID, msg.ChatID).
		Int(log.FieldRecipients, delivered).
		Msg("message routed")

	s.publish(pubsub.ChannelMessages, pubsub.EventMessageCreated, msg.ChatID, pubsub.MessagePayload{
		MessageID: msg.ID, ChatID: msg.ChatID, SenderID: senderID, Text: msg.Text,
	})

	return c.SendMessage(&domain.MessageEvent{Type: domain.MsgTypeMessageSent, Message: *msg})
}

func (s *messengerService) HandleTyping(ctx context.Context, c *hub.Client, in *domain.TypingMessage) error {
	userID, username, err := requireAuth(c)
	if err != nil {
		return err
	}
	if in.ReceiverID == "" {
		return invalid("receiverId is required")
	}

	s.sendToUser(in.ReceiverID, &domain.TypingEvent{
		Type:     domain.MsgTypeTyping,
		ChatID:   in.ChatID,
		UserID:   userID,
		Username: username,
		IsTyping: in.IsTyping,
	})
	return nil
}

func (s *messengerService) HandleRead(ctx context.Context, c *hub.Client, in *domain.ReadMessage) error {
	readerID, readerName, err := requireAuth(c)
	if err != nil {
		return err
	}
	if in.MessageID == "" {
		return invalid("messageId is required")
	}

	s.writer.Go("message.read", messageKey(in.MessageID), func(ctx context.Context) error {
		_, err := s.repo.MarkMessageRead(ctx, in.MessageID)
		return err
	})

	ref, ok := s.lookupMessage(ctx, in.MessageID)
	if !ok {
		return nil
	}
	s.sendToUser(ref.SenderID, &domain.MessageReadEvent{
		Type:       domain.MsgTypeMessageRead,
		MessageID:  in.MessageID,
		ReaderID:   readerID,
		ReaderName: readerName,
	})
	return nil
}

func (s *messengerService) HandleReaction(ctx context.Context, c *hub.Client, in *domain.ReactionMessage) error {
	userID, username, err := requireAuth(c)
	if err != nil {
		return err
	}
	if in.MessageID == "" || in.Reaction == "" {
		return invalid("messageId and reaction are required")
	}

	rx := &domain.Reaction{
		MessageID: in.MessageID,
		UserID:    userID,
		Reaction:  in.Reaction,
		CreatedAt: s.now().UTC(),
	}
	s.writer.Go("reaction.upsert", messageKey(in.MessageID), func(ctx context.Context) error {
		return s.repo.UpsertReaction(ctx, rx)
	})

	ref, ok := s.lookupMessage(ctx, in.MessageID)
	if !ok {
		return nil
	}
	s.sendToUser(ref.SenderID, &domain.MessageReactionEvent{
		Type:      domain.MsgTypeMessageReaction,
		MessageID: in.MessageID,
		UserID:    userID,
		Username:  username,
		Reaction:  in.Reaction,
	})
	return nil
}

// HandleEdit notifies every member of the message's chat, the editor included.
func (s *messengerService) HandleEdit(ctx context.Context, c *hub.Client, in *domain.EditMessage) error {
	userID, _, err := requireAuth(c)
	if err != nil {
		return err
	}
	if in.MessageID == "" || in.Text == "" {
		return invalid("messageId and text are required")
	}

	s.writer.Go("message.edit", messageKey(in.MessageID), func(ctx context.Context) error {
		_, err := s.repo.UpdateMessageText(ctx, in.MessageID, in.Text)
		return err
	})

	ref, ok := s.lookupMessage(ctx, in.MessageID)
	if !ok {
		return nil
	}
	s.notifyChat(ctx, ref.ChatID, &domain.MessageEditedEvent{
		Type:      domain.MsgTypeMessageEdited,
		MessageID: in.MessageID,
		ChatID:    ref.ChatID,
		Text:      in.Text,
		EditedBy:  userID,
	})
	s.publish(pubsub.ChannelMessages, pubsub.EventMessageEdited, ref.ChatID, pubsub.MessagePayload{
		MessageID: in.MessageID, ChatID: ref.ChatID, SenderID: userID, Text: in.Text,
	})
	return nil
}

// HandleDelete soft-deletes and notifies every member of the chat, the
// actor included.
func (s *messengerService) HandleDelete(ctx context.Context, c *hub.Client, in *domain.DeleteMessage) error {
	userID, _, err := requireAuth(c)
	if err != nil {
		return err
	}
	if in.MessageID == "" {
		return invalid("messageId is required")
	}

	s.writer.Go("message.delete", messageKey(in.MessageID), func(ctx context.Context) error {
		_, err := s.repo.MarkMessageDeleted(ctx, in.MessageID)
		return err
	})

	ref, ok := s.lookupMessage(ctx, in.MessageID)
	if !ok {
		return nil
	}
	s.notifyChat(ctx, ref.ChatID, &domain.MessageDeletedEvent{
		Type:      domain.MsgTypeMessageDeleted,
		MessageID: in.MessageID,
		ChatID:    ref.ChatID,
		DeletedBy: userID,
	})
	s.publish(pubsub.ChannelMessages, pubsub.EventMessageDeleted, ref.ChatID, pubsub.MessagePayload{
		MessageID: in.MessageID, ChatID: ref.ChatID, SenderID: userID,
	})
	audit.Log(ctx, audit.ActionMessageDelete, userID, in.MessageID, "message deleted")
	return nil
}

func (s *messengerService) HandleStory(ctx context.Context, c *hub.Client, in *domain.StoryMessage) error {
	authorID, authorName, err := requireAuth(c)
	if err != nil {
		return err
	}
	if in.Content == "" {
		return invalid("content is required")
	}

	id, err := s.ids.Generate()
	if err != nil {
		return err
	}
	storyType := in.StoryType
	if storyType == "" {
		storyType = "text"
	}
	story := domain.NewStory(id, authorID, in.Content, storyType, s.now().UTC())
	story.AuthorName = authorName

	s.writer.Go("story.insert", "story:"+story.ID, func(ctx context.Context) error {
		return s.repo.InsertStory(ctx, story)
	})

	s.Broadcast(&domain.StoryEvent{Type: domain.MsgTypeNewStory, Story: *story}, "")
	s.publish(pubsub.ChannelStories, pubsub.EventStoryCreated, authorID, pubsub.StoryPayload{
		StoryID: story.ID, AuthorID: authorID, Type: storyType,
	})
	return nil
}

func (s *messengerService) HandlePing(ctx context.Context, c *hub.Client) error {
	return c.SendMessage(&domain.PongMessage{Type: domain.MsgTypePong})
}

// HandleLogout ends the session the same way a closed connection does, then
// closes the connection.
func (s *messengerService) HandleLogout(ctx context.Context, c *hub.Client) error {
	userID, _, err := requireAuth(c)
	if err != nil {
		return err
	}
	audit.Log(ctx, audit.ActionLogout, userID, c.ID, "user logged out")
	s.HandleDisconnect(ctx, c)
	c.Close()
	return nil
}

func (s *messengerService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	prev := c.Session.Close()
	if prev != domain.StateAuthenticated {
		return
	}
	userID, username := c.Session.Identity()

	if !s.hub.Remove(userID, c) {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldUserID, userID).Msg("superseded connection closed, user stays online")
		return
	}

	now := s.now().UTC()
	s.writer.Go("user.offline", userKey(userID), func(ctx context.Context) error {
		return s.repo.SetUserOnline(ctx, userID, false, now)
	})
	s.writer.Go("presence.offline", userKey(userID), func(ctx context.Context) error {
		return s.mirror.SetOffline(ctx, userID)
	})

	s.endCallsFor(ctx, userID)

	s.Broadcast(&domain.PresenceMessage{
		Type:     domain.MsgTypeUserOffline,
		UserID:   userID,
		Username: username,
	}, userID)
	s.publish(pubsub.ChannelPresence, pubsub.EventUserOffline, userID, pubsub.PresencePayload{
		UserID: userID, Username: username, Online: false,
	})
	audit.Log(ctx, audit.ActionDisconnect, userID, c.ID, "session closed")
}

func (s *messengerService) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	v, err, _ := s.users.Do("users", func() (interface{}, error) {
		return s.repo.ListUsers(ctx)
	})
	if err != nil {
		return nil, err
	}

	shared := v.([]domain.UserSummary)
	users := make([]domain.UserSummary, len(shared))
	copy(users, shared)
	for i := range users {
		users[i].Online = s.hub.IsOnline(users[i].ID)
	}
	return users, nil
}

// withSelf appends self when the listing does not have it yet, which happens
// while the user's first upsert is still queued.
func withSelf(users []domain.UserSummary, self domain.UserSummary) []domain.UserSummary {
	for i := range users {
		if users[i].ID == self.ID {
			users[i].Online = true
			return users
		}
	}
	return append(users, self)
}

// lookupMessage resolves a message's sender and chat, first from messages
// routed by this process, then from the repository.
func (s *messengerService) lookupMessage(ctx context.Context, id string) (messageRef, bool) {
	if ref, ok := s.recent.get(id); ok {
		return ref, true
	}

	msg, err := s.repo.GetMessageByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrMessageNotFound) {
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldMessageID, id).Msg("message lookup failed")
		}
		return messageRef{}, false
	}
	ref := messageRef{SenderID: msg.SenderID, ChatID: msg.ChatID}
	s.recent.put(id, ref)
	return ref, true
}

// chatRecipients returns the members of chatID. The general chat holds every
// known user, and every connected user is known, so it resolves from the
// routing table without waiting on pending user writes.
func (s *messengerService) chatRecipients(ctx context.Context, chatID string) ([]string, error) {
	if chatID == domain.GeneralChatID {
		return s.hub.OnlineUserIDs(), nil
	}
	return s.repo.ListChatMembers(ctx, chatID)
}

// notifyChat sends v to every connected member of chatID.
func (s *messengerService) notifyChat(ctx context.Context, chatID string, v interface{}) int {
	if chatID == "" {
		return 0
	}
	members, err := s.chatRecipients(ctx, chatID)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("membership lookup failed")
		return 0
	}
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	n := s.sendToUsers(members, data, "")
	metrics.FanoutRecipients.Observe(float64(n))
	return n
}

func userKey(id string) string    { return "user:" + id }
func messageKey(id string) string { return "msg:" + id }
