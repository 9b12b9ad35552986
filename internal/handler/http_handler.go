package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-messenger/internal/audit"
	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/idgen"
	"github.com/weiawesome/wes-io-messenger/internal/media"
	"github.com/weiawesome/wes-io-messenger/internal/repository"
	"github.com/weiawesome/wes-io-messenger/internal/service"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
	"github.com/weiawesome/wes-io-messenger/pkg/response"
	"github.com/weiawesome/wes-io-messenger/pkg/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	uploadURLExpiry = 24 * time.Hour
)

// HTTPOptions configures the REST side-channel.
type HTTPOptions struct {
	MaxUploadSize int64
	// StaticPrefix and StaticDir serve local uploads; empty disables it.
	StaticPrefix string
	StaticDir    string
	// Thumbnails previews uploaded images; nil disables it.
	Thumbnails *media.Thumbnailer
	IDs        idgen.Generator
	Now        func() time.Time
}

// Handler serves the REST API next to the websocket endpoint.
type Handler struct {
	service service.MessengerService
	repo    repository.Repository
	store   storage.Storage
	opts    HTTPOptions
}

func NewHandler(svc service.MessengerService, repo repository.Repository, store storage.Storage, opts HTTPOptions) *Handler {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 20 << 20
	}
	if opts.IDs == nil {
		opts.IDs = idgen.NewUUIDGenerator()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{service: svc, repo: repo, store: store, opts: opts}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/users", h.ListUsers)
		api.GET("/users/:id", h.GetUser)
		api.GET("/users/:id/chats", h.ListUserChats)

		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats", h.CreateChat)
		api.GET("/messages/:id/reactions", h.ListReactions)

		api.POST("/uploads", h.Upload)
		api.GET("/stories", h.ListStories)
	}

	if h.opts.StaticPrefix != "" && h.opts.StaticDir != "" {
		r.Static(h.opts.StaticPrefix, h.opts.StaticDir)
	}
}

// ListUsers lists every known user with live presence.
func (h *Handler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	users, err := h.service.ListUsers(ctx)
	if err != nil {
		l.Error().Err(err).Msg("failed to list users")
		response.InternalError(c, "failed to list users")
		return
	}
	response.List(c, users, false)
}

// GetUser returns one persisted user.
func (h *Handler) GetUser(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	userID := c.Param("id")

	user, err := h.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to get user")
		response.InternalError(c, "failed to get user")
		return
	}
	response.Success(c, user)
}

// ListUserChats lists the chats a user belongs to, general first.
func (h *Handler) ListUserChats(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	userID := c.Param("id")

	chats, err := h.repo.ListChatsForUser(ctx, userID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list chats")
		response.InternalError(c, "failed to list chats")
		return
	}
	response.List(c, chats, false)
}

// ListMessages returns chat history oldest first. before accepts an RFC 3339
// timestamp or a message id.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	chatID := c.Param("id")

	limit := defaultPageSize
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		limit = n
	}

	var before repository.MessageCursor
	if s := c.Query("before"); s != "" {
		cur, ok, err := h.parseCursor(ctx, s)
		if err != nil {
			l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to resolve history cursor")
			response.InternalError(c, "failed to list messages")
			return
		}
		if !ok {
			response.BadRequest(c, "before must be an RFC 3339 time or a message id")
			return
		}
		before = cur
	}

	msgs, err := h.repo.ListMessages(ctx, chatID, before, limit)
	if err != nil {
		l.Error().Err(err).Str(log.FieldChatID, chatID).Msg("failed to list messages")
		response.InternalError(c, "failed to list messages")
		return
	}
	response.List(c, msgs, len(msgs) == limit)
}

// ListReactions lists the reactions on a message, oldest first.
func (h *Handler) ListReactions(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	messageID := c.Param("id")

	reactions, err := h.repo.ListReactions(ctx, messageID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldMessageID, messageID).Msg("failed to list reactions")
		response.InternalError(c, "failed to list reactions")
		return
	}
	response.List(c, reactions, false)
}

// parseCursor turns a before value into a cursor. A message id resolves to
// the stored message so rows sharing its timestamp are paged by id.
func (h *Handler) parseCursor(ctx context.Context, s string) (repository.MessageCursor, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return repository.MessageCursor{Time: t.UTC()}, true, nil
	}
	minted, ok := idgen.ULIDTime(s)
	if !ok {
		return repository.MessageCursor{}, false, nil
	}

	msg, err := h.repo.GetMessageByID(ctx, s)
	switch {
	case err == nil:
		return repository.MessageCursor{Time: msg.Timestamp, ID: msg.ID}, true, nil
	case errors.Is(err, repository.ErrMessageNotFound):
		return repository.MessageCursor{Time: minted, ID: s}, true, nil
	default:
		return repository.MessageCursor{}, false, err
	}
}

type createChatRequest struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	MemberIDs []string `json:"memberIds" binding:"required,min=1"`
}

// CreateChat creates a private or group chat with its members.
func (h *Handler) CreateChat(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create chat request")
		response.BadRequest(c, err.Error())
		return
	}

	members := dedupe(req.MemberIDs)
	if req.Type == "" {
		req.Type = domain.ChatTypeGroup
		if len(members) == 2 {
			req.Type = domain.ChatTypePrivate
		}
	}
	switch req.Type {
	case domain.ChatTypePrivate:
		if len(members) != 2 {
			response.BadRequest(c, "a private chat has exactly two members")
			return
		}
	case domain.ChatTypeGroup:
	default:
		response.BadRequest(c, "type must be private or group")
		return
	}

	id, err := h.opts.IDs.Generate()
	if err != nil {
		response.InternalError(c, "failed to create chat")
		return
	}
	chat := &domain.Chat{
		ID:        id,
		Name:      req.Name,
		Type:      req.Type,
		CreatedAt: h.opts.Now().UTC(),
	}
	if err := h.repo.CreateChat(ctx, chat, members); err != nil {
		l.Error().Err(err).Msg("failed to create chat")
		response.InternalError(c, "failed to create chat")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionChatCreate, members[0], chat.ID, strings.Join(members, ","), "chat created")
	response.Created(c, chat)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type uploadResult struct {
	Key         string `json:"key"`
	Path        string `json:"path"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// Upload stores a multipart "file" field and returns the path clients embed
// in image and file messages.
func (h *Handler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if c.Request.ContentLength > h.opts.MaxUploadSize {
		response.PayloadTooLarge(c, "file exceeds the upload limit")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadSize)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c, "file exceeds the upload limit")
			return
		}
		response.BadRequest(c, "missing file field")
		return
	}
	defer file.Close()

	id, err := h.opts.IDs.Generate()
	if err != nil {
		response.InternalError(c, "failed to store file")
		return
	}
	key := path.Join(h.opts.Now().UTC().Format("2006/01/02"), id+safeExt(header.Filename))

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.store.Write(ctx, key, file, header.Size, contentType); err != nil {
		l.Error().Err(err).Str("key", key).Msg("failed to store upload")
		response.InternalError(c, "failed to store file")
		return
	}
	url, err := h.store.GetURL(ctx, key, uploadURLExpiry)
	if err != nil {
		l.Error().Err(err).Str("key", key).Msg("failed to resolve upload url")
		if derr := h.store.Delete(ctx, key); derr != nil {
			l.Warn().Err(derr).Str("key", key).Msg("failed to remove orphaned upload")
		}
		response.InternalError(c, "failed to store file")
		return
	}

	res := uploadResult{
		Key:         key,
		Path:        url,
		FileName:    header.Filename,
		FileSize:    header.Size,
		ContentType: contentType,
	}
	if h.opts.Thumbnails != nil && media.Supports(contentType) {
		res.Thumbnail = h.thumbnail(c, key, file)
	}

	audit.LogWithDetail(ctx, audit.ActionUpload, "", key, header.Filename, "file uploaded")
	response.Created(c, res)
}

// thumbnail previews an uploaded image. Failures only cost the preview.
func (h *Handler) thumbnail(c *gin.Context, key string, file io.ReadSeeker) string {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		l.Warn().Err(err).Str("key", key).Msg("cannot rewind upload for thumbnail")
		return ""
	}
	thumbKey, err := h.opts.Thumbnails.Generate(ctx, key, file)
	if err != nil {
		l.Warn().Err(err).Str("key", key).Msg("thumbnail skipped")
		return ""
	}
	url, err := h.store.GetURL(ctx, thumbKey, uploadURLExpiry)
	if err != nil {
		l.Warn().Err(err).Str("key", thumbKey).Msg("failed to resolve thumbnail url")
		return ""
	}
	return url
}

// safeExt keeps a short alphanumeric extension from name.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// ListStories returns stories that have not expired yet.
func (h *Handler) ListStories(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	stories, err := h.repo.ListActiveStories(ctx, h.opts.Now().UTC())
	if err != nil {
		l.Error().Err(err).Msg("failed to list stories")
		response.InternalError(c, "failed to list stories")
		return
	}
	response.List(c, stories, false)
}
