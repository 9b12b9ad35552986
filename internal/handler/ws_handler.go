package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-messenger/internal/config"
	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/hub"
	"github.com/weiawesome/wes-io-messenger/internal/metrics"
	"github.com/weiawesome/wes-io-messenger/internal/service"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
)

type WSHandler struct {
	hub      *hub.Hub
	service  service.MessengerService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler builds the websocket endpoint. An empty allowedOrigins list,
// or one containing "*", accepts any origin.
func NewWSHandler(h *hub.Hub, svc service.MessengerService, wsCfg config.WebSocketConfig, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. The read loop runs on the request goroutine.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	client.SetDisconnectHandler(func(cl *hub.Client) {
		h.service.HandleDisconnect(connContext(cl), cl)
	})

	go client.WritePump()
	client.ReadPump(h.handleFrame)
}

func connContext(c *hub.Client) context.Context {
	l := log.ForConnection(c.ID, c.Session.GetUserID())
	return log.WithLogger(context.Background(), l)
}

func decode[T any](data []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// handleFrame dispatches one inbound frame. Every failure is logged and
// counted; the connection always stays open.
func (h *WSHandler) handleFrame(client *hub.Client, data []byte) {
	ctx := connContext(client)

	if !client.Allow() {
		h.reject(ctx, "", "rate_limited", nil)
		return
	}

	base, err := decode[domain.BaseMessage](data)
	if err != nil {
		h.reject(ctx, "", "malformed", err)
		return
	}

	switch base.Type {
	case domain.MsgTypeAuth:
		var msg *domain.AuthMessage
		if msg, err = decode[domain.AuthMessage](data); err == nil {
			err = h.service.HandleAuth(ctx, client, msg)
		}
	case domain.MsgTypeMessage:
		var msg *domain.ChatMessageIn
		if msg, err = decode[domain.ChatMessageIn](data); err == nil {
			err = h.service.HandleMessage(ctx, client, msg)
		}
	case domain.MsgTypeTyping:
		var msg *domain.TypingMessage
		if msg, err = decode[domain.TypingMessage](data); err == nil {
			err = h.service.HandleTyping(ctx, client, msg)
		}
	case domain.MsgTypeRead:
		var msg *domain.ReadMessage
		if msg, err = decode[domain.ReadMessage](data); err == nil {
			err = h.service.HandleRead(ctx, client, msg)
		}
	case domain.MsgTypeReaction:
		var msg *domain.ReactionMessage
		if msg, err = decode[domain.ReactionMessage](data); err == nil {
			err = h.service.HandleReaction(ctx, client, msg)
		}
	case domain.MsgTypeEdit:
		var msg *domain.EditMessage
		if msg, err = decode[domain.EditMessage](data); err == nil {
			err = h.service.HandleEdit(ctx, client, msg)
		}
	case domain.MsgTypeDelete:
		var msg *domain.DeleteMessage
		if msg, err = decode[domain.DeleteMessage](data); err == nil {
			err = h.service.HandleDelete(ctx, client, msg)
		}
	case domain.MsgTypeStory:
		var msg *domain.StoryMessage
		if msg, err = decode[domain.StoryMessage](data); err == nil {
			err = h.service.HandleStory(ctx, client, msg)
		}
	case domain.MsgTypeCall:
		var msg *domain.CallMessage
		if msg, err = decode[domain.CallMessage](data); err == nil {
			err = h.service.HandleCall(ctx, client, &msg.Data)
		}
	case domain.MsgTypePing:
		err = h.service.HandlePing(ctx, client)
	case domain.MsgTypeLogout:
		err = h.service.HandleLogout(ctx, client)
	default:
		h.reject(ctx, base.Type, "unknown_type", nil)
		return
	}

	metrics.EventsReceived.WithLabelValues(base.Type).Inc()
	if err != nil {
		h.reject(ctx, base.Type, rejectReason(err), err)
	}
}

func (h *WSHandler) reject(ctx context.Context, eventType, reason string, err error) {
	metrics.EventsRejected.WithLabelValues(reason).Inc()
	l := log.Ctx(ctx)
	l.Warn().Err(err).Str(log.FieldEventType, eventType).Str("reason", reason).Msg("frame dropped")
}

func rejectReason(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return "malformed"
	case errors.Is(err, service.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, service.ErrInvalidPayload):
		return "invalid"
	case errors.Is(err, service.ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(err, service.ErrCallMismatch):
		return "call_mismatch"
	case errors.Is(err, hub.ErrClientClosed):
		return "client_closed"
	default:
		return "error"
	}
}
