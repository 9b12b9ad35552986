package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/weiawesome/wes-io-messenger/internal/config"
	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/metrics"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
)

// ErrClientClosed is returned when sending to a client whose queue is closed.
var ErrClientClosed = errors.New("client closed")

// DisconnectHandler is called once when a client's read loop ends.
type DisconnectHandler func(*Client)

// Client is one websocket connection. Outbound frames go through a bounded
// queue drained by WritePump; Enqueue never blocks.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session

	config            config.WebSocketConfig
	limiter           *rate.Limiter
	disconnectHandler DisconnectHandler

	mu     sync.Mutex
	closed bool
}

// NewClient builds a client. conn may be nil in tests; the pumps are then
// never started and frames are read straight from Send.
func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBuffer
	if size <= 0 {
		size = 256
	}
	c := &Client{
		ID:      id,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, size),
		Session: domain.NewSession(id),
		config:  cfg,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// Allow reports whether another inbound frame fits the rate limit.
func (c *Client) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// Enqueue queues data for delivery. It returns false when the client is
// closed or the frame was not queued. On a full queue the overflow policy
// decides between evicting the oldest frame and closing the client.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		metrics.FramesDropped.WithLabelValues("closed").Inc()
		return false
	}

	select {
	case c.Send <- data:
		return true
	default:
	}

	if c.config.OverflowPolicy == config.OverflowDropOldest {
		select {
		case <-c.Send:
			metrics.FramesDropped.WithLabelValues("overflow").Inc()
		default:
		}
		select {
		case c.Send <- data:
			return true
		default:
			metrics.FramesDropped.WithLabelValues("overflow").Inc()
			return false
		}
	}

	l := log.ForConnection(c.ID, c.Session.GetUserID())
	l.Warn().Msg("send queue full, disconnecting slow client")
	metrics.ClientsDropped.WithLabelValues("overflow").Inc()
	c.closeLocked()
	return false
}

// SendMessage marshals message and enqueues it.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if !c.Enqueue(data) {
		return ErrClientClosed
	}
	return nil
}

// Close stops outbound delivery. WritePump sends a close frame and drops the
// connection, which in turn ends ReadPump. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ReadPump reads frames until the connection fails, passing each to handler
// in arrival order.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Close()
		c.Conn.Close()
		c.Hub.Unregister(c)
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l := log.ForConnection(c.ID, c.Session.GetUserID())
				l.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
