package hub

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"loftwire/internal/event"
	"loftwire/internal/model"
)

var (
	// tuning parameters
	writeWait         = 10 * time.Second    // time allowed to write a message to the peer
	pongWait          = 20 * time.Second    // time allowed to read the next pong message from the peer
	pingInterval      = (pongWait * 9) / 10 // send pings to peer with this period
	maxMessageSize    = 64 * 1024           // max inbound message size (64KB)
	sendBufSize       = 256                 // per-connection outbound buffer size
	sendTimeout       = 2 * time.Second     // timeout for enqueuing outbound messages
	registerTimeout   = 5 * time.Second     // timeout for client registration
	unregisterTimeout = 5 * time.Second     // timeout for client unregistration
)

// Client is one authenticated WebSocket connection. Identity fields are
// fixed at handshake time; room placement moves with the client's
// navigation and is guarded by roomMu.
type Client struct {
	ID          string
	UserID      string
	DisplayName string
	NameColor   string

	conn   *websocket.Conn
	hub    *Hub
	egress chan event.WsEvent

	// current room placement; empty string means not placed
	roomMu      sync.RWMutex
	channelRoom string // channel ID, not the prefixed room name
	spaceRoom   string // space ID
	voiceRoom   string // channel ID of the joined voice room

	// cancel or stop goroutines
	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

// RegisterClient creates a client for an upgraded, authenticated
// connection and hands it to the hub's registration loop.
func RegisterClient(profile *model.Profile, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		ID:          uuid.New().String(),
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName,
		NameColor:   profile.NameColor,
		conn:        conn,
		hub:         h,
		egress:      make(chan event.WsEvent, sendBufSize),
		cancel:      cancel,
		ctx:         ctx,
		connClosed:  make(chan struct{}),
	}

	select {
	case h.register <- client:
		go client.ReadMessages()
		go client.WriteMessages()
		h.logger.Info("client registered",
			zap.String("connection_id", client.ID),
			zap.String("user_id", client.UserID))
		return client
	case <-time.After(registerTimeout):
		h.logger.Warn("failed to register client: timeout",
			zap.String("connection_id", client.ID))
		cancel()
		conn.Close()
		return nil
	}
}

// ReadMessages is the per-connection read pump. Events are dispatched
// inline, one at a time, so a connection's commands are always handled
// in the order they arrived.
func (c *Client) ReadMessages() {
	defer func() {
		c.hub.requestUnregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					c.hub.logger.Info("client disconnected",
						zap.String("connection_id", c.ID))
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					c.hub.logger.Warn("unexpected close",
						zap.String("connection_id", c.ID), zap.Error(err))
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.hub.logger.Info("client timed out, closing connection",
						zap.String("connection_id", c.ID))
					return
				}

				c.hub.logger.Warn("error reading from client",
					zap.String("connection_id", c.ID), zap.Error(err))
				return
			}

			c.hub.handleEvent(ev, c)
		}
	}
}

// WriteMessages is the per-connection write pump. It owns all writes
// to the socket, including pings.
func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			if err := c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Debug("close write failed",
					zap.String("connection_id", c.ID), zap.Error(err))
			}
			return
		case ev := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.hub.logger.Warn("write failed",
					zap.String("connection_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Warn("ping failed",
					zap.String("connection_id", c.ID), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Close tears the client down. The egress channel is never closed;
// cancelling the context is the only shutdown signal, so a broadcaster
// racing Close inside SafeSend cannot hit a closed channel.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
				// WriteMessages closed it properly
			case <-time.After(5 * time.Second):
				if c.conn != nil {
					_ = c.conn.Close()
				}
			}
		}()
	})
}

// IsClosed returns true if the client has been closed.
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// SafeSend attempts to enqueue an event for this client. Returns false
// if the client is closed or the egress buffer stayed full past the
// timeout.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(timeout):
		return false
	}
}

// -----------------------------------------------------------------
// Room placement accessors
// -----------------------------------------------------------------

func (c *Client) ChannelID() string {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.channelRoom
}

func (c *Client) setChannelID(channelID string) {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	c.channelRoom = channelID
}

func (c *Client) SpaceID() string {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.spaceRoom
}

func (c *Client) setSpaceID(spaceID string) {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	c.spaceRoom = spaceID
}

func (c *Client) VoiceChannelID() string {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.voiceRoom
}

func (c *Client) setVoiceChannelID(channelID string) {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	c.voiceRoom = channelID
}
