package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"loftwire/internal/auth"
	"loftwire/internal/model"
	"loftwire/internal/push"
	"loftwire/internal/repo"
)

// Hub owns the room table and the connection registry, and fans events
// out between connections. All registration goes through the run loop;
// room membership changes happen on the handling goroutine of the
// connection that caused them.
type Hub struct {
	shards [shardCount]*roomBucket

	// connection registry
	connsMu   sync.RWMutex
	conns     map[string]*Client // connection ID -> client
	userConns map[string]int     // user ID -> live connection count

	// typing indicators, channel room name -> user IDs
	typingMu sync.RWMutex
	typing   map[string]map[string]bool

	register   chan *Client
	unregister chan *Client

	store    repo.Store
	users    repo.UserStore
	push     push.Dispatcher
	verifier *auth.Verifier

	upgrader websocket.Upgrader

	logger  *zap.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// Deps carries the collaborators of a Hub.
type Deps struct {
	Store          repo.Store
	Users          repo.UserStore
	Push           push.Dispatcher
	Verifier       *auth.Verifier
	Metrics        *Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
}

func NewHub(deps Deps) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		conns:      make(map[string]*Client),
		userConns:  make(map[string]int),
		typing:     make(map[string]map[string]bool),
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		store:      deps.Store,
		users:      deps.Users,
		push:       deps.Push,
		verifier:   deps.Verifier,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		ctx:        ctx,
		cancel:     cancel,
	}

	allowed := make(map[string]bool, len(deps.AllowedOrigins))
	for _, origin := range deps.AllowedOrigins {
		allowed[origin] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			return allowed[origin]
		},
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &roomBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}

	go h.run()

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// ServeWS is the gatekeeper: it verifies the bearer token, resolves
// the user's profile, and only then upgrades the connection. The
// trusted identity travels with the client from here on.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Verify(auth.BearerToken(r))
	if err != nil {
		h.metrics.AuthFailures.Inc()
		h.logger.Info("rejected websocket upgrade", zap.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	profile, err := h.users.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			h.logger.Warn("profile lookup failed",
				zap.String("user_id", identity.UserID), zap.Error(err))
		}
		// A missing profile never blocks the connection.
		profile = &model.Profile{UserID: identity.UserID, DisplayName: identity.UserID}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(profile, conn, h)
}

func (h *Hub) addClient(c *Client) {
	h.connsMu.Lock()
	h.conns[c.ID] = c
	h.userConns[c.UserID]++
	firstConn := h.userConns[c.UserID] == 1
	total := len(h.conns)
	distinct := len(h.userConns)
	h.connsMu.Unlock()

	h.metrics.ActiveConnections.Set(float64(total))
	h.metrics.DistinctUsers.Set(float64(distinct))

	h.joinRoom(UserRoom(c.UserID), c)
	h.joinRoom(GlobalRoom, c)

	// The global member set only changes on a user's first connection.
	if firstConn {
		h.broadcastGlobalPresence()
	}
}

// removeClient unwinds every room the connection occupied, with the
// same broadcasts an explicit leave would have produced. Runs on the
// registration loop, so a connection is unwound at most once.
func (h *Hub) removeClient(c *Client) {
	h.connsMu.Lock()
	if _, known := h.conns[c.ID]; !known {
		h.connsMu.Unlock()
		c.Close()
		return
	}
	delete(h.conns, c.ID)
	h.userConns[c.UserID]--
	lastConn := h.userConns[c.UserID] == 0
	if lastConn {
		delete(h.userConns, c.UserID)
	}
	total := len(h.conns)
	distinct := len(h.userConns)
	h.connsMu.Unlock()

	h.metrics.ActiveConnections.Set(float64(total))
	h.metrics.DistinctUsers.Set(float64(distinct))

	if voiceChannel := c.VoiceChannelID(); voiceChannel != "" {
		h.leaveVoiceRoom(c, voiceChannel)
	}
	if channelID := c.ChannelID(); channelID != "" {
		h.leaveChannelRoom(c, channelID)
	}
	if spaceID := c.SpaceID(); spaceID != "" {
		h.leaveRoom(SpaceRoom(spaceID), c)
		h.broadcastSpacePresence(spaceID)
	}

	h.leaveRoom(UserRoom(c.UserID), c)
	h.leaveRoom(GlobalRoom, c)
	if lastConn {
		h.broadcastGlobalPresence()
	}

	c.Close()
	h.logger.Info("client removed",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.UserID))
}

// leaveChannelRoom removes the connection from its channel room,
// retracting the typing indicator when no other connection of the
// user remains, and refreshes channel presence.
func (h *Hub) leaveChannelRoom(c *Client, channelID string) {
	h.leaveRoom(ChannelRoom(channelID), c)
	c.setChannelID("")
	h.clearTypingOnLeave(c, channelID)
	h.broadcastChannelPresence(channelID)
}

// requestUnregister hands the client to the registration loop without
// blocking the caller forever.
func (h *Hub) requestUnregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-time.After(unregisterTimeout):
		h.logger.Warn("failed to unregister client: timeout",
			zap.String("connection_id", c.ID))
	}
}

// ConnectionCount returns the number of live connections of a user.
// Zero means the user is offline service-wide.
func (h *Hub) ConnectionCount(userID string) int {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	return h.userConns[userID]
}

// clientByID resolves a connection ID to its live client, if any.
func (h *Hub) clientByID(connectionID string) *Client {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	return h.conns[connectionID]
}

// Stop closes every connection and stops the registration loop.
func (h *Hub) Stop() {
	h.cancel()

	h.connsMu.RLock()
	clients := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.connsMu.RUnlock()

	for _, c := range clients {
		c.Close()
	}

	h.logger.Info("hub stopped", zap.Int("connections_closed", len(clients)))
}
