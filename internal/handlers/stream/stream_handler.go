// internal/handlers/stream/stream_handler.go
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ruleboard-service/internal/authprovider"
	"ruleboard-service/internal/cache"
	"ruleboard-service/internal/middleware"
	"ruleboard-service/internal/pkg/jwt"
	"ruleboard-service/internal/pkg/response"
	"ruleboard-service/internal/realtime/wsfeed"
	notifsvc "ruleboard-service/internal/service/notification"
	sessionsvc "ruleboard-service/internal/service/session"
	"ruleboard-service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamHandler runs one session manager and one notification
// synchronizer per dashboard connection, both scoped to the connecting
// user and torn down with the socket. Routes using it sit behind the
// auth middleware, which accepts the token via query param for browser
// WebSocket clients.
type StreamHandler struct {
	store         notifsvc.Store
	profiles      sessionsvc.ProfileStore
	invalidator   cache.Invalidator
	verifier      *jwt.Verifier
	durable       storage.KeyValue
	authURL       string
	feedURL       string
	allowedOrigin string
	logger        *zap.Logger

	upgrader websocket.Upgrader
}

func NewStreamHandler(store notifsvc.Store, profiles sessionsvc.ProfileStore, invalidator cache.Invalidator, verifier *jwt.Verifier, durable storage.KeyValue, authURL, feedURL, allowedOrigin string, logger *zap.Logger) *StreamHandler {
	h := &StreamHandler{
		store:         store,
		profiles:      profiles,
		invalidator:   invalidator,
		verifier:      verifier,
		durable:       durable,
		authURL:       authURL,
		feedURL:       feedURL,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits non-browser clients (no Origin header) and the
// configured dashboard origin.
func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	return origin == h.allowedOrigin
}

type clientFrame struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

type serverFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// HandleConnection upgrades an authenticated request and streams the
// live notification view until the client disconnects.
func (h *StreamHandler) HandleConnection(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	token := middleware.GetAccessToken(c)
	if token == "" {
		response.Unauthorized(c, "missing authentication token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Session core scoped to this connection. The sign-in flow persists
	// the token bundle before the socket opens; without one the manager
	// lands in Unauthenticated and the connection is refused.
	scoped := storage.Scoped(h.durable, "user:"+userID+":")
	provider := authprovider.NewHosted(h.authURL, h.verifier, scoped, h.logger)

	mgr := sessionsvc.NewManager(provider, h.profiles, h.logger)
	mgr.Initialize(ctx)
	defer mgr.Teardown()

	if mgr.State() != sessionsvc.StateAuthenticated {
		h.writeFrame(conn, serverFrame{Type: "error", Data: "no active session"})
		return
	}
	user := mgr.CurrentUser()
	h.logger.Info("stream connected",
		zap.String("user_id", user.ID),
		zap.String("email", middleware.GetEmail(c)),
	)

	feed := wsfeed.NewClient(h.feedURL, token, h.logger)
	sync := notifsvc.NewSynchronizer(h.store, feed, h.invalidator, h.logger)
	if err := sync.Start(ctx, user.ID); err != nil {
		h.logger.Error("failed to start notification sync",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		h.writeFrame(conn, serverFrame{Type: "error", Data: "notification feed unavailable"})
		return
	}
	defer sync.Stop()

	h.writeFrame(conn, serverFrame{Type: "connected", Data: user})

	go h.readPump(ctx, cancel, conn, sync)
	h.writePump(ctx, conn, sync)
}

// readPump consumes client frames; the only supported action is marking
// a notification read.
func (h *StreamHandler) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sync *notifsvc.Synchronizer) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("stream connection lost", zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}

		if frame.Action == "mark_read" && frame.ID != "" {
			if err := sync.MarkAsRead(ctx, frame.ID); err != nil {
				h.logger.Warn("mark_read over stream failed",
					zap.String("notification_id", frame.ID),
					zap.Error(err),
				)
			}
		}
	}
}

// writePump pushes the current list after every mutation and keeps the
// connection alive with pings.
func (h *StreamHandler) writePump(ctx context.Context, conn *websocket.Conn, sync *notifsvc.Synchronizer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-sync.Updates():
			if !h.writeFrame(conn, serverFrame{Type: "notifications", Data: gin.H{
				"notifications": sync.Notifications(),
				"unread_count":  sync.UnreadCount(),
			}}) {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) writeFrame(conn *websocket.Conn, frame serverFrame) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Warn("failed to write stream frame", zap.Error(err))
		return false
	}
	return true
}
