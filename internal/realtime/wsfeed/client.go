// internal/realtime/wsfeed/client.go
package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ruleboard-service/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB

	eventBuffer = 64
)

// Client subscribes to the hosted backend's row-change WebSocket endpoint.
// One connection per subscription: the subscription is a scoped resource
// and closing it tears the connection down with it.
type Client struct {
	url    string
	token  string
	dialer *websocket.Dialer
	logger *zap.Logger
}

func NewClient(url, token string, logger *zap.Logger) *Client {
	return &Client{
		url:    url,
		token:  token,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// subscribeFrame is the first frame sent after dialing.
type subscribeFrame struct {
	Ref    string `json:"ref"`
	Action string `json:"action"`
	Table  string `json:"table"`
	Filter string `json:"filter"`
}

// serverFrame is every frame the feed endpoint sends back.
type serverFrame struct {
	Ref             string          `json:"ref,omitempty"`
	Event           string          `json:"event"`
	Table           string          `json:"table,omitempty"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp,omitempty"`
	Message         string          `json:"message,omitempty"`
}

func (c *Client) Subscribe(ctx context.Context, table string, filter realtime.Filter) (realtime.Subscription, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial change feed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial change feed: %w", err)
	}

	ref := ulid.Make().String()
	frame := subscribeFrame{
		Ref:    ref,
		Action: "subscribe",
		Table:  table,
		Filter: filter.String(),
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send subscribe frame: %w", err)
	}

	sub := &subscription{
		conn:   conn,
		table:  table,
		ref:    ref,
		events: make(chan realtime.Event, eventBuffer),
		done:   make(chan struct{}),
		logger: c.logger,
	}

	go sub.readPump()
	go sub.pingLoop()

	c.logger.Info("change feed subscription opened",
		zap.String("table", table),
		zap.String("filter", filter.String()),
		zap.String("ref", ref),
	)

	return sub, nil
}

type subscription struct {
	conn   *websocket.Conn
	table  string
	ref    string
	events chan realtime.Event
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func (s *subscription) Events() <-chan realtime.Event {
	return s.events
}

// Close is idempotent and safe to call concurrently with event delivery.
func (s *subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	})
}

// readPump decodes server frames and delivers row-change events until the
// connection drops or Close is called. It owns closing the events channel.
func (s *subscription) readPump() {
	defer func() {
		s.Close()
		close(s.events)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Closed on purpose, nothing to report.
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Error("change feed connection lost",
						zap.String("ref", s.ref),
						zap.Error(err),
					)
				}
			}
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			s.logger.Warn("failed to decode change feed frame", zap.Error(err))
			continue
		}

		switch frame.Event {
		case "ack":
			// Subscribe acknowledged.

		case "error":
			s.logger.Error("change feed error frame",
				zap.String("ref", s.ref),
				zap.String("message", frame.Message),
			)

		case string(realtime.EventInsert), string(realtime.EventUpdate), string(realtime.EventDelete):
			ev := realtime.Event{
				Type:      realtime.EventType(frame.Event),
				Table:     frame.Table,
				New:       frame.New,
				Old:       frame.Old,
				Timestamp: frame.CommitTimestamp,
			}

			// Blocking send: the consumer drains continuously, and a
			// dropped event would leave the list stale until reconnect.
			// Close unblocks this via done.
			select {
			case <-s.done:
				return
			case s.events <- ev:
			}
		}
	}
}

func (s *subscription) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}
