package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/draftpad/sessionkit/logging"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 256
)

// WSChannel is a websocket-backed Channel. It maintains a single connection to
// a collaboration endpoint, redialing with exponential backoff when the
// connection drops, and dispatches incoming events to per-document handlers.
type WSChannel struct {
	url    string
	dialer *websocket.Dialer
	logger *logging.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	handlers  map[string]map[int]Handler // documentID -> handler id -> handler
	nextID    int
	send      chan Event
	stop      chan struct{}
	connected bool
	closed    bool
}

// WSOption configures a WSChannel.
type WSOption func(*WSChannel)

// WithDialer overrides the default websocket dialer.
func WithDialer(d *websocket.Dialer) WSOption {
	return func(c *WSChannel) { c.dialer = d }
}

// WithLogger sets the channel's logger.
func WithLogger(l *logging.Logger) WSOption {
	return func(c *WSChannel) { c.logger = l }
}

// NewWSChannel creates a channel that will connect to url. Connect must be
// called before events flow.
func NewWSChannel(url string, opts ...WSOption) *WSChannel {
	c := &WSChannel{
		url:      url,
		dialer:   websocket.DefaultDialer,
		logger:   logging.Default(),
		handlers: make(map[string]map[int]Handler),
		send:     make(chan Event, sendBufferSize),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the endpoint and starts the read/write pumps. It returns after
// the first successful dial; subsequent disconnects are redialed in the
// background until Close is called or ctx is cancelled.
func (c *WSChannel) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.url, err)
	}
	c.setConn(conn)

	go c.run(ctx)
	return nil
}

func (c *WSChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	return conn, err
}

// run owns the connection lifecycle: it reads until the connection drops, then
// redials with backoff.
func (c *WSChannel) run(ctx context.Context) {
	go c.writePump(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		conn := c.currentConn()
		if conn != nil {
			c.readLoop(conn)
			c.setConn(nil)
		}

		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		// Connection lost; redial with backoff.
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = time.Second
		bo.MaxInterval = 30 * time.Second
		bo.MaxElapsedTime = 0 // retry until stopped

		err := backoff.Retry(func() error {
			select {
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			case <-c.stop:
				return backoff.Permanent(fmt.Errorf("channel closed"))
			default:
			}
			conn, err := c.dial(ctx)
			if err != nil {
				c.logger.Warn("realtime redial failed", slog.String("url", c.url), slog.String("error", err.Error()))
				return err
			}
			c.setConn(conn)
			return nil
		}, bo)
		if err != nil {
			return
		}
	}
}

func (c *WSChannel) readLoop(conn *websocket.Conn) {
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("realtime read failed", slog.String("error", err.Error()))
			}
			conn.Close()
			return
		}
		c.dispatch(ev)
	}
}

func (c *WSChannel) dispatch(ev Event) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.handlers[ev.DocumentID]))
	for _, h := range c.handlers[ev.DocumentID] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ev); err != nil {
			c.logger.Warn("realtime handler failed",
				slog.String("document_id", ev.DocumentID),
				slog.String("type", ev.Type),
				slog.String("error", err.Error()))
		}
	}
}

func (c *WSChannel) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case ev := <-c.send:
			conn := c.currentConn()
			if conn == nil {
				continue // dropped while disconnected; presence traffic is lossy
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
			}
		case <-ticker.C:
			conn := c.currentConn()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
			}
		}
	}
}

// Subscribe registers handler for a document's events until ctx is cancelled.
func (c *WSChannel) Subscribe(ctx context.Context, documentID string, handler Handler) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("channel is closed")
	}
	if c.handlers[documentID] == nil {
		c.handlers[documentID] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.handlers[documentID][id] = handler
	c.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			c.mu.Lock()
			if hs, ok := c.handlers[documentID]; ok {
				delete(hs, id)
				if len(hs) == 0 {
					delete(c.handlers, documentID)
				}
			}
			c.mu.Unlock()
		}()
	}
	return nil
}

// Publish queues the event for the write pump. It never blocks; events queued
// while disconnected are sent when the connection returns, oldest dropped
// first if the buffer fills.
func (c *WSChannel) Publish(ctx context.Context, event Event) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return fmt.Errorf("channel is closed")
	}

	select {
	case c.send <- event:
		return nil
	default:
	}

	// Buffer full: drop the oldest queued event in favor of the newest.
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- event:
	default:
	}
	return nil
}

// IsConnected returns true while the websocket connection is up.
func (c *WSChannel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closed
}

// Close tears the connection down and ends all subscriptions.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stop)
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.handlers = make(map[string]map[int]Handler)
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		return conn.Close()
	}
	return nil
}

func (c *WSChannel) currentConn() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *WSChannel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	c.connected = conn != nil
}
