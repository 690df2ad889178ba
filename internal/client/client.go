// Package client talks to a poollottery server over WebSocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/lox/poollottery/internal/auth"
	"github.com/lox/poollottery/internal/server" // Reuse message types
)

var (
	// ErrTimeout is returned when the server does not answer in time.
	ErrTimeout = errors.New("client: request timed out")

	// ErrClosed is returned for requests on a disconnected client.
	ErrClosed = errors.New("client: connection closed")
)

// DefaultTimeout bounds each request unless overridden.
const DefaultTimeout = 10 * time.Second

// Client represents a WebSocket client for a pool server
type Client struct {
	serverURL string
	conn      *websocket.Conn
	send      chan *server.Message
	logger    *log.Logger
	clock     quartz.Clock
	timeout   time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	connected bool
	closeOnce sync.Once
	nextID    uint64
	pending   map[string]chan *server.Message

	// Event handlers for broadcasts
	eventHandlers map[server.MessageType][]EventHandler
}

// EventHandler handles a broadcast from the server
type EventHandler func(*server.Message)

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock request timeouts run on.
func WithClock(clock quartz.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		serverURL:     serverURL,
		send:          make(chan *server.Message, 256),
		logger:        logger.WithPrefix("client"),
		clock:         quartz.NewReal(),
		timeout:       DefaultTimeout,
		ctx:           ctx,
		cancel:        cancel,
		pending:       make(map[string]chan *server.Message),
		eventHandlers: make(map[server.MessageType][]EventHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Debug("Connecting to server", "url", c.serverURL)

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()

	c.logger.Debug("Connected to server")
	return nil
}

// Close closes the WebSocket connection
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.connected = false
	})
	return nil
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// AddEventHandler adds a handler for broadcasts of the given type
func (c *Client) AddEventHandler(messageType server.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers[messageType] = append(c.eventHandlers[messageType], handler)
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.cancel()
	}()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type, "requestId", msg.RequestID)
		c.dispatch(&msg)
	}
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// dispatch routes replies to their waiting request and broadcasts to the
// registered handlers
func (c *Client) dispatch(msg *server.Message) {
	if msg.RequestID != "" {
		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
		return
	}

	c.mu.RLock()
	handlers := c.eventHandlers[msg.Type]
	c.mu.RUnlock()
	for _, handler := range handlers {
		handler(msg)
	}
}

// request sends a message and waits for the reply with the same request id.
// Error replies are turned back into errors.
func (c *Client) request(ctx context.Context, typ server.MessageType, data interface{}) (*server.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := strconv.FormatUint(c.nextID, 10)
	reply := make(chan *server.Message, 1)
	c.pending[id] = reply
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	msg, err := server.NewRequest(typ, id, data)
	if err != nil {
		forget()
		return nil, err
	}

	timer := c.clock.NewTimer(c.timeout, "client", "request")
	defer timer.Stop()

	select {
	case c.send <- msg:
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-c.ctx.Done():
		forget()
		return nil, ErrClosed
	}

	select {
	case resp := <-reply:
		if resp.Type == server.MessageTypeError {
			var data server.ErrorData
			if err := resp.Decode(&data); err != nil {
				return nil, fmt.Errorf("decode error reply: %w", err)
			}
			return nil, server.ErrorFromData(data)
		}
		return resp, nil
	case <-timer.C:
		forget()
		return nil, fmt.Errorf("%w: %s", ErrTimeout, typ)
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-c.ctx.Done():
		forget()
		return nil, ErrClosed
	}
}

func (c *Client) call(ctx context.Context, typ server.MessageType, data interface{}, want server.MessageType, out interface{}) error {
	resp, err := c.request(ctx, typ, data)
	if err != nil {
		return err
	}
	if resp.Type != want {
		return fmt.Errorf("unexpected reply %s to %s", resp.Type, typ)
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", resp.Type, err)
	}
	return nil
}

// Authenticate proves the connection's account.
func (c *Client) Authenticate(ctx context.Context, creds auth.Credentials) (*server.AuthResponseData, error) {
	var resp server.AuthResponseData
	err := c.call(ctx, server.MessageTypeAuth, server.AuthData{Credentials: creds}, server.MessageTypeAuthResponse, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Join enters the current round with amount.
func (c *Client) Join(ctx context.Context, amount string) (*server.JoinedData, error) {
	var resp server.JoinedData
	if err := c.call(ctx, server.MessageTypeJoin, server.JoinData{Amount: amount}, server.MessageTypeJoined, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PickWinner closes the current round. Only the manager may call it.
func (c *Client) PickWinner(ctx context.Context) (*server.RoundClosedData, error) {
	var resp server.RoundClosedData
	if err := c.call(ctx, server.MessageTypePickWinner, nil, server.MessageTypeRoundClosed, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Players returns the current registry in join order.
func (c *Client) Players(ctx context.Context) ([]common.Address, error) {
	var resp server.PlayersData
	if err := c.call(ctx, server.MessageTypeGetPlayers, nil, server.MessageTypePlayers, &resp); err != nil {
		return nil, err
	}
	if resp.Players == nil {
		resp.Players = []common.Address{}
	}
	return resp.Players, nil
}

// Manager returns the pool manager.
func (c *Client) Manager(ctx context.Context) (common.Address, error) {
	var resp server.ManagerData
	if err := c.call(ctx, server.MessageTypeGetManager, nil, server.MessageTypeManager, &resp); err != nil {
		return common.Address{}, err
	}
	return resp.Manager, nil
}

// LastWinner returns the most recent winner, or the zero address.
func (c *Client) LastWinner(ctx context.Context) (common.Address, error) {
	var resp server.LastWinnerData
	if err := c.call(ctx, server.MessageTypeGetLastWinner, nil, server.MessageTypeLastWinner, &resp); err != nil {
		return common.Address{}, err
	}
	return resp.LastWinner, nil
}

// State returns a consistent view of the pool.
func (c *Client) State(ctx context.Context) (*server.StateData, error) {
	var resp server.StateData
	if err := c.call(ctx, server.MessageTypeGetState, nil, server.MessageTypeState, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
