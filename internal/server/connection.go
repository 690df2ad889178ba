package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/lox/poollottery/internal/auth"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	identity  *auth.Identity
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		server: server,
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// The send channel closes during shutdown.
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetIdentity associates this connection with an authenticated account
func (c *Connection) SetIdentity(identity *auth.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Address returns the authenticated account, or the zero address
func (c *Connection) Address() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return common.Address{}
	}
	return c.identity.Address
}

func (c *Connection) authenticated() (common.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return common.Address{}, false
	}
	return c.identity.Address, true
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Time allowed for an auth decision
	authTimeout = 2 * time.Second
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "requestId", msg.RequestID)

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg, fmt.Errorf("%w: auth: %v", ErrInvalidMessage, err))
			return
		}
		c.handleAuth(msg, data)

	case MessageTypeJoin:
		var data JoinData
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg, fmt.Errorf("%w: join: %v", ErrInvalidMessage, err))
			return
		}
		c.handleJoin(msg, data)

	case MessageTypePickWinner:
		c.handlePickWinner(msg)

	case MessageTypeGetPlayers:
		c.reply(msg, MessageTypePlayers, PlayersData{Players: c.server.service.Players()})

	case MessageTypeGetManager:
		c.reply(msg, MessageTypeManager, ManagerData{Manager: c.server.service.Manager()})

	case MessageTypeGetLastWinner:
		c.reply(msg, MessageTypeLastWinner, LastWinnerData{LastWinner: c.server.service.LastWinner()})

	case MessageTypeGetState:
		c.reply(msg, MessageTypeState, c.server.service.State())

	default:
		c.sendErrorCode(msg, CodeUnknownMessageType, "Unknown message type: "+msg.Type.String())
	}
}

// reply sends data correlated with the request
func (c *Connection) reply(req *Message, messageType MessageType, data interface{}) {
	msg, err := NewRequest(messageType, req.RequestID, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

// sendError reports err to the client under its error code
func (c *Connection) sendError(req *Message, err error) {
	c.sendErrorCode(req, ErrorCode(err), err.Error())
}

func (c *Connection) sendErrorCode(req *Message, code, message string) {
	c.reply(req, MessageTypeError, ErrorData{Code: code, Message: message})
}

func (c *Connection) handleAuth(req *Message, data AuthData) {
	c.logger.Info("Auth request", "claimed", data.Address.Hex())

	ctx, cancel := context.WithTimeout(c.ctx, authTimeout)
	defer cancel()

	identity, err := c.server.validator.Validate(ctx, data.Credentials)
	if err != nil {
		c.logger.Warn("Auth failed", "claimed", data.Address.Hex(), "error", err)
		c.sendError(req, err)
		return
	}

	c.SetIdentity(identity)
	c.reply(req, MessageTypeAuthResponse, AuthResponseData{
		Success: true,
		Address: identity.Address,
		Name:    identity.Name,
	})
}

func (c *Connection) handleJoin(req *Message, data JoinData) {
	addr, ok := c.authenticated()
	if !ok {
		c.sendError(req, fmt.Errorf("%w: authenticate before joining", ErrNotAuthenticated))
		return
	}

	joined, err := c.server.service.Join(addr, data.Amount)
	if err != nil {
		c.sendError(req, err)
		return
	}
	c.logger.Info("Joined", "address", addr.Hex(), "entries", joined.Entries, "pool", joined.PoolBalance)

	c.reply(req, MessageTypeJoined, joined)
	if msg, err := NewMessage(MessageTypePlayerJoined, joined); err == nil {
		c.server.Broadcast(msg)
	}
}

func (c *Connection) handlePickWinner(req *Message) {
	addr, ok := c.authenticated()
	if !ok {
		c.sendError(req, fmt.Errorf("%w: authenticate before picking a winner", ErrNotAuthenticated))
		return
	}

	closed, err := c.server.service.PickWinner(addr)
	if err != nil {
		c.sendError(req, err)
		return
	}

	c.reply(req, MessageTypeRoundClosed, closed)
	if msg, err := NewMessage(MessageTypeRoundClosed, closed); err == nil {
		c.server.Broadcast(msg)
	}
}
