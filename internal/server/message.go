package server

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lox/poollottery/internal/auth"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// NewRequest creates a message correlated by requestID.
func NewRequest(messageType MessageType, requestID string, data interface{}) (*Message, error) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}
	msg.RequestID = requestID
	return msg, nil
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Client → Server Messages

// AuthData carries the credentials a connection authenticates with.
type AuthData struct {
	auth.Credentials
}

// JoinData enters the current round. Amount accepts wei or a unit suffix,
// e.g. "10000000000000000" or "0.01 ether".
type JoinData struct {
	Amount string `json:"amount"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success bool           `json:"success"`
	Address common.Address `json:"address"`
	Name    string         `json:"name,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JoinedData answers a join and is broadcast as player_joined.
type JoinedData struct {
	Player      common.Address `json:"player"`
	Entries     int            `json:"entries"`
	PoolBalance string         `json:"poolBalance"`
}

// RoundClosedData answers pick_winner and is broadcast to every connection.
type RoundClosedData struct {
	RoundID string         `json:"roundId"`
	Round   uint64         `json:"round"`
	Winner  common.Address `json:"winner"`
	Index   int            `json:"index"`
	Entries int            `json:"entries"`
	Payout  string         `json:"payout"`
	Block   uint64         `json:"block"`
}

type PlayersData struct {
	Players []common.Address `json:"players"`
}

type ManagerData struct {
	Manager common.Address `json:"manager"`
}

type LastWinnerData struct {
	LastWinner common.Address `json:"lastWinner"`
}

// StateData is a consistent view of the pool.
type StateData struct {
	Address     common.Address   `json:"address"`
	Manager     common.Address   `json:"manager"`
	EntryFee    string           `json:"entryFee"`
	Players     []common.Address `json:"players"`
	PoolBalance string           `json:"poolBalance"`
	LastWinner  common.Address   `json:"lastWinner"`
	Round       uint64           `json:"round"`
}
