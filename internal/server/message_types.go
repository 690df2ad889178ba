package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeAuth          MessageType = "auth"
	MessageTypeJoin          MessageType = "join"
	MessageTypePickWinner    MessageType = "pick_winner"
	MessageTypeGetPlayers    MessageType = "get_players"
	MessageTypeGetManager    MessageType = "get_manager"
	MessageTypeGetLastWinner MessageType = "get_last_winner"
	MessageTypeGetState      MessageType = "get_state"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeJoined       MessageType = "joined"
	MessageTypeRoundClosed  MessageType = "round_closed"
	MessageTypePlayers      MessageType = "players"
	MessageTypeManager      MessageType = "manager"
	MessageTypeLastWinner   MessageType = "last_winner"
	MessageTypeState        MessageType = "state"
	MessageTypeError        MessageType = "error"

	// Broadcast to every connection
	MessageTypePlayerJoined MessageType = "player_joined"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Operation describes one request the server answers.
type Operation struct {
	Request  MessageType `json:"request"`
	Reply    MessageType `json:"reply"`
	Auth     bool        `json:"auth"`
	Mutating bool        `json:"mutating"`
}

// Interface lists the operations of a pool in the order clients usually
// need them.
func Interface() []Operation {
	return []Operation{
		{Request: MessageTypeAuth, Reply: MessageTypeAuthResponse},
		{Request: MessageTypeJoin, Reply: MessageTypeJoined, Auth: true, Mutating: true},
		{Request: MessageTypePickWinner, Reply: MessageTypeRoundClosed, Auth: true, Mutating: true},
		{Request: MessageTypeGetPlayers, Reply: MessageTypePlayers},
		{Request: MessageTypeGetManager, Reply: MessageTypeManager},
		{Request: MessageTypeGetLastWinner, Reply: MessageTypeLastWinner},
		{Request: MessageTypeGetState, Reply: MessageTypeState},
	}
}
