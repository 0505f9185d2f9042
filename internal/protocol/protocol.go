package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type tags. The set is closed: Decode rejects anything else.
const (
	TypeInit         = "init"
	TypePlayers      = "players"
	TypePlayerJoined = "player_joined"
	TypePlayerLeft   = "player_left"
	TypePosition     = "position"
	TypeChat         = "chat"
	TypeNFTUpdate    = "nft_update"
)

// GlobalChatPrefix routes a chat message to the global channel instead of the
// sender's map channel. The prefix is stripped before fan-out.
const GlobalChatPrefix = "/global "

// Location is a tile-space position inside one map.
type Location struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	MapID string  `json:"mapId"`
}

// Item is one inventory entry. NFT-backed items carry a token id.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Rarity  string `json:"rarity"`
	IsNFT   bool   `json:"isNFT"`
	TokenID string `json:"tokenId,omitempty"`
}

// PlayerState is the player shape shared by both sides of the wire.
type PlayerState struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	CharacterClass string   `json:"characterClass"`
	Location       Location `json:"location"`
	Inventory      []Item   `json:"inventory"`
}

// Message is one decoded wire envelope.
type Message interface {
	MessageType() string
}

// Client → Server

type InitMessage struct {
	Type   string      `json:"type"`
	Player PlayerState `json:"player"`
}

// Server → Client

type PlayersMessage struct {
	Type    string        `json:"type"`
	Players []PlayerState `json:"players"`
}

type PlayerJoinedMessage struct {
	Type   string      `json:"type"`
	Player PlayerState `json:"player"`
}

type PlayerLeftMessage struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type NFTUpdateMessage struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	Inventory []Item `json:"inventory"`
}

// Both directions

type PositionMessage struct {
	Type     string   `json:"type"`
	PlayerID string   `json:"playerId"`
	Location Location `json:"location"`
}

type ChatMessage struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
}

func (m *InitMessage) MessageType() string         { return TypeInit }
func (m *PlayersMessage) MessageType() string      { return TypePlayers }
func (m *PlayerJoinedMessage) MessageType() string { return TypePlayerJoined }
func (m *PlayerLeftMessage) MessageType() string   { return TypePlayerLeft }
func (m *PositionMessage) MessageType() string     { return TypePosition }
func (m *ChatMessage) MessageType() string         { return TypeChat }
func (m *NFTUpdateMessage) MessageType() string    { return TypeNFTUpdate }

// Constructors fill the type tag so callers cannot forget it.

func NewInit(player PlayerState) *InitMessage {
	return &InitMessage{Type: TypeInit, Player: player}
}

func NewPlayers(players []PlayerState) *PlayersMessage {
	return &PlayersMessage{Type: TypePlayers, Players: players}
}

func NewPlayerJoined(player PlayerState) *PlayerJoinedMessage {
	return &PlayerJoinedMessage{Type: TypePlayerJoined, Player: player}
}

func NewPlayerLeft(playerID, playerName string) *PlayerLeftMessage {
	return &PlayerLeftMessage{Type: TypePlayerLeft, PlayerID: playerID, PlayerName: playerName}
}

func NewPosition(playerID string, loc Location) *PositionMessage {
	return &PositionMessage{Type: TypePosition, PlayerID: playerID, Location: loc}
}

func NewChat(playerID, playerName, content string, timestamp int64) *ChatMessage {
	return &ChatMessage{Type: TypeChat, PlayerID: playerID, PlayerName: playerName, Content: content, Timestamp: timestamp}
}

func NewNFTUpdate(playerID string, inventory []Item) *NFTUpdateMessage {
	return &NFTUpdateMessage{Type: TypeNFTUpdate, PlayerID: playerID, Inventory: inventory}
}

// DecodeError reports a frame that could not be turned into a Message.
// Receivers drop the frame and keep the connection open.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a raw frame into one of the known message variants. Unknown
// extra fields are ignored for forward compatibility; an unknown type or
// unparseable frame yields a *DecodeError.
func Decode(raw []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &DecodeError{Reason: "unparseable frame", Err: err}
	}

	var msg Message
	switch head.Type {
	case TypeInit:
		msg = &InitMessage{}
	case TypePlayers:
		msg = &PlayersMessage{}
	case TypePlayerJoined:
		msg = &PlayerJoinedMessage{}
	case TypePlayerLeft:
		msg = &PlayerLeftMessage{}
	case TypePosition:
		msg = &PositionMessage{}
	case TypeChat:
		msg = &ChatMessage{}
	case TypeNFTUpdate:
		msg = &NFTUpdateMessage{}
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown message type %q", head.Type)}
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("malformed %s payload", head.Type), Err: err}
	}
	return msg, nil
}

// Encode serializes a message for the wire.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}
