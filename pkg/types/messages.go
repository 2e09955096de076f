package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client -> Server
//
//	select_room:  {"type":"select_room","room":"Kitchen"}
//	use_medikit:  {"type":"use_medikit","target_player_id":"..."}
//	select_power: {"type":"select_power","power":"piege"}
//	power_action: {"type":"power_action","action_data":{"rooms":["Cave","Attic"]}}
type ClientMessage struct {
	Type           string      `json:"type"`
	Room           string      `json:"room,omitempty"`
	TargetPlayerID string      `json:"target_player_id,omitempty"`
	Power          string      `json:"power,omitempty"`
	ActionData     *ActionData `json:"action_data,omitempty"`
}

type ActionData struct {
	Rooms []string `json:"rooms"`
}

const (
	ClientSelectRoom  = "select_room"
	ClientUseMedikit  = "use_medikit"
	ClientSelectPower = "select_power"
	ClientPowerAction = "power_action"
)

var ErrEmptyMessage = errors.New("empty message")

func DecodeClientMessage(b []byte) (ClientMessage, error) {
	if len(b) == 0 {
		return ClientMessage{}, ErrEmptyMessage
	}
	var m ClientMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	return m, nil
}

// Server -> Client
//
// ServerMessage is sealed: only the types below implement it, and Encode
// writes the matching "type" tag next to the payload fields.
type ServerMessage interface {
	MessageType() string
	isServerMessage()
}

type StateUpdate struct {
	Game GameView `json:"game"`
}

type PlayerJoined struct {
	Player PlayerView `json:"player"`
}

type PlayerUpdated struct {
	Player PlayerView `json:"player"`
}

type GameStarted struct {
	Message    string `json:"message"`
	KeysNeeded int    `json:"keys_needed"`
	Phase      string `json:"phase"`
}

type GameReset struct {
	Message string `json:"message"`
}

type RoleChanged struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	NewRole    string `json:"new_role"`
}

type Event struct {
	EventType string `json:"event_type"`
	Message   string `json:"message"`
}

type NewTurn struct {
	Turn    int    `json:"turn"`
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

type PhaseChange struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

type PowerActionRequired struct {
	Power      string `json:"power"`
	ActionType string `json:"action_type"`
	RoomsCount int    `json:"rooms_count"`
}

type KeyFoundPopup struct {
	Message  string `json:"message"`
	KeysLeft int    `json:"keys_left"`
}

type TrappedNotification struct {
	Message string `json:"message"`
}

type PlayerAction struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Message    string `json:"message"`
}

type GameOver struct {
	Winner  string `json:"winner"`
	Message string `json:"message"`
}

type Error struct {
	Message string `json:"message"`
}

func (StateUpdate) MessageType() string         { return "state_update" }
func (PlayerJoined) MessageType() string        { return "player_joined" }
func (PlayerUpdated) MessageType() string       { return "player_updated" }
func (GameStarted) MessageType() string         { return "game_started" }
func (GameReset) MessageType() string           { return "game_reset" }
func (RoleChanged) MessageType() string         { return "role_changed" }
func (Event) MessageType() string               { return "event" }
func (NewTurn) MessageType() string             { return "new_turn" }
func (PhaseChange) MessageType() string         { return "phase_change" }
func (PowerActionRequired) MessageType() string { return "power_action_required" }
func (KeyFoundPopup) MessageType() string       { return "key_found_popup" }
func (TrappedNotification) MessageType() string { return "trapped_notification" }
func (PlayerAction) MessageType() string        { return "player_action" }
func (GameOver) MessageType() string            { return "game_over" }
func (Error) MessageType() string               { return "error" }

func (StateUpdate) isServerMessage()         {}
func (PlayerJoined) isServerMessage()        {}
func (PlayerUpdated) isServerMessage()       {}
func (GameStarted) isServerMessage()         {}
func (GameReset) isServerMessage()           {}
func (RoleChanged) isServerMessage()         {}
func (Event) isServerMessage()               {}
func (NewTurn) isServerMessage()             {}
func (PhaseChange) isServerMessage()         {}
func (PowerActionRequired) isServerMessage() {}
func (KeyFoundPopup) isServerMessage()       {}
func (TrappedNotification) isServerMessage() {}
func (PlayerAction) isServerMessage()        {}
func (GameOver) isServerMessage()            {}
func (Error) isServerMessage()               {}

// Encode flattens msg into {"type": <tag>, ...payload fields}.
func Encode(msg ServerMessage) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("trying to encode nil message")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(msg.MessageType())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+len(tag)+10)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}
