package types

// GameView is the read-only snapshot a client receives in state_update and
// from GET /game/{id}/state. It is already filtered for the viewer's role.
type GameView struct {
	SessionID      string                `json:"session_id"`
	HostID         string                `json:"host_id"`
	Phase          string                `json:"phase"`
	Turn           int                   `json:"turn"`
	KeysCollected  int                   `json:"keys_collected"`
	KeysNeeded     int                   `json:"keys_needed"`
	ConspiracyMode bool                  `json:"conspiracy_mode"`
	GameStarted    bool                  `json:"game_started"`
	Winner         string                `json:"winner,omitempty"`
	Players        map[string]PlayerView `json:"players"`
	Rooms          map[string]RoomView   `json:"rooms"`
	Events         []EventView           `json:"events"`
	// Committed lists same-role players that already acted this phase.
	Committed      []string            `json:"committed"`
	PowerSelection *PowerSelectionView `json:"power_selection,omitempty"`
	Version        int                 `json:"version"`
}

type PlayerView struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Avatar              string `json:"avatar"`
	Role                string `json:"role"`
	IsHost              bool   `json:"is_host"`
	Eliminated          bool   `json:"eliminated"`
	HasMedikit          bool   `json:"has_medikit"`
	ImmobilizedNextTurn bool   `json:"immobilized_next_turn"`
	CurrentRoom         string `json:"current_room,omitempty"`
}

type RoomView struct {
	Name              string   `json:"name"`
	Floor             string   `json:"floor"`
	Locked            bool     `json:"locked"`
	Trapped           bool     `json:"trapped"`
	TrapTriggered     bool     `json:"trap_triggered"`
	Highlighted       bool     `json:"highlighted"`
	EliminatedPlayers []string `json:"eliminated_players"`
}

type EventView struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	ForRole string `json:"for_role,omitempty"`
}

// PowerSelectionView is the viewer's own power offer; nobody sees another
// killer's offer.
type PowerSelectionView struct {
	Options        []string `json:"options"`
	SelectedPower  string   `json:"selected_power,omitempty"`
	ActionComplete bool     `json:"action_complete"`
}

type PowerDefinition struct {
	Name           string `json:"name"`
	Icon           string `json:"icon"`
	Description    string `json:"description"`
	RequiresAction bool   `json:"requires_action"`
	ActionType     string `json:"action_type,omitempty"`
	RoomsCount     int    `json:"rooms_count,omitempty"`
}
