package engine

import (
	"errors"
	"math/rand/v2"

	"github.com/DoyleJ11/manor-backend/pkg/types"
)

var ErrSessionNotFound = errors.New("session not found")
var ErrPlayerNotFound = errors.New("player not found")
var ErrSessionFull = errors.New("game is full")
var ErrAlreadyStarted = errors.New("game already started")
var ErrNotEnoughPlayers = errors.New("need at least one survivor and one killer")
var ErrWrongPhase = errors.New("action not allowed in this phase")
var ErrNotYourTurn = errors.New("not your turn")
var ErrRoomLocked = errors.New("room is locked")
var ErrUnknownRoom = errors.New("unknown room")
var ErrPlayerEliminated = errors.New("player is eliminated")
var ErrAlreadyCommitted = errors.New("already committed this phase")
var ErrConspiracyRole = errors.New("roles are drawn at start in conspiracy mode")
var ErrInvalidRole = errors.New("invalid role")
var ErrPowerNotOffered = errors.New("power not offered")
var ErrInvalidTargets = errors.New("invalid power targets")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrDuplicatePlayer = errors.New("player already in session")

const MaxPlayers = 8

type Role string

const (
	RoleSurvivor Role = "survivor"
	RoleKiller   Role = "killer"
	// RolePending is only used under conspiracy mode, until the game starts.
	RolePending Role = "pending"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSurvivor, RoleKiller:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

type Phase string

const (
	PhaseLobby                Phase = "lobby"
	PhaseSurvivorSelection    Phase = "survivor_selection"
	PhaseKillerPowerSelection Phase = "killer_power_selection"
	PhaseKillerSelection      Phase = "killer_selection"
	PhaseProcessing           Phase = "processing"
	PhaseGameOver             Phase = "game_over"
)

type Winner string

const (
	WinnerNone      Winner = ""
	WinnerSurvivors Winner = "survivors"
	WinnerKillers   Winner = "killers"
)

type KeyMode string

const (
	// KeyModeHidden hides one key at a time in a random room; searching that
	// room finds it.
	KeyModeHidden KeyMode = "hidden"
	// KeyModeChance gives every search of a room that has not yielded a key
	// yet an independent KeyChance of finding one.
	KeyModeChance KeyMode = "chance"
)

type Rules struct {
	KeyMode       KeyMode
	KeyChance     float64
	PowerOffer    int
	PowersEnabled bool
}

func DefaultRules() Rules {
	return Rules{
		KeyMode:       KeyModeHidden,
		KeyChance:     0.25,
		PowerOffer:    3,
		PowersEnabled: true,
	}
}

type Player struct {
	ID                  string
	Name                string
	Avatar              string
	Role                Role
	IsHost              bool
	Eliminated          bool
	HasMedikit          bool
	ImmobilizedNextTurn bool
	CurrentRoom         string
}

type Room struct {
	Name              string
	Floor             Floor
	Locked            bool
	Trapped           bool
	TrapTriggered     bool
	Highlighted       bool
	EliminatedPlayers []string
}

type EventType string

const (
	EvtKeyFound       EventType = "key_found"
	EvtSearchNoKey    EventType = "search_no_key"
	EvtElimination    EventType = "elimination"
	EvtRevival        EventType = "revival"
	EvtMedikitFound   EventType = "medikit_found"
	EvtMedikitRespawn EventType = "medikit_respawn"
	EvtRoomLocked     EventType = "room_locked"
	EvtKeyRelocated   EventType = "key_relocated"
	EvtPowerUsed      EventType = "power_used"
	EvtSoundClue      EventType = "sound_clue"
	EvtTrapTriggered  EventType = "trap_triggered"
	EvtForcedAction   EventType = "forced_action"
	EvtGameOver       EventType = "game_over"
)

// Event is one entry of the session's append-only log. An empty ForRole
// means everyone may see it.
type Event struct {
	Type    EventType
	Message string
	ForRole Role
}

type PowerSelection struct {
	Options        []PowerKey
	Selected       PowerKey
	Targets        []string
	ActionComplete bool
}

type Game struct {
	ID             string
	HostID         string
	Players        map[string]*Player
	Order          []string // join order, used for every deterministic walk
	Rooms          map[string]*Room
	Phase          Phase
	Turn           int
	KeysCollected  int
	KeysNeeded     int
	ConspiracyMode bool
	Winner         Winner
	Events         []Event
	Rules          Rules

	pending     map[string]string // player -> chosen room, "" = stays in place
	moved       map[string]bool   // survivors who entered a room this turn
	powers      map[string]*PowerSelection
	keyRoom     string
	keyOwed     bool
	medikitRoom string
	searched    map[string]bool // rooms searched since the last key
	yielded     map[string]bool // rooms that already gave a key (chance mode)
	lastPower   map[string]PowerKey
	relocateKey bool
	rng         *rand.Rand
}

// Commands

type Command interface{ isCommand() }

type Join struct {
	PlayerID string
	Name     string
	Avatar   string
	Role     Role
}

type UpdatePlayer struct {
	PlayerID string
	Name     string
	Avatar   string
	Role     Role
}

type ChangeRole struct {
	PlayerID string
	Role     Role
}

type StartGame struct{}

type ResetGame struct{}

type SelectRoom struct {
	PlayerID string
	Room     string
}

type UseMedikit struct {
	PlayerID string
	TargetID string
}

type SelectPower struct {
	PlayerID string
	Power    PowerKey
}

type PowerAction struct {
	PlayerID string
	Rooms    []string
}

// Timeout forces default actions for whoever has not acted in the given
// turn and phase. A stale timeout is a no-op.
type Timeout struct {
	Turn  int
	Phase Phase
}

func (Join) isCommand()         {}
func (UpdatePlayer) isCommand() {}
func (ChangeRole) isCommand()   {}
func (StartGame) isCommand()    {}
func (ResetGame) isCommand()    {}
func (SelectRoom) isCommand()   {}
func (UseMedikit) isCommand()   {}
func (SelectPower) isCommand()  {}
func (PowerAction) isCommand()  {}
func (Timeout) isCommand()      {}

// Audience selects who receives a notice. The zero value is everyone.
type Audience struct {
	Role     Role
	PlayerID string
}

var Everyone = Audience{}

func ToRole(r Role) Audience        { return Audience{Role: r} }
func ToPlayer(id string) Audience   { return Audience{PlayerID: id} }
func (a Audience) IsEveryone() bool { return a == Everyone }

func (a Audience) Admits(p *Player) bool {
	switch {
	case a.PlayerID != "":
		return p != nil && p.ID == a.PlayerID
	case a.Role != "":
		return p != nil && p.Role == a.Role
	default:
		return true
	}
}

// Notice is an outbound message produced by Apply, addressed to an audience.
type Notice struct {
	To  Audience
	Msg types.ServerMessage
}

// Apply runs one command against the game. It either applies the command
// fully and returns the notices to deliver, or returns an error and leaves
// the game untouched.
func Apply(g *Game, cmd Command) ([]Notice, error) {
	out := &outbox{}
	var err error

	switch c := cmd.(type) {
	case Join:
		err = g.join(out, c)
	case UpdatePlayer:
		err = g.updatePlayer(out, c)
	case ChangeRole:
		err = g.changeRole(out, c)
	case StartGame:
		err = g.start(out)
	case ResetGame:
		g.reset(out)
	case SelectRoom:
		err = g.selectRoom(out, c)
	case UseMedikit:
		err = g.useMedikit(out, c)
	case SelectPower:
		err = g.selectPower(out, c)
	case PowerAction:
		err = g.powerAction(out, c)
	case Timeout:
		g.timeout(out, c)
	default:
		err = ErrUnsupportedCommand
	}

	if err != nil {
		return nil, err
	}
	return out.notices, nil
}
