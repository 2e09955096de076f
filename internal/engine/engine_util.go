package engine

import (
	"math/rand/v2"

	"github.com/DoyleJ11/manor-backend/pkg/types"
)

// NewGame builds a lobby with the host as its only player.
func NewGame(id, hostID, hostName, hostAvatar string, role Role, conspiracy bool, rules Rules, seed uint64) (*Game, error) {
	if conspiracy {
		role = RolePending
	} else if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	if rules.PowerOffer <= 0 {
		rules.PowerOffer = DefaultRules().PowerOffer
	}
	if rules.KeyMode == "" {
		rules.KeyMode = KeyModeHidden
	}

	g := &Game{
		ID:             id,
		HostID:         hostID,
		Players:        map[string]*Player{},
		Rooms:          newRooms(),
		Phase:          PhaseLobby,
		ConspiracyMode: conspiracy,
		Rules:          rules,
		rng:            rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	g.clearRound()
	g.Players[hostID] = &Player{ID: hostID, Name: hostName, Avatar: hostAvatar, Role: role, IsHost: true}
	g.Order = []string{hostID}
	return g, nil
}

// clearRound drops all per-game hidden bookkeeping.
func (g *Game) clearRound() {
	g.Turn = 0
	g.KeysCollected = 0
	g.KeysNeeded = 0
	g.Winner = WinnerNone
	g.Events = []Event{}
	g.pending = map[string]string{}
	g.moved = map[string]bool{}
	g.powers = map[string]*PowerSelection{}
	g.keyRoom = ""
	g.keyOwed = false
	g.medikitRoom = ""
	g.searched = map[string]bool{}
	g.yielded = map[string]bool{}
	g.lastPower = map[string]PowerKey{}
	g.relocateKey = false
}

type outbox struct {
	notices []Notice
}

func (o *outbox) send(to Audience, msg types.ServerMessage) {
	o.notices = append(o.notices, Notice{To: to, Msg: msg})
}

// logEvent appends to the session log and announces it to the audience the
// event is visible to.
func (g *Game) logEvent(out *outbox, typ EventType, forRole Role, msg string) {
	g.Events = append(g.Events, Event{Type: typ, Message: msg, ForRole: forRole})
	to := Everyone
	if forRole != "" {
		to = ToRole(forRole)
	}
	out.send(to, types.Event{EventType: string(typ), Message: msg})
}

func (g *Game) byRole(role Role) []*Player {
	var out []*Player
	for _, id := range g.Order {
		if p := g.Players[id]; p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) alive(role Role) []*Player {
	var out []*Player
	for _, p := range g.byRole(role) {
		if !p.Eliminated {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) unlockedRooms() []string {
	var out []string
	for _, rc := range RoomCatalog {
		if !g.Rooms[rc.Name].Locked {
			out = append(out, rc.Name)
		}
	}
	return out
}

func (g *Game) killerPositions() map[string]bool {
	out := map[string]bool{}
	for _, k := range g.byRole(RoleKiller) {
		if k.CurrentRoom != "" {
			out[k.CurrentRoom] = true
		}
	}
	return out
}

func (g *Game) pickRoom(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[g.rng.IntN(len(candidates))]
}

func (g *Game) player(id string) (*Player, error) {
	p, ok := g.Players[id]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	return p, nil
}

// Pending reports the room a player committed to this phase.
func (g *Game) Pending(playerID string) (string, bool) {
	room, ok := g.pending[playerID]
	return room, ok
}

// PowerSelectionOf returns a copy of the player's power offer, if any.
func (g *Game) PowerSelectionOf(playerID string) (PowerSelection, bool) {
	sel, ok := g.powers[playerID]
	if !ok {
		return PowerSelection{}, false
	}
	cp := *sel
	cp.Options = append([]PowerKey(nil), sel.Options...)
	cp.Targets = append([]string(nil), sel.Targets...)
	return cp, true
}

func ContainsNotice(notices []Notice, msgType string) bool {
	for _, n := range notices {
		if n.Msg.MessageType() == msgType {
			return true
		}
	}
	return false
}

func ToPlayerView(p *Player) types.PlayerView {
	return types.PlayerView{
		ID:                  p.ID,
		Name:                p.Name,
		Avatar:              p.Avatar,
		Role:                string(p.Role),
		IsHost:              p.IsHost,
		Eliminated:          p.Eliminated,
		HasMedikit:          p.HasMedikit,
		ImmobilizedNextTurn: p.ImmobilizedNextTurn,
		CurrentRoom:         p.CurrentRoom,
	}
}
