package engine

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/manor-backend/pkg/types"
)

// moveSurvivors closes the survivors' phase: committed survivors enter their
// room and traps are resolved. Traps that fired last turn are spent and
// traps nobody walked into are removed.
func (g *Game) moveSurvivors(out *outbox) {
	for _, r := range g.Rooms {
		if r.TrapTriggered {
			r.Trapped = false
			r.TrapTriggered = false
		}
	}

	g.moved = map[string]bool{}
	for _, s := range g.alive(RoleSurvivor) {
		room, ok := g.pending[s.ID]
		if !ok {
			continue
		}
		if room == "" {
			s.ImmobilizedNextTurn = false
			continue
		}
		s.CurrentRoom = room
		g.moved[s.ID] = true
		g.searched[room] = true

		if r := g.Rooms[room]; r.Trapped {
			r.TrapTriggered = true
			s.ImmobilizedNextTurn = true
			out.send(ToPlayer(s.ID), types.TrappedNotification{
				Message: fmt.Sprintf("🕸️ You walked into a trap in %s! You cannot move next turn.", room),
			})
		}
	}

	for _, r := range g.Rooms {
		if r.Trapped && !r.TrapTriggered {
			r.Trapped = false
		}
	}
	g.pending = map[string]string{}
}

// resolveTurn runs the processing phase after every killer has committed.
func (g *Game) resolveTurn(out *outbox) {
	if g.keyOwed && g.placeKey() != "" {
		g.keyOwed = false
	}
	for _, r := range g.Rooms {
		r.Highlighted = false
	}

	keyFound := false
	for _, s := range g.alive(RoleSurvivor) {
		if !g.moved[s.ID] {
			continue
		}
		room := g.Rooms[s.CurrentRoom]

		if g.search(room) {
			keyFound = true
			g.collectKey(out, s, room)
		} else {
			g.logEvent(out, EvtSearchNoKey, RoleSurvivor,
				fmt.Sprintf("🔍 %s searched %s: nothing.", s.Name, room.Name))
		}

		if g.medikitRoom == room.Name {
			g.medikitRoom = ""
			s.HasMedikit = true
			g.logEvent(out, EvtMedikitFound, RoleSurvivor,
				fmt.Sprintf("💊 %s found the medikit in %s!", s.Name, room.Name))
		}
	}

	for _, k := range g.alive(RoleKiller) {
		if room := g.pending[k.ID]; room != "" {
			k.CurrentRoom = room
		}
	}

	var toLock []string
	for _, k := range g.alive(RoleKiller) {
		if k.CurrentRoom == "" {
			continue
		}
		for _, s := range g.alive(RoleSurvivor) {
			if s.CurrentRoom != k.CurrentRoom {
				continue
			}
			g.eliminate(out, k, s)
			if !slices.Contains(toLock, s.CurrentRoom) {
				toLock = append(toLock, s.CurrentRoom)
			}
		}
	}
	for _, name := range toLock {
		g.lock(out, name)
	}

	if g.relocateKey && !keyFound && g.Rules.KeyMode == KeyModeHidden && g.keyRoom != "" {
		g.keyRoom = ""
		if g.placeKey() == "" {
			g.keyOwed = true
		}
		g.logEvent(out, EvtKeyRelocated, "", "↩️ A tremor shakes the house... the key has moved!")
	}
	g.relocateKey = false
	g.pending = map[string]string{}
	g.moved = map[string]bool{}

	alive := g.alive(RoleSurvivor)
	switch {
	case g.KeysCollected >= g.KeysNeeded && len(alive) > 0:
		g.finish(out, WinnerSurvivors)
	case len(alive) == 0, len(g.unlockedRooms()) == 0:
		g.finish(out, WinnerKillers)
	default:
		g.nextTurn(out)
	}
}

// search reports whether a survivor searching room finds a key.
func (g *Game) search(room *Room) bool {
	if g.KeysCollected >= g.KeysNeeded {
		return false
	}
	switch g.Rules.KeyMode {
	case KeyModeChance:
		if g.yielded[room.Name] || g.rng.Float64() >= g.Rules.KeyChance {
			return false
		}
		g.yielded[room.Name] = true
		return true
	default:
		if g.keyRoom == "" || g.keyRoom != room.Name {
			return false
		}
		g.keyRoom = ""
		return true
	}
}

func (g *Game) collectKey(out *outbox, s *Player, room *Room) {
	g.KeysCollected++
	left := g.KeysNeeded - g.KeysCollected
	g.searched = map[string]bool{}

	g.logEvent(out, EvtKeyFound, RoleSurvivor,
		fmt.Sprintf("🔑 %s found a key in %s! (%d/%d)", s.Name, room.Name, g.KeysCollected, g.KeysNeeded))
	out.send(ToPlayer(s.ID), types.KeyFoundPopup{
		Message:  fmt.Sprintf("🔑 You found a key in %s!", room.Name),
		KeysLeft: left,
	})
	if left > 0 && g.Rules.KeyMode == KeyModeHidden {
		g.keyOwed = true
	}
}

func (g *Game) eliminate(out *outbox, k, s *Player) {
	s.Eliminated = true
	room := g.Rooms[s.CurrentRoom]
	room.EliminatedPlayers = append(room.EliminatedPlayers, s.ID)
	g.logEvent(out, EvtElimination, "",
		fmt.Sprintf("💀 %s was eliminated by %s in %s!", s.Name, k.Name, room.Name))

	if s.HasMedikit {
		s.HasMedikit = false
		g.placeMedikit()
		g.logEvent(out, EvtMedikitRespawn, RoleSurvivor, "💊 The medikit was destroyed. A new one appeared somewhere in the house.")
	}
}

func (g *Game) revive(out *outbox, healer, target *Player) {
	room := g.Rooms[target.CurrentRoom]
	target.Eliminated = false
	healer.HasMedikit = false
	if i := slices.Index(room.EliminatedPlayers, target.ID); i >= 0 {
		room.EliminatedPlayers = slices.Delete(room.EliminatedPlayers, i, i+1)
	}

	g.logEvent(out, EvtRevival, "",
		fmt.Sprintf("💊 %s revived %s in %s!", healer.Name, target.Name, room.Name))
	g.placeMedikit()
	g.logEvent(out, EvtMedikitRespawn, RoleSurvivor, "💊 A new medikit appeared somewhere in the house.")
}

func (g *Game) lock(out *outbox, name string) {
	room := g.Rooms[name]
	if room.Locked {
		return
	}
	room.Locked = true
	if g.keyRoom == name {
		g.keyRoom = ""
		g.keyOwed = true
	}
	if g.medikitRoom == name {
		g.placeMedikit()
	}
	g.logEvent(out, EvtRoomLocked, "", fmt.Sprintf("🔒 %s is now locked.", name))
}

// placeKey hides the next key in an unlocked room no killer stands in.
func (g *Game) placeKey() string {
	killers := g.killerPositions()
	var candidates []string
	for _, name := range g.unlockedRooms() {
		if !killers[name] {
			candidates = append(candidates, name)
		}
	}
	g.keyRoom = g.pickRoom(candidates)
	return g.keyRoom
}

func (g *Game) placeMedikit() {
	killers := g.killerPositions()
	var candidates []string
	for _, name := range g.unlockedRooms() {
		if !killers[name] && name != g.medikitRoom && name != g.keyRoom {
			candidates = append(candidates, name)
		}
	}
	g.medikitRoom = g.pickRoom(candidates)
	if g.medikitRoom == "" {
		zap.L().Debug("no room left for the medikit", zap.String("session_id", g.ID))
	}
}

// useMedikit revives an eliminated survivor teammate wherever they fell.
// The revived survivor stays in that room until their next move. A medikit
// that cannot be used is a logged no-op.
func (g *Game) useMedikit(out *outbox, c UseMedikit) error {
	p, err := g.player(c.PlayerID)
	if err != nil {
		return err
	}
	if !g.Phase.IsSelection() {
		return ErrWrongPhase
	}
	if p.Role != RoleSurvivor {
		return ErrNotYourTurn
	}
	if p.Eliminated {
		return ErrPlayerEliminated
	}

	target, ok := g.Players[c.TargetID]
	if !p.HasMedikit || !ok || !target.Eliminated || target.Role != RoleSurvivor {
		zap.L().Debug("medikit not used",
			zap.String("session_id", g.ID),
			zap.String("player_id", p.ID),
			zap.String("target_id", c.TargetID),
		)
		return nil
	}

	g.revive(out, p, target)
	return nil
}
