package engine

import (
	"fmt"
	"slices"

	"github.com/DoyleJ11/manor-backend/pkg/types"
)

// offerPowers draws up to Rules.PowerOffer distinct powers, never the one
// the killer used last turn.
func (g *Game) offerPowers(exclude PowerKey) []PowerKey {
	var pool []PowerKey
	for _, k := range PowerOrder {
		if k != exclude {
			pool = append(pool, k)
		}
	}
	g.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:min(g.Rules.PowerOffer, len(pool))]
}

func (g *Game) powerSelection(playerID string) (*Player, *PowerSelection, error) {
	p, err := g.player(playerID)
	if err != nil {
		return nil, nil, err
	}
	if g.Phase != PhaseKillerPowerSelection {
		return nil, nil, ErrWrongPhase
	}
	sel, ok := g.powers[p.ID]
	if !ok || p.Role != RoleKiller {
		return nil, nil, ErrNotYourTurn
	}
	return p, sel, nil
}

func (g *Game) selectPower(out *outbox, c SelectPower) error {
	p, sel, err := g.powerSelection(c.PlayerID)
	if err != nil {
		return err
	}
	if sel.Selected != "" {
		return ErrAlreadyCommitted
	}
	if !slices.Contains(sel.Options, c.Power) {
		return fmt.Errorf("%w: %q", ErrPowerNotOffered, c.Power)
	}

	def := PowerCatalog[c.Power]
	sel.Selected = c.Power
	if def.RequiresAction {
		out.send(ToPlayer(p.ID), types.PowerActionRequired{
			Power:      string(def.Key),
			ActionType: string(def.ActionType),
			RoomsCount: max(def.RoomsCount, 1),
		})
		return nil
	}

	sel.ActionComplete = true
	out.send(Everyone, types.PlayerAction{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Message:    fmt.Sprintf("🎴 %s chose their power", p.Name),
	})
	g.advance(out)
	return nil
}

func (g *Game) powerAction(out *outbox, c PowerAction) error {
	p, sel, err := g.powerSelection(c.PlayerID)
	if err != nil {
		return err
	}
	if sel.Selected == "" {
		return fmt.Errorf("%w: no power selected", ErrInvalidTargets)
	}
	if sel.ActionComplete {
		return ErrAlreadyCommitted
	}
	targets, err := g.normalizeTargets(PowerCatalog[sel.Selected], c.Rooms)
	if err != nil {
		return err
	}

	sel.Targets = targets
	sel.ActionComplete = true
	out.send(Everyone, types.PlayerAction{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Message:    fmt.Sprintf("🎴 %s chose their power", p.Name),
	})
	g.advance(out)
	return nil
}

// normalizeTargets validates a power's room list. Per-floor powers keep the
// last room named for each floor; room-count powers treat the list as
// toggles and need exactly RoomsCount unlocked rooms.
func (g *Game) normalizeTargets(def PowerDefinition, rooms []string) ([]string, error) {
	for _, name := range rooms {
		if _, ok := g.Rooms[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRoom, name)
		}
	}

	switch def.ActionType {
	case ActionSelectRoomsPerFloor:
		byFloor := map[Floor]string{}
		for _, name := range rooms {
			byFloor[g.Rooms[name].Floor] = name
		}
		var out []string
		for _, f := range Floors {
			if name, ok := byFloor[f]; ok {
				out = append(out, name)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: pick at least one room", ErrInvalidTargets)
		}
		return out, nil

	case ActionSelectRooms:
		var out []string
		for _, name := range rooms {
			if i := slices.Index(out, name); i >= 0 {
				out = slices.Delete(out, i, i+1)
			} else {
				out = append(out, name)
			}
		}
		if len(out) != def.RoomsCount {
			return nil, fmt.Errorf("%w: pick exactly %d rooms", ErrInvalidTargets, def.RoomsCount)
		}
		for _, name := range out {
			if g.Rooms[name].Locked {
				return nil, ErrRoomLocked
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s takes no targets", ErrInvalidTargets, def.Key)
	}
}

// defaultTargets picks targets for a killer who ran out of time.
func (g *Game) defaultTargets(def PowerDefinition) []string {
	unlocked := g.unlockedRooms()
	switch def.ActionType {
	case ActionSelectRoomsPerFloor:
		if len(unlocked) == 0 {
			return nil
		}
		return unlocked[:1]
	case ActionSelectRooms:
		if len(unlocked) < def.RoomsCount {
			return nil
		}
		return append([]string(nil), unlocked[:def.RoomsCount]...)
	}
	return nil
}

// applyPowers closes the power phase, in join order.
func (g *Game) applyPowers(out *outbox) {
	for _, id := range g.Order {
		sel, ok := g.powers[id]
		if !ok || sel.Selected == "" {
			continue
		}
		k := g.Players[id]
		def := PowerCatalog[sel.Selected]
		g.lastPower[id] = sel.Selected
		g.logEvent(out, EvtPowerUsed, RoleKiller, fmt.Sprintf("%s: %s used the power!", def.Name, k.Name))

		switch sel.Selected {
		case PowerVision:
			g.highlightUnsearched()
		case PowerSecousse:
			g.relocateKey = true
		case PowerPiege:
			for _, name := range sel.Targets {
				g.Rooms[name].Trapped = true
			}
		case PowerTraque:
			g.soundClues(out)
		case PowerBarricade:
			for _, name := range sel.Targets {
				g.lock(out, name)
			}
		}
	}
	g.powers = map[string]*PowerSelection{}
}

// highlightUnsearched marks half of the unlocked rooms nobody searched since
// the last key, spread across floors.
func (g *Game) highlightUnsearched() {
	byFloor := map[Floor][]string{}
	total := 0
	for _, name := range g.unlockedRooms() {
		if g.searched[name] {
			continue
		}
		f := g.Rooms[name].Floor
		byFloor[f] = append(byFloor[f], name)
		total++
	}

	floors := append([]Floor(nil), Floors...)
	g.rng.Shuffle(len(floors), func(i, j int) { floors[i], floors[j] = floors[j], floors[i] })
	for _, f := range floors {
		rooms := byFloor[f]
		g.rng.Shuffle(len(rooms), func(i, j int) { rooms[i], rooms[j] = rooms[j], rooms[i] })
	}

	want := total / 2
	for picked := 0; picked < want; {
		for _, f := range floors {
			if picked == want || len(byFloor[f]) == 0 {
				continue
			}
			g.Rooms[byFloor[f][0]].Highlighted = true
			byFloor[f] = byFloor[f][1:]
			picked++
		}
	}
}

// soundClues tells the killers which floors survivors moved on this turn.
func (g *Game) soundClues(out *outbox) {
	heard := map[Floor]bool{}
	for _, s := range g.alive(RoleSurvivor) {
		if g.moved[s.ID] {
			heard[g.Rooms[s.CurrentRoom].Floor] = true
		}
	}
	if len(heard) == 0 {
		g.logEvent(out, EvtSoundClue, RoleKiller, "🔊 Silence... nobody moved this turn.")
		return
	}
	for _, f := range Floors {
		if heard[f] {
			g.logEvent(out, EvtSoundClue, RoleKiller, fmt.Sprintf("🔊 You hear footsteps %s...", floorLabels[f]))
		}
	}
}
