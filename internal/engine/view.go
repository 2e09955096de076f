package engine

import "github.com/DoyleJ11/manor-backend/pkg/types"

// View renders g for one viewer. An unknown or empty viewer gets the public
// view, which reveals no more than a survivor sees. Pending choices are never
// part of a view.
func View(g *Game, viewerID string, version int) types.GameView {
	viewer := g.Players[viewerID]
	var role Role
	if viewer != nil && (viewer.Role == RoleSurvivor || viewer.Role == RoleKiller) {
		role = viewer.Role
	}

	v := types.GameView{
		SessionID:      g.ID,
		HostID:         g.HostID,
		Phase:          string(g.Phase),
		Turn:           g.Turn,
		KeysCollected:  g.KeysCollected,
		KeysNeeded:     g.KeysNeeded,
		ConspiracyMode: g.ConspiracyMode,
		GameStarted:    g.Phase != PhaseLobby,
		Winner:         string(g.Winner),
		Players:        make(map[string]types.PlayerView, len(g.Players)),
		Rooms:          make(map[string]types.RoomView, len(g.Rooms)),
		Events:         []types.EventView{},
		Committed:      []string{},
		Version:        version,
	}

	for _, id := range g.Order {
		p := g.Players[id]
		pv := ToPlayerView(p)
		if role == "" || p.Role != role {
			if !p.Eliminated {
				pv.CurrentRoom = ""
			}
			pv.ImmobilizedNextTurn = false
		}
		v.Players[id] = pv
	}

	for _, rc := range RoomCatalog {
		r := g.Rooms[rc.Name]
		rv := types.RoomView{
			Name:              r.Name,
			Floor:             string(r.Floor),
			Locked:            r.Locked,
			Trapped:           r.Trapped,
			TrapTriggered:     r.TrapTriggered,
			Highlighted:       r.Highlighted,
			EliminatedPlayers: append([]string{}, r.EliminatedPlayers...),
		}
		if role == RoleKiller {
			rv.TrapTriggered = false
		} else {
			rv.Highlighted = false
			rv.Trapped = r.Trapped && r.TrapTriggered
		}
		v.Rooms[rc.Name] = rv
	}

	for _, e := range g.Events {
		if e.ForRole == "" || e.ForRole == role {
			v.Events = append(v.Events, types.EventView{Type: string(e.Type), Message: e.Message, ForRole: string(e.ForRole)})
		}
	}

	if role != "" {
		v.Committed = g.committed(role)
	}
	if sel, ok := g.powers[viewerID]; ok {
		ps := &types.PowerSelectionView{
			Options:        make([]string, len(sel.Options)),
			SelectedPower:  string(sel.Selected),
			ActionComplete: sel.ActionComplete,
		}
		for i, k := range sel.Options {
			ps.Options[i] = string(k)
		}
		v.PowerSelection = ps
	}
	return v
}

// committed lists players of role who already acted in the current phase.
func (g *Game) committed(role Role) []string {
	out := []string{}
	if g.Phase.actingRole() != role {
		return out
	}
	for _, p := range g.alive(role) {
		if g.Phase == PhaseKillerPowerSelection {
			if sel, ok := g.powers[p.ID]; ok && sel.ActionComplete {
				out = append(out, p.ID)
			}
			continue
		}
		if _, ok := g.pending[p.ID]; ok {
			out = append(out, p.ID)
		}
	}
	return out
}
