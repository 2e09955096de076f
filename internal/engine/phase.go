package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/manor-backend/pkg/types"
)

func (g *Game) setPhase(next Phase) {
	if !g.Phase.CanTransitionTo(next) {
		zap.L().Error("illegal phase transition",
			zap.String("session_id", g.ID),
			zap.String("from", string(g.Phase)),
			zap.String("to", string(next)),
		)
	}
	g.Phase = next
}

// advance walks through every selection phase whose completion condition
// already holds, running the resolver at each exit.
func (g *Game) advance(out *outbox) {
	for {
		switch g.Phase {
		case PhaseSurvivorSelection:
			if !g.roleCommitted(RoleSurvivor) {
				return
			}
			g.moveSurvivors(out)
			g.enterPowerSelection(out)

		case PhaseKillerPowerSelection:
			if !g.powersComplete() {
				return
			}
			g.applyPowers(out)
			g.enterKillerSelection(out)

		case PhaseKillerSelection:
			if !g.roleCommitted(RoleKiller) {
				return
			}
			g.setPhase(PhaseProcessing)
			g.resolveTurn(out)

		default:
			return
		}
	}
}

func (g *Game) roleCommitted(role Role) bool {
	for _, p := range g.alive(role) {
		if _, ok := g.pending[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (g *Game) powersComplete() bool {
	for _, sel := range g.powers {
		if !sel.ActionComplete {
			return false
		}
	}
	return true
}

// enterSurvivorSelection opens a turn. Survivors caught in a trap last turn
// are committed to staying where they are.
func (g *Game) enterSurvivorSelection(out *outbox) {
	g.setPhase(PhaseSurvivorSelection)
	g.pending = map[string]string{}
	g.moved = map[string]bool{}

	for _, s := range g.alive(RoleSurvivor) {
		if !s.ImmobilizedNextTurn {
			continue
		}
		g.pending[s.ID] = ""
		out.send(ToPlayer(s.ID), types.Event{
			EventType: string(EvtTrapTriggered),
			Message:   "🕸️ You are caught in a trap and skip this turn.",
		})
		out.send(Everyone, types.PlayerAction{
			PlayerID:   s.ID,
			PlayerName: s.Name,
			Message:    fmt.Sprintf("✅ %s made their choice", s.Name),
		})
	}
}

func (g *Game) enterPowerSelection(out *outbox) {
	g.powers = map[string]*PowerSelection{}
	if g.Rules.PowersEnabled {
		for _, k := range g.alive(RoleKiller) {
			if opts := g.offerPowers(g.lastPower[k.ID]); len(opts) > 0 {
				g.powers[k.ID] = &PowerSelection{Options: opts}
			}
		}
	}
	if len(g.powers) == 0 {
		g.enterKillerSelection(out)
		return
	}

	g.setPhase(PhaseKillerPowerSelection)
	out.send(Everyone, types.PhaseChange{
		Phase:   string(PhaseKillerPowerSelection),
		Message: "🎴 The killers choose their power",
	})
}

// enterKillerSelection opens the killers' move. When the whole house is
// locked the killers stay where they are.
func (g *Game) enterKillerSelection(out *outbox) {
	g.setPhase(PhaseKillerSelection)
	g.pending = map[string]string{}
	if len(g.unlockedRooms()) == 0 {
		for _, k := range g.alive(RoleKiller) {
			g.pending[k.ID] = ""
		}
	}

	out.send(Everyone, types.PhaseChange{
		Phase:   string(PhaseKillerSelection),
		Message: "🔪 The killers choose their room",
	})
}

func (g *Game) nextTurn(out *outbox) {
	g.Turn++
	out.send(Everyone, types.NewTurn{
		Turn:    g.Turn,
		Phase:   string(PhaseSurvivorSelection),
		Message: fmt.Sprintf("🔄 Turn %d - survivors choose a room", g.Turn),
	})
	g.enterSurvivorSelection(out)
}

func (g *Game) finish(out *outbox, winner Winner) {
	var survivorMsg, killerMsg string
	if winner == WinnerSurvivors {
		survivorMsg = "🎉 VICTORY! The survivors collected every key!"
		killerMsg = "🎉 DEFEAT! The survivors collected every key!"
	} else {
		survivorMsg = "💀 DEFEAT! Every survivor has been eliminated..."
		killerMsg = "💀 VICTORY! Every survivor has been eliminated..."
	}

	g.setPhase(PhaseGameOver)
	g.Winner = winner
	g.pending = map[string]string{}
	g.powers = map[string]*PowerSelection{}

	g.Events = append(g.Events,
		Event{Type: EvtGameOver, Message: survivorMsg, ForRole: RoleSurvivor},
		Event{Type: EvtGameOver, Message: killerMsg, ForRole: RoleKiller},
	)
	out.send(ToRole(RoleSurvivor), types.GameOver{Winner: string(winner), Message: survivorMsg})
	out.send(ToRole(RoleKiller), types.GameOver{Winner: string(winner), Message: killerMsg})
}

func (g *Game) selectRoom(out *outbox, c SelectRoom) error {
	p, err := g.player(c.PlayerID)
	if err != nil {
		return err
	}
	if g.Phase != PhaseSurvivorSelection && g.Phase != PhaseKillerSelection {
		return ErrWrongPhase
	}
	if p.Role != g.Phase.actingRole() {
		return ErrNotYourTurn
	}
	if p.Eliminated {
		return ErrPlayerEliminated
	}
	if _, done := g.pending[p.ID]; done {
		return ErrAlreadyCommitted
	}
	room, ok := g.Rooms[c.Room]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoom, c.Room)
	}
	if room.Locked {
		return ErrRoomLocked
	}

	g.pending[p.ID] = room.Name
	out.send(Everyone, types.PlayerAction{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Message:    fmt.Sprintf("✅ %s made their choice", p.Name),
	})
	g.advance(out)
	return nil
}

// timeout forces a default for every player still owing an action in the
// given turn and phase.
func (g *Game) timeout(out *outbox, c Timeout) {
	if c.Turn != g.Turn || c.Phase != g.Phase {
		return
	}

	switch g.Phase {
	case PhaseSurvivorSelection, PhaseKillerSelection:
		role := g.Phase.actingRole()
		for _, p := range g.alive(role) {
			if _, done := g.pending[p.ID]; done {
				continue
			}
			room := ""
			if unlocked := g.unlockedRooms(); len(unlocked) > 0 {
				room = unlocked[0]
			}
			g.pending[p.ID] = room
			g.logEvent(out, EvtForcedAction, role, fmt.Sprintf("⏱️ %s ran out of time.", p.Name))
		}

	case PhaseKillerPowerSelection:
		for _, id := range g.Order {
			sel, ok := g.powers[id]
			if !ok || sel.ActionComplete {
				continue
			}
			if sel.Selected == "" {
				sel.Selected = sel.Options[0]
			}
			if def := PowerCatalog[sel.Selected]; def.RequiresAction {
				sel.Targets = g.defaultTargets(def)
			}
			sel.ActionComplete = true
			g.logEvent(out, EvtForcedAction, RoleKiller, fmt.Sprintf("⏱️ %s ran out of time.", g.Players[id].Name))
		}

	default:
		return
	}
	g.advance(out)
}
