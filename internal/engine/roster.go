package engine

import (
	"fmt"

	"github.com/DoyleJ11/manor-backend/pkg/types"
)

// conspiracySplit is the number of survivors drawn for a roster size; the
// rest are killers.
var conspiracySplit = map[int]int{
	3: 2,
	4: 2,
	5: 3,
	6: 4,
	7: 4,
	8: 5,
}

func survivorsFor(n int) int {
	if s, ok := conspiracySplit[n]; ok {
		return s
	}
	return max(1, n-1)
}

func (g *Game) lobbyRole(role Role) (Role, error) {
	if g.ConspiracyMode {
		return RolePending, nil
	}
	return ParseRole(string(role))
}

func (g *Game) join(out *outbox, c Join) error {
	if g.Phase != PhaseLobby {
		return ErrAlreadyStarted
	}
	if len(g.Players) >= MaxPlayers {
		return ErrSessionFull
	}
	if _, exists := g.Players[c.PlayerID]; exists || c.PlayerID == "" {
		return fmt.Errorf("join with player id %q: %w", c.PlayerID, ErrDuplicatePlayer)
	}
	role, err := g.lobbyRole(c.Role)
	if err != nil {
		return err
	}

	p := &Player{ID: c.PlayerID, Name: c.Name, Avatar: c.Avatar, Role: role}
	g.Players[p.ID] = p
	g.Order = append(g.Order, p.ID)

	out.send(Everyone, types.PlayerJoined{Player: ToPlayerView(p)})
	return nil
}

func (g *Game) updatePlayer(out *outbox, c UpdatePlayer) error {
	p, err := g.player(c.PlayerID)
	if err != nil {
		return err
	}
	if g.Phase != PhaseLobby {
		return ErrAlreadyStarted
	}
	role, err := g.lobbyRole(c.Role)
	if err != nil {
		return err
	}

	p.Name = c.Name
	p.Avatar = c.Avatar
	p.Role = role

	out.send(Everyone, types.PlayerUpdated{Player: ToPlayerView(p)})
	return nil
}

func (g *Game) changeRole(out *outbox, c ChangeRole) error {
	p, err := g.player(c.PlayerID)
	if err != nil {
		return err
	}
	if g.Phase != PhaseLobby {
		return ErrAlreadyStarted
	}
	if g.ConspiracyMode {
		return ErrConspiracyRole
	}
	role, err := ParseRole(string(c.Role))
	if err != nil {
		return err
	}

	p.Role = role
	out.send(Everyone, types.RoleChanged{PlayerID: p.ID, PlayerName: p.Name, NewRole: string(role)})
	return nil
}

func (g *Game) start(out *outbox) error {
	if g.Phase != PhaseLobby {
		return ErrAlreadyStarted
	}

	roles := make(map[string]Role, len(g.Order))
	if g.ConspiracyMode {
		ids := append([]string(nil), g.Order...)
		g.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		survivors := survivorsFor(len(ids))
		for i, id := range ids {
			if i < survivors {
				roles[id] = RoleSurvivor
			} else {
				roles[id] = RoleKiller
			}
		}
	} else {
		for _, id := range g.Order {
			roles[id] = g.Players[id].Role
		}
	}

	var survivors, killers int
	for _, r := range roles {
		switch r {
		case RoleSurvivor:
			survivors++
		case RoleKiller:
			killers++
		}
	}
	if survivors == 0 || killers == 0 {
		return ErrNotEnoughPlayers
	}

	for id, r := range roles {
		g.Players[id].Role = r
	}
	g.clearRound()
	g.KeysNeeded = survivors
	g.Turn = 1
	if g.Rules.KeyMode == KeyModeHidden {
		g.placeKey()
	}
	g.placeMedikit()

	out.send(Everyone, types.GameStarted{
		Message: fmt.Sprintf("🎮 The game begins! Survivors must collect %d key(s) to escape. Turn 1 - survivors choose a room.",
			g.KeysNeeded),
		KeysNeeded: g.KeysNeeded,
		Phase:      string(PhaseSurvivorSelection),
	})
	g.enterSurvivorSelection(out)
	return nil
}

// reset returns the session to the lobby for a rematch. The roster, the
// host and the conspiracy flag survive.
func (g *Game) reset(out *outbox) {
	for _, p := range g.Players {
		p.Eliminated = false
		p.HasMedikit = false
		p.ImmobilizedNextTurn = false
		p.CurrentRoom = ""
		if g.ConspiracyMode {
			p.Role = RolePending
		}
	}
	g.Rooms = newRooms()
	g.clearRound()
	g.Phase = PhaseLobby

	out.send(Everyone, types.GameReset{Message: "The game is over. Ready for a rematch?"})
}
