package engine

// MatchSummary is what the archive keeps of a finished game.
type MatchSummary struct {
	SessionID      string
	Winner         Winner
	Turns          int
	KeysCollected  int
	KeysNeeded     int
	ConspiracyMode bool
	KeyMode        KeyMode
	Players        []PlayerSummary
}

type PlayerSummary struct {
	PlayerID   string
	Name       string
	Role       Role
	Eliminated bool
	IsHost     bool
}

// Summarize captures a finished game. It copies everything so the summary
// can leave the session goroutine.
func Summarize(g *Game) MatchSummary {
	s := MatchSummary{
		SessionID:      g.ID,
		Winner:         g.Winner,
		Turns:          g.Turn,
		KeysCollected:  g.KeysCollected,
		KeysNeeded:     g.KeysNeeded,
		ConspiracyMode: g.ConspiracyMode,
		KeyMode:        g.Rules.KeyMode,
		Players:        make([]PlayerSummary, 0, len(g.Order)),
	}
	for _, id := range g.Order {
		p := g.Players[id]
		s.Players = append(s.Players, PlayerSummary{
			PlayerID:   p.ID,
			Name:       p.Name,
			Role:       p.Role,
			Eliminated: p.Eliminated,
			IsHost:     p.IsHost,
		})
	}
	return s
}
