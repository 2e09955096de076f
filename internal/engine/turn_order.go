package engine

// transitions is the turn state machine. processing is transient: it is
// entered and left inside the command that completes killer_selection.
var transitions = map[Phase][]Phase{
	PhaseLobby:                {PhaseSurvivorSelection},
	PhaseSurvivorSelection:    {PhaseKillerPowerSelection, PhaseKillerSelection},
	PhaseKillerPowerSelection: {PhaseKillerSelection},
	PhaseKillerSelection:      {PhaseProcessing},
	PhaseProcessing:           {PhaseSurvivorSelection, PhaseGameOver},
	PhaseGameOver:             {},
}

func (p Phase) CanTransitionTo(target Phase) bool {
	for _, next := range transitions[p] {
		if next == target {
			return true
		}
	}
	return false
}

// IsSelection reports whether players commit actions during p.
func (p Phase) IsSelection() bool {
	switch p {
	case PhaseSurvivorSelection, PhaseKillerPowerSelection, PhaseKillerSelection:
		return true
	}
	return false
}

// actingRole is the role whose players commit during a selection phase.
func (p Phase) actingRole() Role {
	switch p {
	case PhaseSurvivorSelection:
		return RoleSurvivor
	case PhaseKillerPowerSelection, PhaseKillerSelection:
		return RoleKiller
	}
	return ""
}
