package intent

import "strings"

// Phase is a coarse interview stage. Phases are strictly ordered.
type Phase string

const (
	PhaseScopeDefinition Phase = "SCOPE_DEFINITION"
	PhaseInit            Phase = "INIT"
	PhaseBusiness        Phase = "BUSINESS"
	PhaseFunctional      Phase = "FUNCTIONAL"
	PhaseDesign          Phase = "DESIGN"
	PhaseNonFunctional   Phase = "NON_FUNCTIONAL"
	PhaseAdditional      Phase = "ADDITIONAL"
	PhaseComplete        Phase = "COMPLETE"

	InitialPhase = PhaseScopeDefinition
)

var phaseOrder = map[Phase]int{
	PhaseScopeDefinition: 0,
	PhaseInit:            1,
	PhaseBusiness:        2,
	PhaseFunctional:      3,
	PhaseDesign:          4,
	PhaseNonFunctional:   5,
	PhaseAdditional:      6,
	PhaseComplete:        7,
}

// ParsePhase accepts any casing and surrounding blanks.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := phaseOrder[p]
	return p, ok
}

func (p Phase) Known() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Before reports whether p comes strictly before o. Unknown phases sort first.
func (p Phase) Before(o Phase) bool {
	return rank(p) < rank(o)
}

// Advance returns the later of cur and proposed, so a session never moves
// backward. An unknown proposal leaves cur in place.
func Advance(cur, proposed Phase) Phase {
	if !proposed.Known() {
		if cur.Known() {
			return cur
		}
		return InitialPhase
	}
	if !cur.Known() || cur.Before(proposed) {
		return proposed
	}
	return cur
}

func rank(p Phase) int {
	if r, ok := phaseOrder[p]; ok {
		return r
	}
	return -1
}
