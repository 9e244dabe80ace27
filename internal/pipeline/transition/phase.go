package transition

import "fmt"

// Phase is the lifecycle state of one drag-and-drop gesture.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseDropped
	PhaseMutating
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDragging:
		return "dragging"
	case PhaseDropped:
		return "dropped"
	case PhaseMutating:
		return "mutating"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var allowedPhases = map[Phase][]Phase{
	PhaseIdle:       {PhaseDragging},
	PhaseDragging:   {PhaseDropped, PhaseIdle},
	PhaseDropped:    {PhaseIdle, PhaseMutating},
	PhaseMutating:   {PhaseCommitted, PhaseRolledBack},
	PhaseCommitted:  {PhaseIdle},
	PhaseRolledBack: {PhaseIdle},
}

// CanTransition reports whether a gesture may move from one phase to another.
func CanTransition(from, to Phase) bool {
	for _, next := range allowedPhases[from] {
		if next == to {
			return true
		}
	}
	return false
}

// gesture records the phases one drag goes through.
type gesture struct {
	phase Phase
	trace []Phase
}

func newGesture() *gesture {
	return &gesture{phase: PhaseIdle, trace: []Phase{PhaseIdle}}
}

func (g *gesture) advance(to Phase) {
	if !CanTransition(g.phase, to) {
		panic(fmt.Sprintf("transition: illegal phase change %s -> %s", g.phase, to))
	}
	g.phase = to
	g.trace = append(g.trace, to)
}
