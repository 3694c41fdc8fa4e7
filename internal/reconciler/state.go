package reconciler

// State is a stage of the per-site pipeline.
type State int

const (
	StateInit State = iota
	StateLoading
	StateAligning
	StateRepairing
	StateScreening
	StateWindowing
	StateAccumulating
	StateFinalized
	// StateExcluded is terminal for a day that failed a stage.
	StateExcluded
	// StateAborted is terminal for a site whose output could not be written.
	StateAborted
)

var stateNames = map[State]string{
	StateInit:         "init",
	StateLoading:      "loading",
	StateAligning:     "aligning",
	StateRepairing:    "repairing",
	StateScreening:    "screening",
	StateWindowing:    "windowing",
	StateAccumulating: "accumulating",
	StateFinalized:    "finalized",
	StateExcluded:     "excluded",
	StateAborted:      "aborted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// next lists the forward transitions of the site pipeline.
var next = map[State][]State{
	StateInit:         {StateLoading, StateAborted},
	StateLoading:      {StateAligning, StateAborted},
	StateAligning:     {StateRepairing, StateAborted},
	StateRepairing:    {StateScreening, StateAborted},
	StateScreening:    {StateWindowing, StateAborted},
	StateWindowing:    {StateAccumulating, StateAborted},
	StateAccumulating: {StateFinalized, StateAborted},
}

// CanTransition reports whether the pipeline may move from s to t.
func (s State) CanTransition(t State) bool {
	for _, n := range next[s] {
		if n == t {
			return true
		}
	}
	return false
}
