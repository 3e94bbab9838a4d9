package hub

// State is a symbol's place in the entry/exit cycle.
type State int

const (
	Flat State = iota
	Held
	Cooldown
)

func (s State) String() string {
	switch s {
	case Held:
		return "HELD"
	case Cooldown:
		return "COOLDOWN"
	default:
		return "FLAT"
	}
}
