package capture

// State of a capture controller.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateCaptured
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateCaptured:
		return "captured"
	default:
		return "unknown"
	}
}

// Facing selects which camera a device should prefer.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Constraints passed to Device.Open.
type Constraints struct {
	Facing Facing
}
