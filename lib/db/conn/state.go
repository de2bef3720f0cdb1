package conn

// --------------------------------------------------------------------------
// States
// --------------------------------------------------------------------------

// State is the lifecycle state of a Manager.
type State uint8

const (
	StateNew     State = iota // No connection attempt made yet
	StateOpening              // An open is in progress or the last open failed
	StateOpen                 // A verified connection is held
	StateClosed               // Terminal; disabled or shut down
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// --------------------------------------------------------------------------
// Events and Actions
// --------------------------------------------------------------------------

// Event is an input to the state machine.
type Event uint8

const (
	EventEnsure         Event = iota // A caller needs a ready connection
	EventProbeSucceeded              // The liveness probe passed
	EventProbeFailed                 // The liveness probe failed, or a reconnect was requested
	EventOpenSucceeded               // A full open completed
	EventOpenFailed                  // A full open failed
	EventClose                       // Shutdown was requested
)

func (e Event) String() string {
	switch e {
	case EventEnsure:
		return "ensure"
	case EventProbeSucceeded:
		return "probe-succeeded"
	case EventProbeFailed:
		return "probe-failed"
	case EventOpenSucceeded:
		return "open-succeeded"
	case EventOpenFailed:
		return "open-failed"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Action is the side effect the Manager must perform after a transition.
type Action uint8

const (
	ActionNone    Action = iota // Nothing to do; the held connection is ready
	ActionOpen                  // Retire any held connection, then run a full open
	ActionProbe                 // Run the liveness probe on the held connection
	ActionReject                // Fail the caller with Unavailable
	ActionRelease               // Retire the held connection and unload the driver
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionOpen:
		return "open"
	case ActionProbe:
		return "probe"
	case ActionReject:
		return "reject"
	case ActionRelease:
		return "release"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Transition Function
// --------------------------------------------------------------------------

// Transition maps (current state, event) to (next state, action). It is a
// pure function; the Manager is the only place where actions are executed.
//
// State only moves forward through NEW -> OPENING -> OPEN. OPEN loops back
// through OPENING on reconnect, and every state moves to CLOSED on close.
// Combinations that cannot occur in a correct Manager are rejected without
// changing the state.
func Transition(state State, event Event) (State, Action) {
	if event == EventClose {
		if state == StateClosed {
			return StateClosed, ActionNone
		}
		return StateClosed, ActionRelease
	}

	switch state {
	case StateNew:
		if event == EventEnsure {
			return StateOpening, ActionOpen
		}

	case StateOpening:
		switch event {
		case EventEnsure:
			// the previous open failed, try again
			return StateOpening, ActionOpen
		case EventOpenSucceeded:
			return StateOpen, ActionNone
		case EventOpenFailed:
			return StateOpening, ActionNone
		}

	case StateOpen:
		switch event {
		case EventEnsure:
			return StateOpen, ActionProbe
		case EventProbeSucceeded:
			return StateOpen, ActionNone
		case EventProbeFailed:
			return StateOpening, ActionOpen
		}
	}

	return state, ActionReject
}
