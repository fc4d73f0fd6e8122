package tracker

// Status is the tracker lifecycle state.
//
//	Uninitialized -> Running   first observer fix with continuous updates on
//	Running       -> Paused    PauseUpdates (fix lost)
//	Paused        -> Running   ResumeUpdates or a new fix
//	any           -> Stopped   Stop (terminal)
type Status int

const (
	StatusUninitialized Status = iota
	StatusRunning
	StatusPaused
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// next returns the state after ev, or s unchanged if ev does not apply.
func (s Status) next(ev event, continuous bool) Status {
	if s == StatusStopped {
		return s
	}
	switch ev {
	case evFix:
		if s == StatusPaused || (s == StatusUninitialized && continuous) {
			return StatusRunning
		}
	case evLost:
		if s == StatusRunning {
			return StatusPaused
		}
	case evResume:
		if s == StatusPaused {
			return StatusRunning
		}
	case evStop:
		return StatusStopped
	}
	return s
}

type event int

const (
	evFix event = iota
	evLost
	evResume
	evStop
)
