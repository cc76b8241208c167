// Package session models the interaction flow of the crop-and-detect tool as
// an explicit state machine, replacing implicit UI callback ordering with
// named states and transition triggers.
package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition marks events that are not legal in the current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// State is a phase of the interaction flow.
type State string

const (
	AwaitingUpload State = "awaiting_upload"
	AwaitingCrop   State = "awaiting_crop"
	ReadyToDetect  State = "ready_to_detect"
	Detecting      State = "detecting"
	ShowingResult  State = "showing_result"
	ShowingError   State = "showing_error"
)

// Event is a transition trigger.
type Event string

const (
	UploadReceived Event = "upload_received"
	CropChanged    Event = "crop_changed"
	DetectPressed  Event = "detect_pressed"
	ResultReceived Event = "result_received"
	DetectFailed   Event = "detect_failed"
	Reset          Event = "reset"
)

// Machine tracks the current interaction state. It is not safe for concurrent
// use; callers serialize access (the web server holds one machine behind its
// session lock).
type Machine struct {
	state State
}

// NewMachine starts a machine in AwaitingUpload.
func NewMachine() *Machine {
	return &Machine{state: AwaitingUpload}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Apply performs one transition. Illegal events for the current state return
// ErrInvalidTransition and leave the machine unchanged.
func (m *Machine) Apply(ev Event) error {
	next, err := m.next(ev)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

func (m *Machine) next(ev Event) (State, error) {
	switch ev {
	case Reset:
		return AwaitingUpload, nil
	case UploadReceived:
		// A new upload restarts the flow from any state except mid-request.
		if m.state == Detecting {
			return "", m.reject(ev)
		}
		return AwaitingCrop, nil
	case CropChanged:
		switch m.state {
		case AwaitingCrop, ReadyToDetect, ShowingResult, ShowingError:
			return ReadyToDetect, nil
		}
	case DetectPressed:
		if m.state == ReadyToDetect || m.state == ShowingResult || m.state == ShowingError {
			return Detecting, nil
		}
	case ResultReceived:
		if m.state == Detecting {
			return ShowingResult, nil
		}
	case DetectFailed:
		if m.state == Detecting {
			return ShowingError, nil
		}
	}
	return "", m.reject(ev)
}

func (m *Machine) reject(ev Event) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev, m.state)
}
