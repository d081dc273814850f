package defs

import (
	"fmt"
	"time"
)

type ConnectionState int

const (
	NotConnected ConnectionState = iota
	Connecting
	Connected
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case NotConnected:
		return "not_connected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CanMove reports whether the worker may move from s to next.
func (s ConnectionState) CanMove(next ConnectionState) bool {
	switch s {
	case NotConnected:
		return next == Connecting
	case Connecting:
		return next == Connected || next == Failed
	case Connected:
		return next == NotConnected
	case Failed:
		return next == NotConnected
	}
	return false
}

// Status is an immutable snapshot of the connection, replaced as a whole on every change.
type Status struct {
	State    ConnectionState `json:"state"`
	Room     string          `json:"room,omitempty"`
	Identity string          `json:"identity,omitempty"`
	Err      error           `json:"-"`
	Since    time.Time       `json:"since"`
}

func (s *Status) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

type ActionKind int

const (
	ConnectRoom ActionKind = iota
	LeaveRoom
	PublishVideo
	UnpublishVideo
	ResetState
)

func (k ActionKind) String() string {
	switch k {
	case ConnectRoom:
		return "connect"
	case LeaveRoom:
		return "leave"
	case PublishVideo:
		return "publish"
	case UnpublishVideo:
		return "unpublish"
	case ResetState:
		return "reset"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// RoomAction is an intent queued to the portal worker.
// RoomID/UserID are used by ConnectRoom and LeaveRoom, TrackName by (Un)PublishVideo.
type RoomAction struct {
	Kind      ActionKind
	RoomID    string
	UserID    string
	TrackName string
}

func (a RoomAction) String() string {
	switch a.Kind {
	case ConnectRoom, LeaveRoom:
		return fmt.Sprintf("%s(%s/%s)", a.Kind, a.RoomID, a.UserID)
	case PublishVideo, UnpublishVideo:
		return fmt.Sprintf("%s(%s)", a.Kind, a.TrackName)
	}
	return a.Kind.String()
}

// Result reports the outcome of one processed action.
type Result struct {
	Action RoomAction
	Err    error
	At     time.Time
}
