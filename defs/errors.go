package defs

import "errors"

var (
	ErrCredentials = errors.New("can't sign access token")
	ErrConnect     = errors.New("can't connect to room")
	ErrPublish     = errors.New("can't publish track")
	ErrUnpublish   = errors.New("can't unpublish track")
	ErrManagement  = errors.New("room service call failed")

	ErrBusy         = errors.New("action queue is full")
	ErrClosed       = errors.New("portal is closed")
	ErrNotConnected = errors.New("not connected")
	ErrInvalidState = errors.New("invalid state for action")
	ErrNoEncoder    = errors.New("no video encoder configured")
	ErrBadConfig    = errors.New("invalid config")
)

// permanent marks errors that are not worth a retry.
type permanent struct{ error }

func (p permanent) Unwrap() error { return p.error }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err}
}

func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p)
}
