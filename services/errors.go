package services

import (
	"errors"
)

var (
	ErrNotRegistered = errors.New("identity not registered")
	ErrRaceLost      = errors.New("already taken")
	ErrNotAssignee   = errors.New("caller is not the assignee")
	ErrForbidden     = errors.New("action not permitted for role")
	ErrInvalidState  = errors.New("invalid state for transition")
	ErrNoRecipients  = errors.New("no recipients available")
	ErrInvalidCode   = errors.New("invalid or expired registration code")
	ErrNoActiveTask  = errors.New("no active task")
	ErrNotFound      = errors.New("not found")
	ErrBadTrigger    = errors.New("invalid trigger request")
)

// Rejection is a guard failure. Nothing was written; Reply is shown to the user.
type Rejection struct {
	Err   error
	Reply string
}

func (r *Rejection) Error() string { return r.Err.Error() + ": " + r.Reply }

func (r *Rejection) Unwrap() error { return r.Err }

func reject(err error, reply string) error {
	return &Rejection{Err: err, Reply: reply}
}

// AsRejection returns the rejection wrapped in err, if any.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
