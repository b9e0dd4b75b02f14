package jitter

import "errors"

var (
	ErrInvalidTimestep    = errors.New("jitter: negative timestep")
	ErrNilArgument        = errors.New("jitter: nil argument")
	ErrBodyExists         = errors.New("jitter: body already in the world")
	ErrBodyNotFound       = errors.New("jitter: body not in the world")
	ErrMassPoint          = errors.New("jitter: body is a mass point of a soft body")
	ErrConstraintExists   = errors.New("jitter: constraint already in the world")
	ErrConstraintNotFound = errors.New("jitter: constraint not in the world")
	ErrSoftBodyExists     = errors.New("jitter: soft body already in the world")
	ErrSoftBodyNotFound   = errors.New("jitter: soft body not in the world")
)
