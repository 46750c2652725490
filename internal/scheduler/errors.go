package scheduler

import "errors"

var (
	ErrPlayerNotFound  = errors.New("scheduler: player not found")
	ErrDuplicatePlayer = errors.New("scheduler: player already registered")
	ErrStopped         = errors.New("scheduler: stopped")
	ErrNotStarted      = errors.New("scheduler: not started")
	ErrInvalidState    = errors.New("scheduler: operation not allowed in the player's state")
	ErrInvalidPercent  = errors.New("scheduler: percent must be within [0,1]")
)
