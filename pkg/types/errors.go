package types

import (
	"errors"
	"fmt"
)

// Argument and catalog errors. Neither is transient; both indicate a defect
// upstream of the engine and are returned before any computation happens.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("invalid configuration")

	// ErrDuplicateBadgeID matches ErrInvalidInput under errors.Is.
	ErrDuplicateBadgeID = fmt.Errorf("%w: duplicate badge id", ErrInvalidInput)
)

// Session store errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrStoreDetached    = errors.New("session store is detached")
	ErrAlreadyAttached  = errors.New("session store is already attached")
	ErrStoreLocked      = errors.New("data directory is locked by another store")
)
