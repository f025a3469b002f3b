package guest

import "errors"

var (
	ErrPoolOutOfRange    = errors.New("guest: pool id out of range")
	ErrPoolCollision     = errors.New("guest: pool already bound to another guest")
	ErrAlreadyLearned    = errors.New("guest: MAC already learned")
	ErrUnknownGuest      = errors.New("guest: unknown guest id")
	ErrInvalidTransition = errors.New("guest: invalid state transition")
)
