package control

import "errors"

var (
	// ErrNotControlFrame is returned when a frame's EtherType is not the
	// reserved sentinel; callers treat this the same as dropping silently.
	ErrNotControlFrame = errors.New("control: frame is not a table-update sentinel")

	// ErrFrameTooShort is returned when a sentinel frame is too small to
	// carry a pool index, rule slot, and MatchEntry image.
	ErrFrameTooShort = errors.New("control: frame too short for table update")

	// ErrRateLimited is returned when the control-channel rate limiter
	// (this repo's hardening for the lack of any wire authentication,
	// see SPEC_FULL.md Q3) has rejected a frame.
	ErrRateLimited = errors.New("control: update rate exceeded")
)
