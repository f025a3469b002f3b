package table

import "errors"

var (
	ErrRowOutOfRange  = errors.New("table: pool row out of range")
	ErrSlotOutOfRange = errors.New("table: rule slot out of range")
	ErrTooManyTags    = errors.New("table: n_tags exceeds maximum")
	ErrWireTooShort   = errors.New("table: wire image too short")
)
