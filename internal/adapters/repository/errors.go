package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateID     = errors.New("record already exists")
	ErrVersionConflict = errors.New("record was modified concurrently")
)
