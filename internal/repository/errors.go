package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrVersionConflict means a conditional replace matched no row: the
	// aggregate is gone or its stored version moved since it was read.
	ErrVersionConflict = errors.New("version conflict")
)
