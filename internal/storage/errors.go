package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record is not found
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when trying to create a record that already exists
	ErrAlreadyExists = errors.New("record already exists")
)
