package repository

import "errors"

var (
	// ErrNotFound record not found
	ErrNotFound = errors.New("record not found")

	// ErrInvalidData malformed identifier or payload
	ErrInvalidData = errors.New("invalid data")
)
