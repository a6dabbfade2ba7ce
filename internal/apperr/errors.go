// Package apperr defines the sentinel errors shared across component
// boundaries. Callers match with errors.Is and map to user-facing results.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// Version-store conditions.
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrPathNotFound    = errors.New("path not found")
	ErrObjectNotFound  = errors.New("object not found")
	ErrTagExists       = errors.New("tag already exists")
)
