package core

import (
	"errors"
	"fmt"
)

// ValidationError is a form-level rejection. It is raised at the request
// boundary before any repository call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// CategorizationError reports a failed call to the categorization service.
// Auth is set when the service rejected or never received a credential.
type CategorizationError struct {
	Auth bool
	Err  error
}

func (e *CategorizationError) Error() string {
	if e.Auth {
		return fmt.Sprintf("AI categorization failed: make sure the categorization API key (GEMINI_API_KEY) is configured correctly: %v", e.Err)
	}
	return fmt.Sprintf("AI categorization failed: there might be an issue with the AI service: %v", e.Err)
}

func (e *CategorizationError) Unwrap() error { return e.Err }

// StorageError reports a failed blob store operation other than a missing
// object.
type StorageError struct {
	Op   string // store, remove
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	switch e.Op {
	case "remove":
		return fmt.Sprintf("could not delete receipt image %q, please try again: %v", e.Path, e.Err)
	case "store":
		return fmt.Sprintf("could not upload image %q, check storage permissions and quota: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("storage %s %q failed: %v", e.Op, e.Path, e.Err)
	}
}

func (e *StorageError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write against the document store.
type PersistenceError struct {
	Op  string // save, update, delete
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s expense, this is likely a database permission or configuration issue: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
