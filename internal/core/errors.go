package core

import (
	"errors"
	"fmt"
)

// Request-level errors. These abort an import before any row is processed
// and propagate to the caller.
var (
	ErrEmptyInput          = errors.New("empty input")
	ErrNoRows              = errors.New("no data provided")
	ErrTooManyRows         = errors.New("too many rows in import")
	ErrMissingOrganization = errors.New("missing organization")
	ErrInvalidOrganization = errors.New("invalid organization")
	ErrUnsupportedFile     = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrRunNotFound         = errors.New("import run not found")
)

// ParseError reports malformed or empty input. It is fatal to the whole request.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Reason {
		return fmt.Sprintf("parse input: %s: %v", e.Reason, e.Err)
	}
	return "parse input: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RowErrorKind classifies a row-level failure.
type RowErrorKind string

const (
	// RowClientWrite: the client could not be resolved; the row was abandoned.
	RowClientWrite RowErrorKind = "client_write"
	// RowPetWrite: the pet could not be written; the client resolution stands.
	RowPetWrite RowErrorKind = "pet_write"
	// RowUnexpected: anything else, including a recovered panic.
	RowUnexpected RowErrorKind = "unexpected"
)

// RowError is a failure scoped to one input row. The importer records it and
// moves on to the next row.
type RowError struct {
	Row     int // 1-based
	Kind    RowErrorKind
	PetName string
	Err     error
}

func (e *RowError) Error() string {
	detail := describeError(e.Err)
	switch e.Kind {
	case RowClientWrite:
		return fmt.Sprintf("Row %d: Failed to create client - %s", e.Row, detail)
	case RowPetWrite:
		return fmt.Sprintf("Row %d: Failed to create pet %s - %s", e.Row, e.PetName, detail)
	default:
		return fmt.Sprintf("Row %d: %s", e.Row, detail)
	}
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// describeError prefers the catalogued message for the root cause and falls
// back to the raw text.
func describeError(err error) string {
	if err == nil {
		return "Unknown error"
	}
	if msg, ok := MapCause(err); ok {
		return fmt.Sprintf("%s (Code: %s)", msg.Message, msg.Code)
	}
	return err.Error()
}
