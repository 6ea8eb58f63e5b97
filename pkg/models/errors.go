package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindStorage      ErrorKind = "StorageError"
	ErrorKindReference    ErrorKind = "ReferenceError"
	ErrorKindProvider     ErrorKind = "ProviderError"
	ErrorKindInvalidInput ErrorKind = "InvalidInput"
)

var (
	// ErrDuplicateBusiness is returned by record stores when a business with
	// the same normalized name and address already exists.
	ErrDuplicateBusiness = errors.New("business with the same name and address already exists")
	// ErrBusinessNotFound is wrapped by ReferenceErrors for unknown business ids.
	ErrBusinessNotFound = errors.New("business not found")

	// Kind sentinels for errors.Is.
	ErrStorage      = &ResolutionError{Kind: ErrorKindStorage}
	ErrReference    = &ResolutionError{Kind: ErrorKindReference}
	ErrProvider     = &ResolutionError{Kind: ErrorKindProvider}
	ErrInvalidInput = &ResolutionError{Kind: ErrorKindInvalidInput}
)

// ResolutionError is a classified failure raised while resolving entities.
type ResolutionError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches any ResolutionError of the same kind.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Kind == e.Kind
}

func NewStorageError(op string, err error) error {
	return &ResolutionError{Kind: ErrorKindStorage, Op: op, Err: err}
}

func NewReferenceError(op string, err error) error {
	return &ResolutionError{Kind: ErrorKindReference, Op: op, Err: err}
}

func NewProviderError(op string, err error) error {
	return &ResolutionError{Kind: ErrorKindProvider, Op: op, Err: err}
}

func NewInvalidInputError(op string, err error) error {
	return &ResolutionError{Kind: ErrorKindInvalidInput, Op: op, Err: err}
}

// DuplicateBusinessError identifies the record that already holds the
// natural key. It matches ErrDuplicateBusiness.
type DuplicateBusinessError struct {
	ExistingID string
}

func (e *DuplicateBusinessError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicateBusiness, e.ExistingID)
}

func (e *DuplicateBusinessError) Is(target error) bool {
	return target == ErrDuplicateBusiness
}

// KindOf returns the kind of the first ResolutionError in err's chain, or ""
// when there is none.
func KindOf(err error) ErrorKind {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
