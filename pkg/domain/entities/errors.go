package entities

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies why an allocation was refused
type ErrorKind int

const (
	// NotFound: a referenced press run or vessel does not exist.
	NotFound ErrorKind = iota + 1
	// Validation: malformed caller input.
	Validation
	// Conflict: the press run was already processed into batches.
	Conflict
	// Invariant: an arithmetic invariant failed after allocation.
	Invariant
)

// String method for ErrorKind enum
func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case Invariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Kind sentinels for errors.Is checks
var (
	ErrNotFound   = &AllocationError{Kind: NotFound}
	ErrValidation = &AllocationError{Kind: Validation}
	ErrConflict   = &AllocationError{Kind: Conflict}
	ErrInvariant  = &AllocationError{Kind: Invariant}
)

// AllocationError carries the error kind plus structured detail for callers
// (offending ids, requested vs available volume, capacity).
type AllocationError struct {
	Kind    ErrorKind
	Message string
	Details map[string]string
	Err     error
}

// NewAllocationError creates an AllocationError. details are key/value pairs.
func NewAllocationError(kind ErrorKind, message string, details ...string) *AllocationError {
	e := &AllocationError{Kind: kind, Message: message}
	if len(details) > 0 {
		e.Details = make(map[string]string, len(details)/2)
		for i := 0; i+1 < len(details); i += 2 {
			e.Details[details[i]] = details[i+1]
		}
	}
	return e
}

// Wrap attaches an underlying cause
func (e *AllocationError) Wrap(err error) *AllocationError {
	e.Err = err
	return e
}

func (e *AllocationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Details[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Is matches any AllocationError of the same kind, so the package sentinels
// work with errors.Is.
func (e *AllocationError) Is(target error) bool {
	t, ok := target.(*AllocationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first AllocationError in err's chain, or 0
func KindOf(err error) ErrorKind {
	var allocErr *AllocationError
	if errors.As(err, &allocErr) {
		return allocErr.Kind
	}
	return 0
}
