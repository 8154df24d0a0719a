package reorder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidIndices rejects a move whose indices are out of range or equal.
	ErrInvalidIndices = errors.New("invalid move indices")
	// ErrBusy rejects a move while another one is still being persisted.
	ErrBusy = errors.New("reorder in progress")
	// ErrStale rejects a move made against a view that no longer matches the
	// store. The view has been reloaded by the time it is returned.
	ErrStale = errors.New("timeline changed since it was loaded")
)

// IndexError reports an index outside [0, Len) passed to View.ApplyMove.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0,%d)", e.Index, e.Len)
}

// EntryFailure is a single order write that did not succeed.
type EntryFailure struct {
	ID    string
	Order int
	Err   error
}

// WriteError aggregates the failed order writes of one move. Any failure
// reverts the whole move; the per-entry detail is diagnostic only.
type WriteError struct {
	Attempted int
	Failures  []EntryFailure
}

func (e *WriteError) Error() string {
	if e == nil {
		return ""
	}
	ids := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		ids = append(ids, failure.ID)
	}
	return fmt.Sprintf("write order: %d of %d writes failed (%s)", len(e.Failures), e.Attempted, strings.Join(ids, ", "))
}

func (e *WriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		if failure.Err != nil {
			errs = append(errs, failure.Err)
		}
	}
	return errs
}

// FetchError wraps a failed List call. The view is left untouched.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch entries: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
