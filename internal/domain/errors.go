package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSyncInProgress  = errors.New("sync already in progress")
	ErrFeedNotFound    = errors.New("feed not found")
	ErrArticleNotFound = errors.New("article not found")
	ErrInvalidSource   = errors.New("invalid feed source")
)

// FetchError reports a network, timeout or HTTP failure for one feed.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a malformed feed document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError reports a failed write of one feed.
type PersistenceError struct {
	Source string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist feed %s: %v", e.Source, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
