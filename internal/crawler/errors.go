package crawler

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Usage errors. They are returned synchronously, before any work is scheduled.
var (
	// ErrInvalidArgument is returned by New when a pool size or the per-host
	// limit is not positive, or when the downloader is nil.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidDepth is returned when a negative depth is requested.
	ErrInvalidDepth = errors.New("depth must be a non-negative integer")

	// ErrNilHosts is returned by CrawlHosts when the allow-list is nil.
	ErrNilHosts = errors.New("hosts must be a non-nil list")

	// ErrClosed is returned when the crawler (or one of its pools) was closed.
	ErrClosed = errors.New("crawler is closed")
)

// ErrQueueFull is returned when a task is submitted to a pool whose queue has
// no free slot. Submission never blocks, so this aborts the traversal.
var ErrQueueFull = errors.New("task queue is full")

// CrawlError aborts a whole traversal. Err is the first fatal cause;
// causes that happened concurrently afterwards are kept in Suppressed.
type CrawlError struct {
	// Msg describes what the crawler was doing.
	Msg string

	// Err is the primary cause.
	Err error

	// Suppressed holds secondary fatal causes, in the order they occurred.
	Suppressed []error
}

// Error implements error.
func (e *CrawlError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Msg)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if n := len(e.Suppressed); n > 0 {
		fmt.Fprintf(&sb, " (%d suppressed)", n)
	}
	return sb.String()
}

// Unwrap returns the primary cause followed by the suppressed ones,
// so errors.Is and errors.As see every fatal cause.
func (e *CrawlError) Unwrap() []error {
	errs := make([]error, 0, 1+len(e.Suppressed))
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return append(errs, e.Suppressed...)
}

// fatalErrors collects fatal causes reported by the coordinator and workers.
type fatalErrors struct {
	mu         sync.Mutex
	primary    *CrawlError
	suppressed []error
}

// add records a fatal cause. The first one becomes the primary error.
func (f *fatalErrors) add(msg string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.primary == nil {
		f.primary = &CrawlError{Msg: msg, Err: err}
		return
	}
	f.suppressed = append(f.suppressed, &CrawlError{Msg: msg, Err: err})
}

func (f *fatalErrors) failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.primary != nil
}

// err returns the merged fatal error, or nil if nothing fatal happened.
func (f *fatalErrors) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.primary == nil {
		return nil
	}
	return &CrawlError{
		Msg:        f.primary.Msg,
		Err:        f.primary.Err,
		Suppressed: append([]error(nil), f.suppressed...),
	}
}
