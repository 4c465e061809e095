// Package evidence looks up reference text for claims and queries.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrLookup matches every *LookupError via errors.Is
var ErrLookup = errors.New("evidence lookup failed")

// Source resolves a query to reference text.
// Missing and ambiguous topics are results, not errors; an error always
// means the source could not be asked or did not answer properly.
type Source interface {
	Lookup(ctx context.Context, query string) (model.EvidenceResult, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func(ctx context.Context, query string) (model.EvidenceResult, error)

// Lookup calls f(ctx, query)
func (f SourceFunc) Lookup(ctx context.Context, query string) (model.EvidenceResult, error) {
	return f(ctx, query)
}

// LookupError is a transport or protocol failure talking to the knowledge source
type LookupError struct {
	Query      string
	Op         string // "search", "extract", "parse", "robots"
	StatusCode int    // HTTP status, 0 when no response was received
	Err        error
}

func (e *LookupError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("lookup %q: %s: status %d: %v", e.Query, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("lookup %q: %s: %v", e.Query, e.Op, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLookup) hold for every LookupError
func (e *LookupError) Is(target error) bool { return target == ErrLookup }

// Temporary reports whether retrying the same request may succeed
func (e *LookupError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}

	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(e.Err, syscall.ECONNRESET) ||
		errors.Is(e.Err, syscall.ECONNREFUSED) ||
		errors.Is(e.Err, io.ErrUnexpectedEOF) ||
		errors.Is(e.Err, errServerBusy)
}

// errServerBusy marks MediaWiki "maxlag"/"ratelimited" API errors
var errServerBusy = errors.New("server busy")

// IsTemporary reports whether err is a LookupError worth retrying
func IsTemporary(err error) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Temporary()
}
