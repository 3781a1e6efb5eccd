// Package watcher inspects live subprocess output and produces text to write
// back into the subprocess's stdin.
//
// A watcher receives the full text seen so far on one stream together with an
// identifier for that stream. Watchers keep their own progress per stream id,
// so one instance can be shared across streams and across concurrent runs.
package watcher

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/pkg/errors"
)

// StreamWatcher is implemented by anything that reacts to subprocess output.
type StreamWatcher interface {
	// Submit is called with the whole text accumulated on streamID so far.
	// It returns the responses to write to the subprocess's stdin, in order.
	// A returned error that is a *WatcherError (or wraps one) stops the run.
	Submit(streamID, stream string) ([]string, error)
}

// WatcherError is the base error kind raised from within a watcher.
type WatcherError struct {
	Message string
}

func (e *WatcherError) Error() string {
	return e.Message
}

// ResponseNotAccepted is raised by a FailingResponder once its sentinel shows
// up in the output.
type ResponseNotAccepted struct {
	WatcherError
	Pattern  string
	Sentinel string
}

func (e *ResponseNotAccepted) Unwrap() error {
	return &e.WatcherError
}

// Responder answers every occurrence of Pattern with Response.
type Responder struct {
	pattern  *regexp.Regexp
	response string

	mu      sync.Mutex
	cursors map[string]int
}

// NewResponder compiles pattern; matching runs with (?s) so '.' spans lines.
func NewResponder(pattern, response string) (*Responder, error) {
	re, err := regexp.Compile("(?s)" + pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid responder pattern %q", pattern)
	}
	return &Responder{
		pattern:  re,
		response: response,
		cursors:  make(map[string]int),
	}, nil
}

// MustNewResponder is NewResponder that panics on a bad pattern.
func MustNewResponder(pattern, response string) *Responder {
	r, err := NewResponder(pattern, response)
	if err != nil {
		panic(err)
	}
	return r
}

// Pattern returns the source pattern as given to NewResponder.
func (r *Responder) Pattern() string {
	return r.pattern.String()[len("(?s)"):]
}

// Response returns the configured response text.
func (r *Responder) Response() string {
	return r.response
}

func (r *Responder) Submit(streamID, stream string) ([]string, error) {
	matches := r.scan(r.pattern, r.cursors, streamID, stream)
	out := make([]string, 0, matches)
	for i := 0; i < matches; i++ {
		out = append(out, r.response)
	}
	return out, nil
}

// Reset forgets the scan position for streamID.
func (r *Responder) Reset(streamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cursors, streamID)
}

// scan counts the matches of re in stream after the cursor stored for
// streamID, and moves the cursor past the last one. Empty matches are not
// counted, so rescanning the same text never fires again.
func (r *Responder) scan(re *regexp.Regexp, cursors map[string]int, streamID, stream string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := cursors[streamID]
	if index > len(stream) {
		// The caller handed us a shorter stream than before; start over.
		index = 0
	}
	count, end := 0, 0
	for _, loc := range re.FindAllStringIndex(stream[index:], -1) {
		if loc[0] == loc[1] {
			continue
		}
		count++
		end = loc[1]
	}
	if count > 0 {
		cursors[streamID] = index + end
	}
	return count
}

// FailingResponder is a Responder that errors out instead of responding
// once its sentinel appears in the unscanned part of a stream.
type FailingResponder struct {
	*Responder
	sentinel *regexp.Regexp
	source   string

	failureCursors map[string]int
}

// NewFailingResponder builds a FailingResponder. sentinel is a regular
// expression, like pattern.
func NewFailingResponder(pattern, response, sentinel string) (*FailingResponder, error) {
	r, err := NewResponder(pattern, response)
	if err != nil {
		return nil, err
	}
	s, err := regexp.Compile("(?s)" + sentinel)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid responder sentinel %q", sentinel)
	}
	return &FailingResponder{
		Responder:      r,
		sentinel:       s,
		source:         sentinel,
		failureCursors: make(map[string]int),
	}, nil
}

// Sentinel returns the source sentinel pattern.
func (f *FailingResponder) Sentinel() string {
	return f.source
}

func (f *FailingResponder) Submit(streamID, stream string) ([]string, error) {
	if f.scan(f.sentinel, f.failureCursors, streamID, stream) > 0 {
		return nil, &ResponseNotAccepted{
			WatcherError: WatcherError{
				Message: fmt.Sprintf("Auto-response to r%q failed with %q!", f.Pattern(), f.source),
			},
			Pattern:  f.Pattern(),
			Sentinel: f.source,
		}
	}
	return f.Responder.Submit(streamID, stream)
}

// Reset forgets all per-stream state for streamID.
func (f *FailingResponder) Reset(streamID string) {
	f.Responder.Reset(streamID)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failureCursors, streamID)
}

var (
	_ StreamWatcher = (*Responder)(nil)
	_ StreamWatcher = (*FailingResponder)(nil)
)
