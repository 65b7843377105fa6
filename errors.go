package jcl

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// TranspileError reports an internal fault that prevented the transpiler
// from producing target text. Semantically invalid programs do not produce
// it; the C compiler reports those.
type TranspileError struct {
	Line   int // 1-based source line, 0 when not line specific
	Reason string
}

func (e *TranspileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("transpile: line %d: %s", e.Line, e.Reason)
	}
	return "transpile: " + e.Reason
}

// ErrHTTP is returned by the remote client for non-2xx responses.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
