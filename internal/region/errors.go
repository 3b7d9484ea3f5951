package region

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrStrategyUnavailable is returned when a configuration assigns a kind to
// a strategy that has no backend in this compiler.
var ErrStrategyUnavailable = errors.New("region: strategy has no backend")

// ErrMutableShared is returned when a mutable kind is assigned to the
// immutable shared region.
var ErrMutableShared = errors.New("region: mutable kind in immutable shared region")

// InternalError is a violated code-generation invariant: a bug in the
// front end or in a backend, never in the program being compiled. Region
// operations panic with an *InternalError; GlobalState.Generate and
// GlobalState.BuildFunc recover it into a returned error.
type InternalError struct {
	Op   string // region operation that detected the violation
	Msg  string // the violated invariant
	Site string // file:line of the operation's caller
}

func (e *InternalError) Error() string {
	if e.Site == "" {
		return fmt.Sprintf("region.%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("region.%s: %s (called from %s)", e.Op, e.Msg, e.Site)
}

// internalf panics with an *InternalError for op.
func internalf(op, format string, args ...interface{}) {
	e := &InternalError{Op: op, Msg: fmt.Sprintf(format, args...)}
	// Skip internalf and the operation itself.
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Site = fmt.Sprintf("%s:%d", file, line)
	}
	panic(e)
}

// catch runs fn and returns the *InternalError it panicked with, if any.
// Other panics propagate.
func catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InternalError)
			if !ok {
				panic(r)
			}
			err = ie
		}
	}()
	fn()
	return nil
}
