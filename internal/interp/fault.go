package interp

import (
	"errors"
	"fmt"
)

// Sentinel causes of a Fault, for errors.Is.
var (
	ErrPanic        = errors.New("runtime panic")
	ErrUseAfterFree = errors.New("use after free")
	ErrDoubleFree   = errors.New("double free")
	ErrNilDeref     = errors.New("nil pointer dereference")
	ErrOutOfRange   = errors.New("index out of range")
	ErrBadAccess    = errors.New("bad memory access")
	ErrStaleHandle  = errors.New("stale weak handle")
	ErrUndefined    = errors.New("undefined function")
	ErrUnreachable  = errors.New("unreachable executed")
)

// Fault is a run-time failure of interpreted code: a trap raised through
// rt_panic_string, or a memory-safety violation the heap detected.
type Fault struct {
	Func string // function executing when the fault was raised
	Msg  string
	Err  error // one of the sentinel causes, or an extern's error
}

func (f *Fault) Error() string {
	if f.Func == "" {
		return fmt.Sprintf("interp: %s", f.Msg)
	}
	return fmt.Sprintf("interp: %s: %s", f.Func, f.Msg)
}

func (f *Fault) Unwrap() error { return f.Err }

// faultf returns a Fault with cause err.
func faultf(err error, format string, args ...interface{}) *Fault {
	return &Fault{Msg: fmt.Sprintf(format, args...), Err: err}
}
