package dispatch

import (
	"encoding/json"
	"fmt"
)

// ErrPanicked wraps a Dispatcher implementation that panicked instead of
// returning an error, the Go analog of the original's catch_unwind guard
// around shared-object analyzer execution.
type ErrPanicked struct {
	Analyzer string
	Recovered any
}

func (e *ErrPanicked) Error() string {
	return fmt.Sprintf("dispatch: analyzer %q panicked: %v", e.Analyzer, e.Recovered)
}

// Recover wraps d so that a panicking Execute call becomes an ErrPanicked
// error rather than crashing the whole run.
func Recover(d Dispatcher) Dispatcher {
	return &recovering{inner: d}
}

type recovering struct {
	inner Dispatcher
}

func (r *recovering) Execute(name, extension string, args json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &ErrPanicked{Analyzer: name, Recovered: rec}
		}
	}()
	return r.inner.Execute(name, extension, args)
}
