// Package dispatch defines the Dispatcher Facade contract and the handful
// of reference implementations the core ships for illustration. The actual
// analyzer execution mechanism is a policy the caller supplies.
package dispatch

import (
	"encoding/json"
	"fmt"
)

// Dispatcher runs one named analyzer against a JSON argument object and
// returns its JSON result. The core neither parses nor produces args/result
// beyond treating them as opaque JSON.
type Dispatcher interface {
	Execute(name, extension string, args json.RawMessage) (json.RawMessage, error)
}

// Registry routes to a Dispatcher by extension, the same shape as the
// original's extension-keyed dispatch table.
type Registry struct {
	byExtension map[string]Dispatcher
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byExtension: make(map[string]Dispatcher)}
}

// Register associates extension with a Dispatcher. A later call for the
// same extension replaces the earlier one.
func (r *Registry) Register(extension string, d Dispatcher) {
	r.byExtension[extension] = d
}

// ErrUndefinedExtension is returned when no Dispatcher is registered for an
// analyzer's extension.
type ErrUndefinedExtension struct {
	Extension string
}

func (e *ErrUndefinedExtension) Error() string {
	return fmt.Sprintf("dispatch: no dispatcher registered for extension %q", e.Extension)
}

// Execute implements Dispatcher by routing to the registered extension
// handler.
func (r *Registry) Execute(name, extension string, args json.RawMessage) (json.RawMessage, error) {
	d, ok := r.byExtension[extension]
	if !ok {
		return nil, &ErrUndefinedExtension{Extension: extension}
	}
	return d.Execute(name, extension, args)
}
