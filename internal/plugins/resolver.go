// Package plugins provides the class-resolution check applied to action
// and listener implementations at submission time. Resolution is a
// presence test only; nothing here instantiates or invokes a plugin.
package plugins

import (
	"errors"
	"fmt"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks -source=resolver.go Resolver

// Capability identifies what a resolved class must implement.
type Capability string

// Capabilities checked at submission time.
const (
	CapabilityTriggerAction   Capability = "trigger-action"
	CapabilityTriggerListener Capability = "trigger-listener"
)

// ErrNotFound is returned when a class does not resolve for the required
// capability.
var ErrNotFound = errors.New("class not found")

// Resolver checks that a named class is loadable with a given capability.
type Resolver interface {
	Resolve(class string, capability Capability) error
}

// Registry is a static Resolver backed by an in-process table of known
// classes. The host seeds it with every implementation it can load.
type Registry struct {
	mu      sync.RWMutex
	classes map[Capability]map[string]struct{}
}

// NewRegistry creates an empty class registry.
func NewRegistry() *Registry {
	return &Registry{classes: map[Capability]map[string]struct{}{}}
}

// Register declares a class loadable for the given capability.
func (r *Registry) Register(class string, capability Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.classes[capability] == nil {
		r.classes[capability] = map[string]struct{}{}
	}
	r.classes[capability][class] = struct{}{}
}

// Resolve implements Resolver.
func (r *Registry) Resolve(class string, capability Capability) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.classes[capability][class]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, class)
	}
	return nil
}
