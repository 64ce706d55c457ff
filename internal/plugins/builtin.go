package plugins

import "github.com/scalemesh/policy-server/internal/policy"

// Builtin listener classes shipped with the server.
const (
	ClassHTTPListener = "scalemesh.HTTPTriggerListener"
	ClassLogListener  = "scalemesh.LogTriggerListener"
)

// NewBuiltinRegistry returns a Registry seeded with the action and
// listener classes compiled into the server.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.Register(policy.ClassComputePlanAction, CapabilityTriggerAction)
	r.Register(policy.ClassExecutePlanAction, CapabilityTriggerAction)
	r.Register(policy.ClassLogPlanAction, CapabilityTriggerAction)
	r.Register(ClassHTTPListener, CapabilityTriggerListener)
	r.Register(ClassLogListener, CapabilityTriggerListener)
	return r
}
