// Package authz classifies requests into the permission the host must
// check before letting them through. Enforcement itself belongs to the
// surrounding process; this package only answers "which permission".
package authz

import "net/http"

// Action is the permission required for a request.
type Action string

// Permissions required by the autoscaling API.
const (
	// ActionRead covers requests that only read the policy document.
	ActionRead Action = "autoscaling-read"
	// ActionWrite covers requests that mutate the policy document.
	ActionWrite Action = "autoscaling-write"
	// ActionDeny marks requests that must not be let through at all.
	ActionDeny Action = "deny"
)

// RouteAction determines the required permission from the request verb.
// Unrecognized verbs are denied by default.
func RouteAction(method, _ string) Action {
	switch method {
	case http.MethodGet:
		return ActionRead
	case http.MethodPost:
		return ActionWrite
	default:
		return ActionDeny
	}
}
