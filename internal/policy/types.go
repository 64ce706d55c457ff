// Package policy defines the autoscaling policy document model: triggers,
// listeners and the actions a trigger pipeline runs. The document is the
// single shared configuration object held in the coordination service;
// everything here is a plain typed view of its JSON shape.
package policy

import "encoding/json"

// Section keys of the policy document, as stored in the coordination service.
const (
	SectionTriggers  = "triggers"
	SectionListeners = "listeners"
)

// Builtin action classes making up the default trigger pipeline.
const (
	ClassComputePlanAction = "scalemesh.ComputePlanAction"
	ClassExecutePlanAction = "scalemesh.ExecutePlanAction"
	ClassLogPlanAction     = "scalemesh.LogPlanAction"
)

// ActionSpec names one step of a trigger's action pipeline.
type ActionSpec struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// TriggerSpec is the stored configuration of a single trigger. The trigger
// name is the key of the enclosing map, not a field of the spec.
type TriggerSpec struct {
	Event EventType `json:"event"`

	// WaitFor is the cool-down in seconds, normalized from the
	// "<integer><unit>" input form before storage. Zero means unset.
	WaitFor int64 `json:"waitFor,omitempty"`

	LowerBound *int64 `json:"lowerBound,omitempty"`
	UpperBound *int64 `json:"upperBound,omitempty"`

	Actions []ActionSpec `json:"actions,omitempty"`
}

// ListenerSpec is the stored configuration of a single listener. The
// listener name is the key of the enclosing map.
type ListenerSpec struct {
	Trigger      string         `json:"trigger"`
	Stage        []TriggerStage `json:"stage,omitempty"`
	Class        string         `json:"class"`
	BeforeAction []string       `json:"beforeAction,omitempty"`
	AfterAction  []string       `json:"afterAction,omitempty"`
}

// Document is the full autoscaling policy document.
type Document struct {
	Triggers  map[string]TriggerSpec  `json:"triggers"`
	Listeners map[string]ListenerSpec `json:"listeners"`
}

// ParseDocument decodes a stored policy document. Empty or absent data
// yields an empty document.
func ParseDocument(data []byte) (*Document, error) {
	doc := &Document{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, err
		}
	}
	if doc.Triggers == nil {
		doc.Triggers = map[string]TriggerSpec{}
	}
	if doc.Listeners == nil {
		doc.Listeners = map[string]ListenerSpec{}
	}
	return doc, nil
}

// ListenersFor returns the names of all listeners bound to the given trigger.
func (d *Document) ListenersFor(trigger string) []string {
	var names []string
	for name, l := range d.Listeners {
		if l.Trigger == trigger {
			names = append(names, name)
		}
	}
	return names
}

// DefaultActions returns the builtin three-stage pipeline used when a
// trigger is submitted without an explicit actions list.
func DefaultActions() []ActionSpec {
	return []ActionSpec{
		{Name: "compute_plan", Class: ClassComputePlanAction},
		{Name: "execute_plan", Class: ClassExecutePlanAction},
		{Name: "log_plan", Class: ClassLogPlanAction},
	}
}
