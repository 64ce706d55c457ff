package policy

import (
	"fmt"
	"strings"
)

// EventType is the closed set of conditions a trigger can fire on.
type EventType string

// Supported trigger event types.
const (
	EventNodeAdded EventType = "NODEADDED"
	EventNodeLost  EventType = "NODELOST"
)

// ParseEventType parses a trigger event type, case-insensitively.
func ParseEventType(s string) (EventType, error) {
	switch EventType(strings.ToUpper(strings.TrimSpace(s))) {
	case EventNodeAdded:
		return EventNodeAdded, nil
	case EventNodeLost:
		return EventNodeLost, nil
	default:
		return "", fmt.Errorf("unknown event type: %s", s)
	}
}

// TriggerStage is a point in a trigger's lifecycle a listener can
// subscribe to.
type TriggerStage string

// Trigger lifecycle stages.
const (
	StageWaiting      TriggerStage = "WAITING"
	StageStarted      TriggerStage = "STARTED"
	StageAborted      TriggerStage = "ABORTED"
	StageSucceeded    TriggerStage = "SUCCEEDED"
	StageFailed       TriggerStage = "FAILED"
	StageBeforeAction TriggerStage = "BEFORE_ACTION"
	StageAfterAction  TriggerStage = "AFTER_ACTION"
)

// ParseTriggerStage parses a lifecycle stage name. Stage names are stored
// and matched exactly as declared, in upper case.
func ParseTriggerStage(s string) (TriggerStage, error) {
	switch TriggerStage(s) {
	case StageWaiting, StageStarted, StageAborted, StageSucceeded,
		StageFailed, StageBeforeAction, StageAfterAction:
		return TriggerStage(s), nil
	default:
		return "", fmt.Errorf("invalid stage name: %s", s)
	}
}
