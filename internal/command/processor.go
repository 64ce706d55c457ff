// Package command validates and dispatches autoscaling policy commands.
// Each command is checked against the current policy document before any
// mutation; the mutation itself funnels through the store so conflicting
// updates from other nodes serialize on the document revision.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/scalemesh/policy-server/internal/logger"
	"github.com/scalemesh/policy-server/internal/plugins"
	"github.com/scalemesh/policy-server/internal/policy"
	"github.com/scalemesh/policy-server/internal/store"
	"github.com/scalemesh/policy-server/internal/telemetry"
)

// Result reports the outcome of one command in a batch.
type Result struct {
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Result status values.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// Processor handles the four policy commands. It carries no state across
// commands; every validation reads the live document.
//
// Validation and the eventual write are separate reads of the document, so
// a concurrent set-trigger or remove-trigger between them can invalidate
// what was checked. That window is inherent to the command protocol and is
// not closed here.
type Processor struct {
	store    *store.Store
	resolver plugins.Resolver
	metrics  *telemetry.Metrics
}

// NewProcessor creates a Processor over the given store and class resolver.
// metrics may be nil.
func NewProcessor(st *store.Store, resolver plugins.Resolver, metrics *telemetry.Metrics) *Processor {
	return &Processor{store: st, resolver: resolver, metrics: metrics}
}

// ProcessAll runs an ordered batch of commands. A rejection stops only the
// command it belongs to; subsequent commands in the batch still run.
func (p *Processor) ProcessAll(ctx context.Context, ops []Operation) []Result {
	results := make([]Result, 0, len(ops))
	for _, op := range ops {
		result := Result{Operation: op.Name, Status: StatusSuccess}
		if err := p.Process(ctx, op); err != nil {
			if IsRejected(err) {
				result.Status = StatusRejected
			} else {
				result.Status = StatusFailed
				logger.Errorf("command %s failed: %v", op.Name, err)
			}
			result.Error = err.Error()
		}
		p.metrics.RecordCommand(ctx, op.Name, result.Status)
		results = append(results, result)
	}
	return results
}

// Process validates and applies a single command. It returns a
// *RejectedError for precondition failures and a plain error for
// infrastructure failures.
func (p *Processor) Process(ctx context.Context, op Operation) error {
	switch op.Name {
	case OpSetTrigger:
		return p.setTrigger(ctx, op)
	case OpRemoveTrigger:
		return p.removeTrigger(ctx, op)
	case OpSetListener:
		return p.setListener(ctx, op)
	case OpRemoveListener:
		return p.removeListener(ctx, op)
	default:
		return rejectf("unknown operation: %s", op.Name)
	}
}

func (p *Processor) setTrigger(ctx context.Context, op Operation) error {
	name := strings.TrimSpace(op.Str("name"))
	if name == "" {
		return rejectf("the trigger name cannot be empty")
	}

	eventStr := strings.TrimSpace(op.Str("event"))
	if eventStr == "" {
		return rejectf("the event type cannot be empty in trigger: %s", name)
	}
	event, err := policy.ParseEventType(eventStr)
	if err != nil {
		return rejectf("%v in trigger: %s", err, name)
	}

	spec := policy.TriggerSpec{Event: event}

	if waitFor := op.Str("waitFor"); waitFor != "" {
		seconds, err := policy.ParseWaitFor(waitFor)
		if err != nil {
			return rejectf("invalid 'waitFor' value in trigger: %s", name)
		}
		spec.WaitFor = seconds
	}

	if spec.LowerBound, err = op.Int("lowerBound"); err != nil {
		return rejectf("invalid 'lowerBound' value in trigger: %s", name)
	}
	if spec.UpperBound, err = op.Int("upperBound"); err != nil {
		return rejectf("invalid 'upperBound' value in trigger: %s", name)
	}

	actions, err := p.triggerActions(op)
	if err != nil {
		return err
	}
	spec.Actions = actions

	return p.store.Update(ctx, policy.SectionTriggers, name, spec)
}

// triggerActions extracts and validates the actions list of a set-trigger
// command, substituting the default pipeline when none is given. Every
// action class must resolve as a loadable trigger action.
func (p *Processor) triggerActions(op Operation) ([]policy.ActionSpec, error) {
	raw, ok := op.Fields["actions"]
	if !ok {
		actions := policy.DefaultActions()
		for _, action := range actions {
			if err := p.resolver.Resolve(action.Class, plugins.CapabilityTriggerAction); err != nil {
				return nil, rejectf("action not found: %s", action.Class)
			}
		}
		return actions, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, rejectf("'actions' must be a list of {name, class} objects")
	}

	actions := make([]policy.ActionSpec, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, rejectf("'actions' must be a list of {name, class} objects")
		}
		actionName, _ := entry["name"].(string)
		actionClass, _ := entry["class"].(string)
		if actionName == "" || actionClass == "" {
			return nil, rejectf("no 'name' or 'class' specified for action: %v", item)
		}
		if err := p.resolver.Resolve(actionClass, plugins.CapabilityTriggerAction); err != nil {
			return nil, rejectf("action not found: %s", actionClass)
		}
		actions = append(actions, policy.ActionSpec{Name: actionName, Class: actionClass})
	}
	return actions, nil
}

func (p *Processor) removeTrigger(ctx context.Context, op Operation) error {
	name := strings.TrimSpace(op.Str("name"))
	if name == "" {
		return rejectf("the trigger name cannot be empty")
	}
	removeListeners := op.Bool("removeListeners", false)

	doc, err := p.readDocument(ctx)
	if err != nil {
		return err
	}
	if _, ok := doc.Triggers[name]; !ok {
		return rejectf("no trigger exists with name: %s", name)
	}

	bound := doc.ListenersFor(name)
	sort.Strings(bound)

	if len(bound) > 0 && !removeListeners {
		return rejectf("no listeners should exist for trigger: %s, found listeners: %s",
			name, strings.Join(bound, ", "))
	}

	// Best effort: listeners first, then the trigger. Each removal is its
	// own whole-document CAS; the sequence as a whole is not atomic.
	for _, listener := range bound {
		if err := p.store.Update(ctx, policy.SectionListeners, listener, nil); err != nil {
			return fmt.Errorf("failed to remove listener %s for trigger %s: %w", listener, name, err)
		}
	}
	return p.store.Update(ctx, policy.SectionTriggers, name, nil)
}

func (p *Processor) setListener(ctx context.Context, op Operation) error {
	name := strings.TrimSpace(op.Str("name"))
	if name == "" {
		return rejectf("the listener name cannot be empty")
	}

	triggerName := op.Str("trigger")
	doc, err := p.readDocument(ctx)
	if err != nil {
		return err
	}
	trigger, ok := doc.Triggers[triggerName]
	if !ok {
		return rejectf("a trigger with the name %s does not exist", triggerName)
	}

	stageNames := op.Strs("stage")
	beforeActions := op.Strs("beforeAction")
	afterActions := op.Strs("afterAction")

	if len(stageNames) == 0 && len(beforeActions) == 0 && len(afterActions) == 0 {
		return rejectf("either 'stage' or 'beforeAction' or 'afterAction' must be specified")
	}

	stages := make([]policy.TriggerStage, 0, len(stageNames))
	for _, stageName := range stageNames {
		stage, err := policy.ParseTriggerStage(stageName)
		if err != nil {
			return rejectf("invalid stage name: %s", stageName)
		}
		stages = append(stages, stage)
	}

	class := strings.TrimSpace(op.Str("class"))
	if class == "" {
		return rejectf("the 'class' of the listener cannot be empty")
	}
	if err := p.resolver.Resolve(class, plugins.CapabilityTriggerListener); err != nil {
		return rejectf("listener not found: %s", class)
	}

	// Every referenced action must be present in the trigger's pipeline.
	// Collect all unknown names so the rejection lists them together.
	missing := map[string]struct{}{}
	for _, actionName := range beforeActions {
		missing[actionName] = struct{}{}
	}
	for _, actionName := range afterActions {
		missing[actionName] = struct{}{}
	}
	for _, action := range trigger.Actions {
		delete(missing, action.Name)
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for actionName := range missing {
			names = append(names, actionName)
		}
		sort.Strings(names)
		return rejectf("the trigger '%s' does not have actions named: %s",
			triggerName, strings.Join(names, ", "))
	}

	spec := policy.ListenerSpec{
		Trigger:      triggerName,
		Stage:        stages,
		Class:        class,
		BeforeAction: beforeActions,
		AfterAction:  afterActions,
	}
	return p.store.Update(ctx, policy.SectionListeners, name, spec)
}

func (p *Processor) removeListener(ctx context.Context, op Operation) error {
	name := strings.TrimSpace(op.Str("name"))
	if name == "" {
		return rejectf("the listener name cannot be empty")
	}

	doc, err := p.readDocument(ctx)
	if err != nil {
		return err
	}
	if _, ok := doc.Listeners[name]; !ok {
		return rejectf("no listener exists with name: %s", name)
	}
	return p.store.Update(ctx, policy.SectionListeners, name, nil)
}

func (p *Processor) readDocument(ctx context.Context) (*policy.Document, error) {
	data, _, err := p.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy document: %w", err)
	}
	doc, err := policy.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return doc, nil
}
