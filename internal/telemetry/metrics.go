package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the command and store layers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	commandsProcessed metric.Int64Counter
	revisionConflicts metric.Int64Counter
}

// NewMetrics creates the policy-server instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	commandsProcessed, err := meter.Int64Counter(
		"policy_server.commands.processed",
		metric.WithDescription("Commands processed, by operation and outcome"),
	)
	if err != nil {
		return nil, err
	}

	revisionConflicts, err := meter.Int64Counter(
		"policy_server.store.revision_conflicts",
		metric.WithDescription("CAS write conflicts retried by the config store"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		commandsProcessed: commandsProcessed,
		revisionConflicts: revisionConflicts,
	}, nil
}

// RecordCommand counts one processed command.
func (m *Metrics) RecordCommand(ctx context.Context, operation, status string) {
	if m == nil {
		return
	}
	m.commandsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

// RecordRevisionConflict counts one retried CAS conflict.
func (m *Metrics) RecordRevisionConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.revisionConflicts.Add(ctx, 1)
}
