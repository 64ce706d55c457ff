// Package store implements the optimistic-concurrency update protocol
// against the shared policy document. It has no knowledge of triggers or
// listeners; it applies single-entry mutations to named sections of a
// generic JSON document and retries until its compare-and-swap write wins.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/scalemesh/policy-server/internal/coordination"
	"github.com/scalemesh/policy-server/internal/logger"
)

const (
	defaultMaxAttempts    = 20
	defaultInitialBackoff = 10 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
)

// ErrTooMuchContention is returned when an update exhausts its CAS
// attempts without ever observing a stable revision.
var ErrTooMuchContention = errors.New("configuration update failed: too much contention")

// Option configures a Store.
type Option func(*Store)

// WithMaxAttempts bounds the number of CAS attempts per update.
func WithMaxAttempts(n uint) Option {
	return func(s *Store) { s.maxAttempts = n }
}

// WithInitialBackoff sets the first retry delay after a revision conflict.
func WithInitialBackoff(d time.Duration) Option {
	return func(s *Store) { s.initialBackoff = d }
}

// WithConflictHook installs a callback invoked once per revision conflict,
// before the retry. Used for metrics.
func WithConflictHook(hook func(ctx context.Context)) Option {
	return func(s *Store) { s.onConflict = hook }
}

// Store is the only mutation path to the shared policy document.
type Store struct {
	client         coordination.Client
	maxAttempts    uint
	initialBackoff time.Duration
	onConflict     func(ctx context.Context)
}

// New creates a Store over the given coordination client.
func New(client coordination.Client, opts ...Option) *Store {
	s := &Store{
		client:         client,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the raw policy document and its revision. An absent
// document reads as empty at NoRevision.
func (s *Store) Read(ctx context.Context) ([]byte, coordination.Revision, error) {
	data, rev, err := s.client.Read(ctx)
	if errors.Is(err, coordination.ErrNotFound) {
		return nil, coordination.NoRevision, nil
	}
	return data, rev, err
}

// Update sets document[section][name] to value, or removes the entry when
// value is nil. Removing an absent entry is a no-op at this layer;
// existence checks belong to the caller. The whole document is rewritten
// in one compare-and-swap; on a revision conflict the document is re-read
// and the mutation reapplied from scratch, with jittered exponential
// backoff between attempts.
func (s *Store) Update(ctx context.Context, section, name string, value any) error {
	attempt := func() (struct{}, error) {
		data, rev, err := s.Read(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		updated, err := applyEntry(data, section, name, value)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		err = s.client.Write(ctx, updated, rev)
		if errors.Is(err, coordination.ErrRevisionConflict) {
			// Somebody else changed the configuration; retry on a fresh read.
			logger.Debugf("revision conflict updating %s/%s, retrying", section, name)
			if s.onConflict != nil {
				s.onConflict(ctx)
			}
			return struct{}{}, err
		}
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.initialBackoff
	expo.MaxInterval = defaultMaxBackoff

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(s.maxAttempts),
	)
	if errors.Is(err, coordination.ErrRevisionConflict) {
		return ErrTooMuchContention
	}
	return err
}

// applyEntry rewrites one entry of one section within the serialized
// document, leaving every other top-level key untouched.
func applyEntry(data []byte, section, name string, value any) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("stored document is not valid JSON: %w", err)
		}
	}

	entries := map[string]json.RawMessage{}
	if raw, ok := doc[section]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("section %q is not a JSON object: %w", section, err)
		}
	}

	if value == nil {
		delete(entries, name)
	} else {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s/%s: %w", section, name, err)
		}
		entries[name] = encoded
	}

	sectionJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	doc[section] = sectionJSON

	return json.Marshal(doc)
}
