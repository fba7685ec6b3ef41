package credential

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowforge/runtime/pkg/errors"
)

// RotationState is the two-phase-commit state machine:
// Pending -> Creating -> Validating -> {Committed, RolledBack}.
type RotationState int

const (
	RotationPending RotationState = iota
	RotationCreating
	RotationValidating
	RotationCommitted
	RotationRolledBack
)

func (s RotationState) String() string {
	switch s {
	case RotationPending:
		return "pending"
	case RotationCreating:
		return "creating"
	case RotationValidating:
		return "validating"
	case RotationCommitted:
		return "committed"
	case RotationRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// RotationProbe validates a freshly-created credential before it is
// swapped in, e.g. a capability-specific connectivity check.
type RotationProbe func(ctx context.Context, encodedState []byte, cctx Context) bool

// Rotate executes the two-phase-commit rotation transaction for id: the
// new credential is created alongside the old (Creating), validated via
// probe (Validating), and only then swapped (Committed). Any failure
// rolls back, leaving the original credential untouched and usable.
func (m *Manager) Rotate(ctx context.Context, id string, input []byte, cctx Context, probe RotationProbe) (RotationState, error) {
	guard := m.lock.Acquire(id)
	defer guard.Release()

	old, err := m.store.Get(ctx, id)
	if err != nil {
		return RotationRolledBack, err
	}

	factory, err := m.registry.Lookup(old.Kind)
	if err != nil {
		return RotationRolledBack, err
	}

	encodedState, _, err := factory.Initialize(input, cctx)
	if err != nil {
		return RotationRolledBack, errors.Internal("create replacement credential", err)
	}

	if probe != nil && !probe(ctx, encodedState, cctx) {
		return RotationRolledBack, errors.Internal("rotation probe failed", nil)
	}

	updated, err := m.sealRecord(id, old.Kind, encodedState, Metadata{
		CreatedAt:       old.Metadata.CreatedAt,
		UpdatedAt:       time.Now(),
		Tags:            old.Metadata.Tags,
		Rotation:        old.Metadata.Rotation,
		SupportsRefresh: old.Metadata.SupportsRefresh,
	})
	if err != nil {
		return RotationRolledBack, err
	}
	updated.Version = old.Version + 1

	if err := m.store.Put(ctx, id, updated); err != nil {
		return RotationRolledBack, err
	}
	m.cache.Del(id)
	return RotationCommitted, nil
}

// DueForRotation reports whether a credential's rotation policy indicates
// it should be rotated now, consulting either a periodic interval or an
// expiry lookahead (scheduled rotation is driven externally by Scheduler).
func DueForRotation(meta Metadata, currentTokenExpiry *time.Time) bool {
	switch meta.Rotation.Trigger {
	case RotationPeriodic:
		return time.Since(meta.UpdatedAt) >= meta.Rotation.Period
	case RotationBeforeExpiry:
		if currentTokenExpiry == nil {
			return false
		}
		return time.Now().Add(meta.Rotation.BeforeExpiry).After(*currentTokenExpiry)
	default:
		return false
	}
}

// Scheduler drives RotationScheduled credentials via github.com/robfig/cron/v3,
// evaluating each credential's cron expression and invoking a rotation
// callback when due.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(), entries: make(map[string]cron.EntryID)}
}

// Register schedules onDue to be called whenever id's cron expression
// fires. Registering the same id again replaces the previous schedule.
func (s *Scheduler) Register(id, expr string, onDue func(id string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[id]; ok {
		s.cron.Remove(existing)
	}
	entryID, err := s.cron.AddFunc(expr, func() { onDue(id) })
	if err != nil {
		return errors.Validation("schedule", "invalid cron expression: "+err.Error())
	}
	s.entries[id] = entryID
	return nil
}

func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
