// Package credential implements the encrypted credential store, token
// cache, distributed lock, and rotation state machine.
package credential

import "time"

// RotationTrigger determines when a credential is due for rotation.
type RotationTrigger int

const (
	RotationManual RotationTrigger = iota
	RotationPeriodic
	RotationBeforeExpiry
	RotationScheduled
)

// RotationPolicy attached to a Record's metadata.
type RotationPolicy struct {
	Trigger RotationTrigger
	// Period is consulted when Trigger == RotationPeriodic.
	Period time.Duration
	// BeforeExpiry is consulted when Trigger == RotationBeforeExpiry: rotate
	// this long before the current token's expiry.
	BeforeExpiry time.Duration
	// Schedule is a cron expression consulted when Trigger ==
	// RotationScheduled, evaluated by github.com/robfig/cron/v3.
	Schedule string
	// GracePeriod records a wall-clock bound for keeping the outgoing
	// credential valid alongside the new one. It is stored but not
	// enforced: Rotate replaces the outgoing record as soon as the new one
	// commits, so the two are never valid at the same time.
	GracePeriod time.Duration
	// GraceUsageLimit records a usage-count bound for the same grace
	// window; zero means unbounded by usage. Like GracePeriod, it is
	// stored but not enforced.
	GraceUsageLimit int
}

// Metadata is the unencrypted portion of a Record: tags, timestamps,
// rotation policy, and a refresh-support flag.
type Metadata struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tags           map[string]string
	Rotation       RotationPolicy
	SupportsRefresh bool
}

// Record is the encrypted credential record. Ciphertext, Nonce, and Tag
// hold the AES-256-GCM output over a canonical encoding of the
// credential's State; Metadata travels unencrypted alongside it.
type Record struct {
	ID         string
	Kind       string
	Version    uint32
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
	Metadata   Metadata
}
