package credential

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/flowforge/runtime/pkg/errors"
)

// DefaultSkew is the expiry lookahead used by GetToken's cache-freshness
// check ("expires_at > now + skew").
const DefaultSkew = 30 * time.Second

// DefaultTokenTTLCap bounds how long a freshly cached token may live
// regardless of the token's own expiry.
const DefaultTokenTTLCap = 1 * time.Hour

// Manager implements the core get_token operation and the surrounding
// credential lifecycle (create/rotate/delete).
type Manager struct {
	store     StateStore
	cache     *TokenCache
	lock      DistributedLock
	registry  *Registry
	encryptor *Encryptor
	masterSaltKeyID string
}

func NewManager(store StateStore, cache *TokenCache, lock DistributedLock, registry *Registry, encryptor *Encryptor) *Manager {
	return &Manager{store: store, cache: cache, lock: lock, registry: registry, encryptor: encryptor, masterSaltKeyID: "v1"}
}

// Create initializes a new credential of the given kind, encrypts its
// initial state, and persists it.
func (m *Manager) Create(ctx context.Context, id, kind string, input []byte, cctx Context) error {
	factory, err := m.registry.Lookup(kind)
	if err != nil {
		return err
	}
	encodedState, token, err := factory.Initialize(input, cctx)
	if err != nil {
		return errors.Internal("initialize credential", err)
	}

	record, err := m.sealRecord(id, kind, encodedState, Metadata{
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
		Tags:            map[string]string{},
		SupportsRefresh: factory.SupportsRefresh(),
	})
	if err != nil {
		return err
	}
	if err := m.store.Put(ctx, id, record); err != nil {
		return err
	}
	if token != nil {
		m.cache.Put(id, *token, cappedTTL(token.ExpiresAt))
	} else {
		// Clear any stale NotFound marker left by a prior failed lookup of
		// this id so the next GetToken call goes to the store instead of
		// a cached negative result.
		m.cache.Del(id)
	}
	return nil
}

func cappedTTL(expiresAt *time.Time) time.Duration {
	if expiresAt == nil {
		return DefaultTokenTTLCap
	}
	ttl := time.Until(*expiresAt)
	if ttl <= 0 {
		return 0
	}
	if ttl > DefaultTokenTTLCap {
		return DefaultTokenTTLCap
	}
	return ttl
}

func (m *Manager) sealRecord(id, kind string, encodedState []byte, meta Metadata) (*Record, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Internal("generate salt", err)
	}
	sealed, nonce, err := m.encryptor.Seal(salt, encodedState)
	if err != nil {
		return nil, err
	}
	ciphertext, tag := SplitTag(sealed)

	saltedMeta := meta
	if saltedMeta.Tags == nil {
		saltedMeta.Tags = map[string]string{}
	}
	saltedMeta.Tags["salt"] = encodeSalt(salt)

	return &Record{
		ID:         id,
		Kind:       kind,
		Version:    1,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Tag:        tag,
		Metadata:   saltedMeta,
	}, nil
}

func encodeSalt(salt []byte) string {
	data, _ := json.Marshal(salt)
	return string(data)
}

func decodeSalt(encoded string) []byte {
	var salt []byte
	_ = json.Unmarshal([]byte(encoded), &salt)
	return salt
}

func (m *Manager) openRecord(record *Record) ([]byte, error) {
	salt := decodeSalt(record.Metadata.Tags["salt"])
	sealed := JoinTag(record.Ciphertext, record.Tag)
	return m.encryptor.Open(salt, record.Nonce, sealed)
}

// GetToken checks the cache, acquires the distributed lock, double-checks
// the cache, loads and decrypts state from the store, refreshes if
// needed, repopulates the cache, and releases the lock.
func (m *Manager) GetToken(ctx context.Context, id string, cctx Context) (Token, error) {
	if token, present, negative := m.cache.Get(id); present {
		if negative {
			return Token{}, errors.NotFound("credential", id)
		}
		if token != nil && !token.nearExpiry(DefaultSkew) {
			return *token, nil
		}
	}

	guard := m.lock.Acquire(id)
	defer guard.Release()

	if token, present, negative := m.cache.Get(id); present {
		if negative {
			return Token{}, errors.NotFound("credential", id)
		}
		if token != nil && !token.nearExpiry(DefaultSkew) {
			return *token, nil
		}
	}

	record, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			m.cache.PutNegative(id)
		}
		return Token{}, err
	}

	encodedState, err := m.openRecord(record)
	if err != nil {
		return Token{}, err
	}

	factory, err := m.registry.Lookup(record.Kind)
	if err != nil {
		return Token{}, err
	}

	if !factory.SupportsRefresh() {
		return Token{}, errors.Unauthorized("credential kind does not support refresh")
	}

	newState, token, err := factory.Refresh(encodedState, cctx)
	if err != nil {
		return Token{}, errors.Internal("refresh credential", err)
	}

	updated, err := m.sealRecord(id, record.Kind, newState, Metadata{
		CreatedAt:       record.Metadata.CreatedAt,
		UpdatedAt:       time.Now(),
		Tags:            record.Metadata.Tags,
		Rotation:        record.Metadata.Rotation,
		SupportsRefresh: record.Metadata.SupportsRefresh,
	})
	if err != nil {
		return Token{}, err
	}
	updated.Version = record.Version + 1
	if err := m.store.Put(ctx, id, updated); err != nil {
		return Token{}, err
	}

	m.cache.Put(id, token, cappedTTL(token.ExpiresAt))
	return token, nil
}

// Delete removes a credential and invalidates any cached token for it.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.cache.Del(id)
	return nil
}
