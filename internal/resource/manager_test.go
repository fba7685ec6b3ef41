package resource

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/flowforge/runtime/internal/credential"
	"github.com/flowforge/runtime/internal/value"
)

func TestManagerAcquireResolvesStrictScope(t *testing.T) {
	m := NewManager(Strict)
	p := newFakeProvider()
	m.Register(context.Background(), "fake", "tenant-a", p, PoolConfig{MaxSize: 1}, Config{})

	if _, err := m.Acquire(context.Background(), "fake", "tenant-b"); err == nil {
		t.Fatal("expected no candidate pool under strict scoping for an unregistered scope")
	}
	if _, err := m.Acquire(context.Background(), "fake", "tenant-a"); err != nil {
		t.Fatalf("expected exact scope match to succeed: %v", err)
	}
}

func TestManagerAcquireResolvesHierarchicalScope(t *testing.T) {
	m := NewManager(Hierarchical)
	p := newFakeProvider()
	m.Register(context.Background(), "fake", "tenant-a", p, PoolConfig{MaxSize: 1}, Config{})

	h, err := m.Acquire(context.Background(), "fake", "tenant-a/prod/worker-1")
	if err != nil {
		t.Fatalf("expected hierarchical resolution to fall through to the ancestor pool: %v", err)
	}
	h.Release(context.Background())
}

func TestManagerShutdownDrainsAllPools(t *testing.T) {
	m := NewManager(Strict)
	p1, p2 := newFakeProvider(), newFakeProvider()
	m.Register(context.Background(), "fake", "a", p1, PoolConfig{MaxSize: 1}, Config{})
	m.Register(context.Background(), "fake", "b", p2, PoolConfig{MaxSize: 1}, Config{})

	h1, _ := m.Acquire(context.Background(), "fake", "a")
	h1.Release(context.Background())
	h2, _ := m.Acquire(context.Background(), "fake", "b")
	h2.Release(context.Background())

	if err := m.Shutdown(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}
	if p1.cleanups.Load() != 1 || p2.cleanups.Load() != 1 {
		t.Fatalf("expected every pool to be drained, got %d and %d cleanups", p1.cleanups.Load(), p2.cleanups.Load())
	}
}

// recordingProvider captures the ConnectionString it was asked to Create
// with, so tests can assert credential substitution took effect.
type recordingProvider struct {
	*fakeProvider
	lastConnString string
}

func (r *recordingProvider) Create(ctx context.Context, cfg Config) (Instance, error) {
	r.lastConnString = cfg.ConnectionString
	return r.fakeProvider.Create(ctx, cfg)
}

type tokenState struct{}
type tokenCodec struct{}

func (tokenCodec) Encode(s tokenState) ([]byte, error) { return json.Marshal(s) }
func (tokenCodec) Decode(b []byte) (tokenState, error) {
	var s tokenState
	err := json.Unmarshal(b, &s)
	return s, err
}

type tokenCredential struct{}

func (tokenCredential) Initialize(input []byte, ctx credential.Context) (tokenState, *credential.Token, error) {
	return tokenState{}, nil, nil
}

func (tokenCredential) Refresh(state *tokenState, ctx credential.Context) (credential.Token, error) {
	expiry := time.Now().Add(time.Hour)
	return credential.Token{Secret: []byte("s3cr3t"), Type: "bearer", IssuedAt: time.Now(), ExpiresAt: &expiry}, nil
}

func (tokenCredential) Validate(state tokenState, ctx credential.Context) bool { return true }

func TestPoolCredentialBindingSubstitutesConnectionString(t *testing.T) {
	master := value.NewSecret([]byte("01234567890123456789012345678901"))
	registry := credential.NewRegistry()
	registry.Register("token", credential.Adapt[tokenState](tokenCredential{}, tokenCodec{}))
	credMgr := credential.NewManager(credential.NewMemoryStateStore(), credential.NewTokenCache(4), credential.NewLocalLock(), registry, credential.NewEncryptor(master))

	if err := credMgr.Create(context.Background(), "db-cred", "token", nil, credential.Context{Ctx: context.Background()}); err != nil {
		t.Fatal(err)
	}

	rp := &recordingProvider{fakeProvider: newFakeProvider()}
	m := NewManager(Strict)
	pool := m.Register(context.Background(), "postgres", Global, rp, PoolConfig{MaxSize: 1}, Config{
		ConnectionString: "postgres://user:{password}@db/app",
		CredentialID:     "db-cred",
	})
	pool.BindCredentials(credMgr)

	h, err := m.Acquire(context.Background(), "postgres", Global)
	if err != nil {
		t.Fatal(err)
	}
	h.Release(context.Background())

	if rp.lastConnString != "postgres://user:s3cr3t@db/app" {
		t.Fatalf("expected credential substitution in connection string, got %q", rp.lastConnString)
	}
}

func TestManagerInvalidateCredentialDropsIdleInstances(t *testing.T) {
	master := value.NewSecret([]byte("01234567890123456789012345678901"))
	registry := credential.NewRegistry()
	registry.Register("token", credential.Adapt[tokenState](tokenCredential{}, tokenCodec{}))
	credMgr := credential.NewManager(credential.NewMemoryStateStore(), credential.NewTokenCache(4), credential.NewLocalLock(), registry, credential.NewEncryptor(master))
	_ = credMgr.Create(context.Background(), "db-cred", "token", nil, credential.Context{Ctx: context.Background()})

	rp := &recordingProvider{fakeProvider: newFakeProvider()}
	m := NewManager(Strict)
	pool := m.Register(context.Background(), "postgres", Global, rp, PoolConfig{MaxSize: 2}, Config{
		ConnectionString: "postgres://user:{password}@db/app",
		CredentialID:     "db-cred",
	})
	pool.BindCredentials(credMgr)

	h, _ := m.Acquire(context.Background(), "postgres", Global)
	h.Release(context.Background())

	if pool.Stats().Idle != 1 {
		t.Fatalf("expected one idle instance before invalidation, got %d", pool.Stats().Idle)
	}

	m.InvalidateCredential(context.Background(), "db-cred")

	if pool.Stats().Idle != 0 {
		t.Fatalf("expected invalidation to drop idle instances bound to the rotated credential, got %d idle", pool.Stats().Idle)
	}
}
