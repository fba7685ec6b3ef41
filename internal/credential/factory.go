package credential

import (
	"context"
	"sync"

	"github.com/flowforge/runtime/pkg/errors"
)

// Context carries whatever ambient values a factory's initialize/
// refresh/validate steps need (e.g. an HTTP client for an OAuth2 token
// endpoint). It is intentionally opaque at this layer; concrete factories
// type-assert the fields they require.
type Context struct {
	Ctx    context.Context
	Extras map[string]any
}

// Credential is the type-safe factory contract generic over a kind's
// internal state representation State. Initialize produces the initial
// State (and optionally a Token if the kind issues one immediately).
// Refresh and Validate are required methods of this interface, and every
// factory built by Adapt reports SupportsRefresh as true; a kind without
// refresh support cannot be expressed through this interface.
type Credential[State any] interface {
	Initialize(input []byte, ctx Context) (State, *Token, error)
	Refresh(state *State, ctx Context) (Token, error)
	Validate(state State, ctx Context) bool
}

// CredentialFactory is the type-erased form of Credential[State], the
// shape the registry actually stores. A generic adapter below converts
// any Credential[State] into one without callers hand-writing the
// erasure.
type CredentialFactory interface {
	Initialize(input []byte, ctx Context) (encodedState []byte, token *Token, err error)
	Refresh(encodedState []byte, ctx Context) (newState []byte, token Token, err error)
	Validate(encodedState []byte, ctx Context) bool
	SupportsRefresh() bool
}

// Codec encodes/decodes a factory's State to/from the opaque byte form the
// registry persists (typically encoding/json, but left pluggable since
// some kinds may prefer a binary encoding).
type Codec[State any] interface {
	Encode(State) ([]byte, error)
	Decode([]byte) (State, error)
}

type erasedFactory[State any] struct {
	impl  Credential[State]
	codec Codec[State]
}

// Adapt wraps a type-safe Credential[State] (with its Codec) as a
// CredentialFactory for registration.
func Adapt[State any](impl Credential[State], codec Codec[State]) CredentialFactory {
	return &erasedFactory[State]{impl: impl, codec: codec}
}

func (e *erasedFactory[State]) Initialize(input []byte, ctx Context) ([]byte, *Token, error) {
	state, token, err := e.impl.Initialize(input, ctx)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := e.codec.Encode(state)
	if err != nil {
		return nil, nil, errors.Internal("encode credential state", err)
	}
	return encoded, token, nil
}

func (e *erasedFactory[State]) Refresh(encodedState []byte, ctx Context) ([]byte, Token, error) {
	state, err := e.codec.Decode(encodedState)
	if err != nil {
		return nil, Token{}, errors.Internal("decode credential state", err)
	}
	token, err := e.impl.Refresh(&state, ctx)
	if err != nil {
		return nil, Token{}, err
	}
	encoded, err := e.codec.Encode(state)
	if err != nil {
		return nil, Token{}, errors.Internal("encode credential state", err)
	}
	return encoded, token, nil
}

func (e *erasedFactory[State]) Validate(encodedState []byte, ctx Context) bool {
	state, err := e.codec.Decode(encodedState)
	if err != nil {
		return false
	}
	return e.impl.Validate(state, ctx)
}

func (e *erasedFactory[State]) SupportsRefresh() bool { return true }

// Registry maps a credential kind string to its CredentialFactory.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]CredentialFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]CredentialFactory)}
}

func (r *Registry) Register(kind string, factory CredentialFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

func (r *Registry) Lookup(kind string) (CredentialFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	if !ok {
		return nil, errors.NotFound("credential_factory", kind)
	}
	return f, nil
}
