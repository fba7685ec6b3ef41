package enginecore

import (
	"context"

	"github.com/flowforge/runtime/internal/action"
	"github.com/flowforge/runtime/internal/credential"
	"github.com/flowforge/runtime/internal/resource"
)

// resourceProviderAdapter narrows a *resource.Manager down to the
// action.ResourceProvider interface handlers see, so action bodies can
// never reach pool registration or shutdown.
type resourceProviderAdapter struct {
	manager *resource.Manager
}

// NewResourceProvider adapts a resource manager for use by action handlers.
func NewResourceProvider(mgr *resource.Manager) action.ResourceProvider {
	return &resourceProviderAdapter{manager: mgr}
}

func (a *resourceProviderAdapter) Acquire(ctx context.Context, providerID string, scope string) (action.ResourceHandle, error) {
	handle, err := a.manager.Acquire(ctx, providerID, resource.Scope(scope))
	if err != nil {
		return nil, err
	}
	return resourceHandleAdapter{handle: handle}, nil
}

type resourceHandleAdapter struct {
	handle *resource.Handle
}

func (h resourceHandleAdapter) Instance() any               { return h.handle.Instance() }
func (h resourceHandleAdapter) Release(ctx context.Context) { h.handle.Release(ctx) }

// credentialProviderAdapter narrows a *credential.Manager down to the
// action.CredentialProvider interface handlers see.
type credentialProviderAdapter struct {
	manager *credential.Manager
}

// NewCredentialProvider adapts a credential manager for use by action handlers.
func NewCredentialProvider(mgr *credential.Manager) action.CredentialProvider {
	return &credentialProviderAdapter{manager: mgr}
}

func (a *credentialProviderAdapter) GetToken(ctx context.Context, id string) (string, error) {
	token, err := a.manager.GetToken(ctx, id, credential.Context{Ctx: ctx})
	if err != nil {
		return "", err
	}
	return string(token.Secret), nil
}
