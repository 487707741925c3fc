package adapters

import (
	"context"
	"fmt"

	"integration-sync-platform/internal/config"
	"integration-sync-platform/internal/models"
)

// Registry holds the provider adapters available to the process. It is
// constructed once at startup and injected wherever adapters are needed;
// there is no package-level registry.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry from the given adapters. Duplicate provider
// names are a programming error and fail construction.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.adapters[a.Provider()]; dup {
			return nil, fmt.Errorf("adapter for provider %q registered twice", a.Provider())
		}
		r.adapters[a.Provider()] = a
	}
	return r, nil
}

// Get returns the adapter for a provider.
func (r *Registry) Get(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", provider)
	}
	return a, nil
}

// Providers lists the registered provider names.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// ConfigTokenProvider resolves access tokens from configuration. Production
// deployments swap in a secret-store backed implementation; the interface is
// the boundary the runner depends on.
type ConfigTokenProvider struct {
	tokens map[string]string
}

// NewConfigTokenProvider creates a token provider backed by config.
func NewConfigTokenProvider(cfg *config.Config) *ConfigTokenProvider {
	return &ConfigTokenProvider{tokens: cfg.Auth.ConnectionTokens}
}

// GetAccessToken returns the token referenced by the connection.
func (p *ConfigTokenProvider) GetAccessToken(_ context.Context, conn *models.IntegrationConnection) (string, error) {
	token, ok := p.tokens[conn.CredentialsRef]
	if !ok {
		return "", fmt.Errorf("no credentials found for ref %q", conn.CredentialsRef)
	}
	return token, nil
}
