package container

import (
	"fmt"
	"sync"

	"github.com/juju/errors"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider contributes factories to a container and may act on it
// once every provider has registered.
//
//	type RedisProvider struct{ container.BaseProvider }
//
//	func (p *RedisProvider) Register(f *container.Factories) {
//	    cache.Register(f.Caches, "redis", openRedisPool)
//	}
type ServiceProvider interface {
	// Register adds identifiers to the factory tables. Do not look up
	// instances here; use Boot for that.
	Register(f *Factories)

	// Boot runs after all providers have registered. Safe to look up
	// instances here.
	Boot(c *Container) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable no-op Boot.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(f *container.Factories) { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers each provider once and boots each once.
// Providers registered after Boot are booted straight away.
type ProviderRegistry struct {
	app *Container

	mu         sync.Mutex
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register calls the provider's Register, and its Boot when the registry
// has already booted. Registering the same provider twice does nothing.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true
	r.providers = append(r.providers, provider)
	booted := r.booted
	r.mu.Unlock()

	provider.Register(r.app.factories)
	if booted {
		return r.boot(provider)
	}
	return nil
}

// Boot calls Boot on every registered provider, in registration order.
// Later calls do nothing.
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.providers...)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := r.boot(provider); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProviderRegistry) boot(provider ServiceProvider) error {
	if err := provider.Boot(r.app); err != nil {
		return errors.Annotatef(err, "booting %s", providerName(provider))
	}
	return nil
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns the registered providers in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.providers...)
}

// Names returns the type names of the registered providers.
func (r *ProviderRegistry) Names() []string {
	var names []string
	for _, p := range r.Providers() {
		names = append(names, providerName(p))
	}
	return names
}

func providerName(p ServiceProvider) string { return fmt.Sprintf("%T", p) }
