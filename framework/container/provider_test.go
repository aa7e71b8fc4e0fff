package container_test

import (
	"errors"
	"testing"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/container"
)

// ── stub providers ────────────────────────────────────────────────────────────

type countingProvider struct {
	container.BaseProvider
	registerCalls int
	bootCalls     int
}

func (p *countingProvider) Register(f *container.Factories) {
	p.registerCalls++
	cache.Register(f.Caches, "counting", cache.OpenArrayPool)
}

func (p *countingProvider) Boot(_ *container.Container) error {
	p.bootCalls++
	return nil
}

type failingProvider struct{ container.BaseProvider }

func (p *failingProvider) Register(_ *container.Factories) {}

func (p *failingProvider) Boot(_ *container.Container) error { return errBoot }

var errBoot = errors.New("boot failed")

// orderProvider records the order in which providers boot.
type orderProvider struct {
	container.BaseProvider
	name string
	log  *[]string
}

func (p *orderProvider) Register(_ *container.Factories) {}

func (p *orderProvider) Boot(_ *container.Container) error {
	*p.log = append(*p.log, p.name)
	return nil
}

func newEmpty(t *testing.T, opts ...container.Option) *container.Container {
	t.Helper()
	c, err := container.New(nil, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// ── ProviderRegistry ──────────────────────────────────────────────────────────

func TestRegistry_ProviderRegisteredAndBootedByNew(t *testing.T) {
	p := &countingProvider{}
	c := newEmpty(t, container.WithProviders(p))

	if p.registerCalls != 1 || p.bootCalls != 1 {
		t.Errorf("register/boot calls: got %d/%d, want 1/1", p.registerCalls, p.bootCalls)
	}
	if !c.Providers().Booted() {
		t.Error("Booted() should be true after New")
	}
	ids := c.Factories().Caches.IDs()
	if len(ids) != 1 || ids[0] != "counting" {
		t.Errorf("cache adapters: got %v, want [counting]", ids)
	}
}

func TestRegistry_DuplicateRegister_Ignored(t *testing.T) {
	p := &countingProvider{}
	c := newEmpty(t, container.WithProviders(p, p))

	if err := c.Providers().Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.registerCalls != 1 || p.bootCalls != 1 {
		t.Errorf("register/boot calls: got %d/%d, want 1/1", p.registerCalls, p.bootCalls)
	}
	if n := len(c.Providers().Providers()); n != 1 {
		t.Errorf("Providers(): got %d, want 1", n)
	}
}

func TestRegistry_Boot_IdempotentCallsAreIgnored(t *testing.T) {
	p := &countingProvider{}
	c := newEmpty(t, container.WithProviders(p))

	if err := c.Providers().Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if p.bootCalls != 1 {
		t.Errorf("boot calls: got %d, want 1", p.bootCalls)
	}
}

func TestRegistry_Booted_FalseBeforeBoot(t *testing.T) {
	reg := container.NewProviderRegistry(newEmpty(t))
	if reg.Booted() {
		t.Error("Booted() should be false before Boot()")
	}
}

func TestRegistry_BootsInRegistrationOrder(t *testing.T) {
	var log []string
	newEmpty(t, container.WithProviders(
		&orderProvider{name: "first", log: &log},
		&orderProvider{name: "second", log: &log},
	))
	if len(log) != 2 || log[0] != "first" || log[1] != "second" {
		t.Errorf("boot order: got %v", log)
	}
}

func TestRegistry_BootErrorFailsNew(t *testing.T) {
	_, err := container.New(nil, container.WithProviders(&failingProvider{}))
	if !errors.Is(err, errBoot) {
		t.Errorf("New: got %v, want %v", err, errBoot)
	}
}

// ── BaseProvider defaults ─────────────────────────────────────────────────────

func TestBaseProvider_Defaults(t *testing.T) {
	var p container.BaseProvider
	if err := p.Boot(newEmpty(t)); err != nil {
		t.Errorf("BaseProvider.Boot() should return nil, got %v", err)
	}
}

// ── Boot after registration (late provider) ───────────────────────────────────

func TestRegistry_RegisterAfterBoot_BootsImmediately(t *testing.T) {
	c := newEmpty(t)

	p := &countingProvider{}
	if err := c.Providers().Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.bootCalls != 1 {
		t.Error("provider registered after Boot() should be booted immediately")
	}
	if names := c.Providers().Names(); len(names) != 1 || names[0] != "*container_test.countingProvider" {
		t.Errorf("Names(): got %v", names)
	}
}
