package providers

import (
	"context"

	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/container"
	"github.com/km-arc/go-persistence/framework/database"
	"github.com/km-arc/go-persistence/framework/mapping"
	"github.com/km-arc/go-persistence/framework/odm"
	"github.com/km-arc/go-persistence/framework/orm"
)

// Defaults returns the providers every application starts with.
func Defaults() []container.ServiceProvider {
	return []container.ServiceProvider{
		&CacheProvider{},
		&DatabaseProvider{},
		&MappingProvider{},
		&ORMProvider{},
		&ODMProvider{},
	}
}

// ── CacheProvider ─────────────────────────────────────────────────────────────

// CacheProvider registers the cache adapters.
//
// Adapters:
//   - "array", "memory"        → *cache.ArrayPool
//   - "filesystem"             → *cache.FilesystemPool
//   - "bolt"                   → *cache.BoltPool
//   - "memcache", "memcached"  → *cache.MemcachePool
type CacheProvider struct {
	container.BaseProvider
}

func (p *CacheProvider) Register(f *container.Factories) {
	cache.Register(f.Caches, "array", cache.OpenArrayPool)
	cache.Register(f.Caches, "filesystem", cache.OpenFilesystemPool)
	cache.Register(f.Caches, "bolt", cache.OpenBoltPool)
	cache.Register(f.Caches, "memcache", cache.OpenMemcachePool)
	_ = f.Caches.Alias("array", "memory")
	_ = f.Caches.Alias("memcache", "memcached")
}

// ── DatabaseProvider ──────────────────────────────────────────────────────────

// DatabaseProvider registers the SQL drivers, event subscribers and the
// "zap" statement logger.
//
// Drivers:
//   - "mysql", "pdo_mysql", "mysqli"
//   - "pgsql", "postgres", "pdo_pgsql"
//   - "sqlite3", "sqlite", "pdo_sqlite"
//   - "sqlsrv", "mssql", "pdo_sqlsrv"
type DatabaseProvider struct {
	container.BaseProvider
}

func (p *DatabaseProvider) Register(f *container.Factories) {
	database.RegisterBuiltins(f.Drivers)
	database.RegisterBuiltinSubscribers(f.Subscribers)
	database.RegisterBuiltinLoggers(f.StatementLoggers)
}

// ── MappingProvider ───────────────────────────────────────────────────────────

// MappingProvider registers the "yaml", "static" and "annotation" metadata
// drivers.
type MappingProvider struct {
	container.BaseProvider
}

func (p *MappingProvider) Register(f *container.Factories) {
	mapping.RegisterBuiltins(f.MetadataDrivers)
}

// ── ORMProvider ───────────────────────────────────────────────────────────────

// ORMProvider registers the "default" entity manager and the naming
// strategies.
type ORMProvider struct {
	container.BaseProvider
}

func (p *ORMProvider) Register(f *container.Factories) {
	f.EntityManagers.Register("default", orm.New)
	orm.RegisterBuiltinStrategies(f.NamingStrategies)
}

// ── ODMProvider ───────────────────────────────────────────────────────────────

// ODMProvider registers the "default" document manager.
type ODMProvider struct {
	container.BaseProvider
}

func (p *ODMProvider) Register(f *container.Factories) {
	f.DocumentManagers.Register("default", odm.New)
}

// ── WarmupProvider ────────────────────────────────────────────────────────────

// WarmupProvider builds the listed instances while the container boots, so
// configuration mistakes surface at startup instead of on first use. An
// empty name means the category's default.
//
//	container.WithProviders(&providers.WarmupProvider{Names: map[container.Category][]string{
//	    container.ConnectionCategory: {""},
//	    container.CacheCategory:      {"sessions"},
//	}})
type WarmupProvider struct {
	Names map[container.Category][]string
}

func (p *WarmupProvider) Register(_ *container.Factories) {}

func (p *WarmupProvider) Boot(c *container.Container) error {
	ctx := context.Background()
	for _, cat := range container.Categories {
		for _, name := range p.Names[cat] {
			if _, err := c.Get(ctx, cat, name); err != nil {
				return errors.Annotatef(err, "warming up %s %q", cat, name)
			}
		}
	}
	return nil
}
