package providers_test

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/container"
	"github.com/km-arc/go-persistence/framework/providers"
)

func TestDefaults_RegisterBuiltins(t *testing.T) {
	c, err := container.New(nil, container.WithProviders(providers.Defaults()...))
	require.NoError(t, err)

	f := c.Factories()
	assert.Equal(t, []string{"array", "bolt", "filesystem", "memcache", "memcached", "memory"}, f.Caches.IDs())
	for _, id := range []string{"mysql", "pgsql", "sqlite3", "sqlsrv", "pdo_sqlite"} {
		assert.True(t, f.Drivers.Has(id), id)
	}
	assert.True(t, f.Subscribers.Has("sqliteForeignKeys"))
	assert.True(t, f.StatementLoggers.Has("zap"))
	assert.Equal(t, []string{"annotation", "static", "yaml"}, f.MetadataDrivers.IDs())
	assert.True(t, f.NamingStrategies.Has("underscore"))
	assert.True(t, f.EntityManagers.Has("default"))
	assert.True(t, f.DocumentManagers.Has("default"))
}

func TestCacheProvider_MemoryAlias(t *testing.T) {
	c, err := container.New(map[string]any{
		"cache": map[string]any{"adapter": "memory"},
	}, container.WithProviders(&providers.CacheProvider{}))
	require.NoError(t, err)

	pool, err := c.CacheInstance(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &cache.ArrayPool{}, pool)
}

func TestWarmupProvider_BuildsAtBoot(t *testing.T) {
	cfg := map[string]any{
		"cache": map[string]any{
			"instances": map[string]any{
				"default":  map[string]any{"adapter": "array"},
				"sessions": map[string]any{"adapter": "array"},
			},
		},
	}
	c, err := container.New(cfg, container.WithProviders(
		&providers.CacheProvider{},
		&providers.WarmupProvider{Names: map[container.Category][]string{
			container.CacheCategory: {"sessions"},
		}},
	))
	require.NoError(t, err)
	assert.True(t, c.Loaded(container.CacheCategory, "sessions"))
	assert.False(t, c.Loaded(container.CacheCategory, "default"))
}

func TestWarmupProvider_FailureFailsNew(t *testing.T) {
	_, err := container.New(map[string]any{"cache": map[string]any{}}, container.WithProviders(
		&providers.CacheProvider{},
		&providers.WarmupProvider{Names: map[container.Category][]string{
			container.CacheCategory: {"sessoins"},
		}},
	))
	assert.True(t, errors.Is(err, errors.NotFound))
}
