package container_test

import (
	"encoding/json"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-persistence/framework/container"
	"github.com/km-arc/go-persistence/framework/tree"
)

var cacheDefaults = tree.MustOf(map[string]any{
	"adapter":   "array",
	"namespace": "",
	"options":   map[string]any{"limit": 100},
})

func TestNormalize_Collection(t *testing.T) {
	raw := tree.MustOf(map[string]any{
		"defaultCacheInstance": "sessions",
		"adapter":              "ignored",
		"instances": map[string]any{
			"default":  map[string]any{"adapter": "memory"},
			"sessions": map[string]any{"adapter": "filesystem", "directory": "/tmp/x"},
		},
	})
	def, records, err := container.Normalize(container.CacheCategory, raw, "default", cacheDefaults)
	require.NoError(t, err)

	assert.Equal(t, "sessions", def)
	require.Len(t, records, 2)
	assert.Equal(t, "memory", records["default"].StringOr("adapter", ""))
	assert.Equal(t, "/tmp/x", records["sessions"].StringOr("directory", ""))
	assert.Equal(t, "", records["sessions"].StringOr("namespace", "missing"))
	assert.False(t, records["default"].Has("defaultCacheInstance"))
}

func TestNormalize_Shorthand(t *testing.T) {
	raw := tree.MustOf(map[string]any{
		"defaultCacheInstance": "main",
		"id":                   "ignored",
		"adapter":              "filesystem",
		"options":              map[string]any{"directory": "/tmp/c"},
	})
	def, records, err := container.Normalize(container.CacheCategory, raw, "default", cacheDefaults)
	require.NoError(t, err)

	assert.Equal(t, "main", def)
	require.Len(t, records, 1)
	rec := records["main"]
	assert.Equal(t, "filesystem", rec.StringOr("adapter", ""))
	limit, _ := rec.Get("options").Get("limit").AsInt()
	assert.Equal(t, int64(100), limit, "nested defaults survive a nested override")
	assert.Equal(t, "/tmp/c", rec.Get("options").StringOr("directory", ""))
	assert.False(t, rec.Has("id"))
}

func TestNormalize_IDOverridesStorageName(t *testing.T) {
	raw := tree.MustOf(map[string]any{
		"instances": map[string]any{
			"first":  map[string]any{"id": "primary"},
			"second": nil,
		},
	})
	_, records, err := container.Normalize(container.CacheCategory, raw, "default", cacheDefaults)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"primary", "second"}, container.Section{Records: records}.Names())
	assert.True(t, records["second"].Equal(cacheDefaults))
}

func TestNormalize_DuplicateID(t *testing.T) {
	raw := tree.MustOf(map[string]any{
		"instances": map[string]any{
			"a": map[string]any{"id": "same"},
			"b": map[string]any{"id": "same"},
		},
	})
	_, _, err := container.Normalize(container.CacheCategory, raw, "default", cacheDefaults)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestNormalize_NullSectionHasNoRecords(t *testing.T) {
	def, records, err := container.Normalize(container.CacheCategory, tree.Node{}, "default", cacheDefaults)
	require.NoError(t, err)
	assert.Equal(t, "default", def)
	assert.Empty(t, records)
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"section scalar", "array"},
		{"collection sequence", map[string]any{"instances": []any{"a"}}},
		{"entry scalar", map[string]any{"instances": map[string]any{"a": "array"}}},
		{"default not string", map[string]any{"defaultCacheInstance": 3}},
		{"id not string", map[string]any{"instances": map[string]any{"a": map[string]any{"id": true}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := container.Normalize(container.CacheCategory, tree.MustOf(tt.raw), "default", cacheDefaults)
			var cfgErr *container.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, "cache", cfgErr.Section)
			assert.True(t, errors.Is(err, errors.NotValid))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := tree.MustOf(map[string]any{
		"dbal": map[string]any{
			"connections": map[string]any{
				"main":    map[string]any{"parameters": map[string]any{"driver": "sqlite3"}},
				"reports": map[string]any{"parameters": map[string]any{"driver": "pgsql", "port": 5432}},
			},
		},
		"cache": map[string]any{"adapter": "array"},
		"orm": map[string]any{
			"entityManagers": map[string]any{
				"default": map[string]any{"connection": "main", "queryCache": "sessions"},
			},
		},
	})
	encode := func() []byte {
		sections, err := container.NormalizeRoot(raw, "/srv/app")
		require.NoError(t, err)
		b, err := json.Marshal(sections)
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, string(encode()), string(encode()))
}

func TestNormalizeRoot_CrossReferenceDefaults(t *testing.T) {
	raw := tree.MustOf(map[string]any{
		"dbal":  map[string]any{"defaultConnection": "main"},
		"cache": map[string]any{"defaultCacheInstance": "fast"},
		"orm":   map[string]any{},
		"odm":   map[string]any{},
	})
	sections, err := container.NormalizeRoot(raw, "/srv/app/application")
	require.NoError(t, err)

	em := sections[container.EntityManagerCategory].Records["default"]
	assert.Equal(t, "main", em.StringOr("connection", ""))
	for _, key := range []string{"queryCache", "resultCache", "metadataCache"} {
		assert.Equal(t, "fast", em.StringOr(key, ""), key)
	}
	dir, _ := em.Lookup("proxy", "dir")
	assert.Equal(t, "/srv/app/library/Proxy", dir.Text())

	dm := sections[container.DocumentManagerCategory].Records["default"]
	assert.Equal(t, "fast", dm.StringOr("metadataCache", ""))
	hydrator, _ := dm.Lookup("hydrator", "dir")
	assert.Equal(t, "/srv/app/cache", hydrator.Text())

	conn := sections[container.ConnectionCategory].Records["main"]
	driver, _ := conn.Lookup("parameters", "driver")
	assert.Equal(t, "mysql", driver.Text())
}

func TestNormalizeRoot_EntityManagersNeedConnections(t *testing.T) {
	_, err := container.NormalizeRoot(tree.MustOf(map[string]any{"orm": map[string]any{}}), ".")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestNormalizeRoot_AbsentSections(t *testing.T) {
	sections, err := container.NormalizeRoot(tree.Node{}, ".")
	require.NoError(t, err)
	for _, cat := range container.Categories {
		assert.Equal(t, container.DefaultName, sections[cat].DefaultName)
		assert.Empty(t, sections[cat].Records)
	}
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]container.Category{
		"dbal":        container.ConnectionCategory,
		"connections": container.ConnectionCategory,
		"instances":   container.CacheCategory,
		"orm":         container.EntityManagerCategory,
		"odm":         container.DocumentManagerCategory,
	} {
		got, err := container.ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := container.ParseCategory("queue")
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Equal(t, "entity manager", container.EntityManagerCategory.String())
}
