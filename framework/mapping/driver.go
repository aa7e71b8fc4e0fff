package mapping

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/juju/errors"
	"github.com/spf13/afero"

	"github.com/km-arc/go-persistence/framework/cache"
)

// Driver loads metadata by entity name.
type Driver interface {
	LoadMetadata(ctx context.Context, name string) (*ClassMetadata, error)
	AllClassNames(ctx context.Context) ([]string, error)
}

// ── Chain ─────────────────────────────────────────────────────────────────────

type chained struct {
	namespace string
	driver    Driver
}

// Chain delegates each name to the first driver whose namespace contains
// it.
type Chain struct {
	drivers []chained
}

func (c *Chain) Add(d Driver, namespace string) {
	c.drivers = append(c.drivers, chained{namespace: namespace, driver: d})
}

func (c *Chain) Len() int { return len(c.drivers) }

func (c *Chain) LoadMetadata(ctx context.Context, name string) (*ClassMetadata, error) {
	for _, d := range c.drivers {
		if InNamespace(name, d.namespace) {
			return d.driver.LoadMetadata(ctx, name)
		}
	}
	return nil, errors.NotFoundf("mapping driver for %q", name)
}

func (c *Chain) AllClassNames(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, d := range c.drivers {
		all, err := d.driver.AllClassNames(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, n := range all {
			if InNamespace(n, d.namespace) && !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Collapse returns the only driver of a chain holding exactly one, and the
// chain itself otherwise.
func Collapse(c *Chain) Driver {
	if len(c.drivers) == 1 {
		return c.drivers[0].driver
	}
	return c
}

// ── YAML driver ───────────────────────────────────────────────────────────────

// YAMLDriver reads the mapping files of a set of directories on first use.
// Parsed metadata is kept in the reader cache, so processes sharing a
// persistent cache skip parsing.
type YAMLDriver struct {
	fs      afero.Fs
	dirs    []string
	aliases map[string]string
	cache   cache.Pool

	once    sync.Once
	classes map[string]*ClassMetadata
	err     error
}

// NewYAMLDriver reads dirs from fs. cache may be nil.
func NewYAMLDriver(fs afero.Fs, dirs []string, aliases map[string]string, pool cache.Pool) *YAMLDriver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &YAMLDriver{fs: fs, dirs: dirs, aliases: aliases, cache: pool}
}

func (d *YAMLDriver) load() (map[string]*ClassMetadata, error) {
	d.once.Do(func() {
		d.classes, d.err = readDirs(d.fs, d.dirs, d.aliases)
	})
	return d.classes, d.err
}

func (d *YAMLDriver) LoadMetadata(ctx context.Context, name string) (*ClassMetadata, error) {
	key := "mapping:" + name
	if d.cache != nil {
		if raw, ok, err := d.cache.Get(ctx, key); err == nil && ok {
			var md ClassMetadata
			if json.Unmarshal(raw, &md) == nil {
				return &md, nil
			}
		}
	}
	classes, err := d.load()
	if err != nil {
		return nil, errors.Trace(err)
	}
	md, ok := classes[name]
	if !ok {
		return nil, errors.NotFoundf("mapping for %q", name)
	}
	if d.cache != nil {
		if raw, err := json.Marshal(md); err == nil {
			_ = d.cache.Set(ctx, key, raw, 0)
		}
	}
	cp := *md
	return &cp, nil
}

func (d *YAMLDriver) AllClassNames(context.Context) ([]string, error) {
	classes, err := d.load()
	if err != nil {
		return nil, errors.Trace(err)
	}
	names := make([]string, 0, len(classes))
	for n := range classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// ── Static driver ─────────────────────────────────────────────────────────────

// StaticDriver serves the metadata held by a Registry.
type StaticDriver struct {
	reg *Registry
}

func NewStaticDriver(reg *Registry) *StaticDriver { return &StaticDriver{reg: reg} }

func (d *StaticDriver) LoadMetadata(_ context.Context, name string) (*ClassMetadata, error) {
	return d.reg.Lookup(name)
}

func (d *StaticDriver) AllClassNames(context.Context) ([]string, error) {
	return d.reg.Names(), nil
}
