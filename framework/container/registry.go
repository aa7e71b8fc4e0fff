package container

import (
	"context"
	"sync"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/km-arc/go-persistence/framework/tree"
)

// Builder constructs the instance described by record. Cross-category
// references are resolved through r, never through the Container's public
// methods.
type Builder func(ctx context.Context, record tree.Node, r Resolver) (any, error)

// Resolver looks up instances from inside a Builder.
type Resolver interface {
	Get(ctx context.Context, cat Category, name string) (any, error)
}

// registry is the lazy named-singleton store of one category. A name moves
// from records to instances when its build succeeds; a failed build leaves
// the record in place so the next get retries.
type registry struct {
	category Category
	build    Builder
	logger   *zap.Logger
	metrics  *Collector
	clock    clock.Clock

	mu          sync.Mutex
	defaultName string
	records     map[string]tree.Node
	instances   map[string]any
	group       *singleflight.Group
}

func newRegistry(cat Category, build Builder, logger *zap.Logger, metrics *Collector, clk clock.Clock) *registry {
	r := &registry{
		category: cat,
		build:    build,
		logger:   logger.With(zap.String("category", string(cat))),
		metrics:  metrics,
		clock:    clk,
	}
	r.load(Section{DefaultName: DefaultName})
	return r
}

// load replaces all state with s. Callers must ensure no get is running.
func (r *registry) load(s Section) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = s.DefaultName
	r.records = make(map[string]tree.Node, len(s.Records))
	for name, record := range s.Records {
		r.records[name] = record
	}
	r.instances = make(map[string]any)
	r.group = new(singleflight.Group)
	r.metrics.reset(r.category)
}

func (r *registry) get(ctx context.Context, name string, res Resolver) (any, error) {
	r.mu.Lock()
	if name == "" {
		name = r.defaultName
	}
	if inst, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return inst, nil
	}
	_, configured := r.records[name]
	group := r.group
	r.mu.Unlock()
	if !configured {
		return nil, &NameNotFoundError{Category: r.category, Name: name}
	}

	v, err, _ := group.Do(name, func() (any, error) {
		r.mu.Lock()
		if inst, ok := r.instances[name]; ok {
			r.mu.Unlock()
			return inst, nil
		}
		record, ok := r.records[name]
		r.mu.Unlock()
		if !ok {
			return nil, &NameNotFoundError{Category: r.category, Name: name}
		}

		start := r.clock.Now()
		inst, err := r.build(ctx, record, res)
		took := r.clock.Now().Sub(start)
		r.metrics.built(r.category, took, err)
		if err != nil {
			err = asBuildError(r.category, name, err)
			r.logger.Warn("build failed", zap.String("name", name), zap.Error(err))
			return nil, err
		}
		r.logger.Debug("built", zap.String("name", name), zap.Duration("took", took))

		r.mu.Lock()
		r.instances[name] = inst
		delete(r.records, name)
		r.mu.Unlock()
		return inst, nil
	})
	return v, err
}

// names is the union of configured and loaded names, sorted.
func (r *registry) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := set.NewStrings()
	for name := range r.records {
		s.Add(name)
	}
	for name := range r.instances {
		s.Add(name)
	}
	return s.SortedValues()
}

func (r *registry) defaultInstanceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultName
}

func (r *registry) configured(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[name]
	return ok
}

func (r *registry) loaded(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[name]
	return ok
}

// loadedInstances returns the built instances by name.
func (r *registry) loadedInstances() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.instances))
	for name, inst := range r.instances {
		out[name] = inst
	}
	return out
}
