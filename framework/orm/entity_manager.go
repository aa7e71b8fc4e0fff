package orm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/database"
	"github.com/km-arc/go-persistence/framework/factory"
	"github.com/km-arc/go-persistence/framework/mapping"
)

// Factory creates the entity manager named by "adapter".
type Factory func(conn *database.Connection, cfg *Configuration) (*EntityManager, error)

// NewFactories returns an empty entity manager factory table.
func NewFactories() *factory.Registry[Factory] {
	return factory.New[Factory]("entity manager adapter")
}

// EntityManager runs sqlair statements on a connection and resolves entity
// metadata through the configured driver and caches.
type EntityManager struct {
	conn   *database.Connection
	db     *sqlair.DB
	config *Configuration

	mu       sync.RWMutex
	metadata map[string]*mapping.ClassMetadata
}

// New binds cfg to conn.
func New(conn *database.Connection, cfg *Configuration) (*EntityManager, error) {
	if conn == nil {
		return nil, errors.NotValidf("entity manager without connection")
	}
	if cfg == nil {
		cfg = &Configuration{}
	}
	cfg.applyDefaults()
	return &EntityManager{
		conn:     conn,
		db:       sqlair.NewDB(conn.DB),
		config:   cfg,
		metadata: make(map[string]*mapping.ClassMetadata),
	}, nil
}

func (em *EntityManager) Connection() *database.Connection { return em.conn }

func (em *EntityManager) Configuration() *Configuration { return em.config }

// DB returns the sqlair handle for callers preparing their own statements.
func (em *EntityManager) DB() *sqlair.DB { return em.db }

// Prepare wraps sqlair.Prepare.
//
//	stmt, err := em.Prepare("SELECT &User.* FROM users WHERE id = $User.id", User{})
func (em *EntityManager) Prepare(query string, typeSamples ...any) (*sqlair.Statement, error) {
	stmt, err := sqlair.Prepare(query, typeSamples...)
	return stmt, errors.Trace(err)
}

// Query runs stmt outside a transaction.
func (em *EntityManager) Query(ctx context.Context, stmt *sqlair.Statement, args ...any) *sqlair.Query {
	return em.db.Query(ctx, stmt, args...)
}

// Transactional runs fn in a transaction, committing when it returns nil
// and rolling back otherwise.
func (em *EntityManager) Transactional(ctx context.Context, fn func(ctx context.Context, tx *sqlair.TX) error) error {
	tx, err := em.db.Begin(ctx, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Annotatef(err, "rollback failed: %v", rbErr)
		}
		return errors.Trace(err)
	}
	return errors.Trace(tx.Commit())
}

// ClassMetadata returns the metadata of an entity, given by full name or
// as "Alias:Short". Unset table and column names are filled in by the
// naming strategy. Results are kept in memory and in the metadata cache.
func (em *EntityManager) ClassMetadata(ctx context.Context, entity string) (*mapping.ClassMetadata, error) {
	name, err := em.config.EntityName(entity)
	if err != nil {
		return nil, errors.Trace(err)
	}
	em.mu.RLock()
	md, ok := em.metadata[name]
	em.mu.RUnlock()
	if ok {
		return md, nil
	}

	key := "metadata:" + name
	if pool := em.config.MetadataCache; pool != nil {
		if raw, hit, err := pool.Get(ctx, key); err == nil && hit {
			var cached mapping.ClassMetadata
			if json.Unmarshal(raw, &cached) == nil {
				return em.remember(name, &cached), nil
			}
		}
	}

	md, err = em.config.MetadataDriver.LoadMetadata(ctx, name)
	if err != nil {
		return nil, errors.Annotatef(err, "loading metadata for %q", name)
	}
	cp := *md
	md = &cp
	em.complete(md)
	if pool := em.config.MetadataCache; pool != nil {
		if raw, err := json.Marshal(md); err == nil {
			_ = pool.Set(ctx, key, raw, 0)
		}
	}
	return em.remember(name, md), nil
}

func (em *EntityManager) remember(name string, md *mapping.ClassMetadata) *mapping.ClassMetadata {
	em.mu.Lock()
	defer em.mu.Unlock()
	if prev, ok := em.metadata[name]; ok {
		return prev
	}
	em.metadata[name] = md
	return md
}

func (em *EntityManager) complete(md *mapping.ClassMetadata) {
	ns := em.config.NamingStrategy
	if md.Table == "" {
		md.Table = ns.ClassToTableName(md.Name)
	}
	fields := make([]mapping.FieldMapping, len(md.Fields))
	for i, f := range md.Fields {
		if f.Column == "" {
			f.Column = ns.PropertyToColumnName(f.Field)
		}
		fields[i] = f
	}
	md.Fields = fields
	if md.Repository == "" {
		md.Repository = em.config.DefaultRepository
	}
}

// SelectSQL returns the statement Find runs for entity, reading and
// filling the query cache.
func (em *EntityManager) SelectSQL(ctx context.Context, entity string) (string, error) {
	md, err := em.ClassMetadata(ctx, entity)
	if err != nil {
		return "", errors.Trace(err)
	}
	ids := md.Identifier()
	if len(ids) == 0 {
		return "", errors.NotSupportedf("find on %q without identifier", md.Name)
	}
	key := fmt.Sprintf("select:%s:%s", em.conn.Driver(), md.Name)
	if pool := em.config.QueryCache; pool != nil {
		if raw, hit, err := pool.Get(ctx, key); err == nil && hit {
			return string(raw), nil
		}
	}
	var where []string
	for i, id := range ids {
		f, _ := md.Field(id)
		where = append(where, fmt.Sprintf("%s = %s", f.Column, em.conn.Placeholder(i+1)))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(md.Columns(), ", "), md.Table, strings.Join(where, " AND "))
	if pool := em.config.QueryCache; pool != nil {
		_ = pool.Set(ctx, key, []byte(query), 0)
	}
	return query, nil
}

// Find loads one row of entity by identifier and returns it keyed by field
// name, each value converted through the connection's type registry.
// A missing row is a NotFound error.
func (em *EntityManager) Find(ctx context.Context, entity string, id ...any) (map[string]any, error) {
	md, err := em.ClassMetadata(ctx, entity)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if n := len(md.Identifier()); n != len(id) {
		return nil, errors.NotValidf("%d identifier values for %q, want %d", len(id), md.Name, n)
	}
	query, err := em.SelectSQL(ctx, entity)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dest := make([]any, len(md.Fields))
	for i := range dest {
		dest[i] = new(any)
	}
	err = em.conn.QueryRowContext(ctx, query, id...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundf("%s %v", md.Name, id)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	row := make(map[string]any, len(md.Fields))
	types := em.conn.Types()
	for i, f := range md.Fields {
		v := *(dest[i].(*any))
		typ, err := types.Lookup(f.Type)
		if err != nil {
			return nil, errors.Annotatef(err, "field %q", f.Field)
		}
		if v, err = typ.ToGo(v); err != nil {
			return nil, errors.Annotatef(err, "field %q", f.Field)
		}
		row[f.Field] = v
	}
	return row, nil
}

// Remember returns the result cached under key, decoded into dst, or
// calls load, caches its JSON encoding for ttl and decodes that into dst.
// Without a result cache it just loads.
func (em *EntityManager) Remember(ctx context.Context, key string, ttl time.Duration, dst any, load func(context.Context) (any, error)) error {
	pool := em.config.ResultCache
	if pool != nil {
		if raw, hit, err := pool.Get(ctx, "result:"+key); err == nil && hit {
			return errors.Trace(json.Unmarshal(raw, dst))
		}
	}
	v, err := load(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Trace(err)
	}
	if pool != nil {
		if err := pool.Set(ctx, "result:"+key, raw, ttl); err != nil {
			return errors.Annotate(err, "caching result")
		}
	}
	return errors.Trace(json.Unmarshal(raw, dst))
}
