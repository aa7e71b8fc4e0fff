package orm_test

import (
	"context"
	"testing"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/database"
	"github.com/km-arc/go-persistence/framework/mapping"
	"github.com/km-arc/go-persistence/framework/orm"
)

type Person struct {
	ID   int64  `db:"id"`
	Name string `db:"full_name"`
}

// ── helpers ──────────────────────────────────────────────────────────────────

func newConn(t *testing.T) *database.Connection {
	t.Helper()
	conn, err := database.Open(database.OpenSQLite, database.Config{Driver: "sqlite3"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.ExecContext(context.Background(), `
		CREATE TABLE person (id INTEGER PRIMARY KEY, full_name TEXT, active INTEGER);
		INSERT INTO person VALUES (1, 'Ada Lovelace', 1);
	`)
	require.NoError(t, err)
	return conn
}

func newPool(t *testing.T) *cache.ArrayPool {
	t.Helper()
	p, err := cache.NewArrayPool(cache.ArrayOptions{})
	require.NoError(t, err)
	return p
}

func newRegistry(t *testing.T) *mapping.Registry {
	t.Helper()
	reg := mapping.NewRegistry(afero.NewMemMapFs())
	require.NoError(t, reg.Register(&mapping.ClassMetadata{
		Name: "app.entity.Person",
		Fields: []mapping.FieldMapping{
			{Field: "id", Type: "integer", ID: true},
			{Field: "fullName", Type: "string"},
			{Field: "active", Type: "boolean"},
		},
	}))
	return reg
}

func newManager(t *testing.T, cfg *orm.Configuration) *orm.EntityManager {
	t.Helper()
	if cfg.MetadataDriver == nil {
		cfg.MetadataDriver = mapping.NewStaticDriver(newRegistry(t))
	}
	em, err := orm.New(newConn(t), cfg)
	require.NoError(t, err)
	return em
}

// ── sqlair ────────────────────────────────────────────────────────────────────

func TestEntityManager_PrepareQuery(t *testing.T) {
	ctx := context.Background()
	em := newManager(t, &orm.Configuration{})

	stmt, err := em.Prepare("SELECT &Person.* FROM person WHERE id = $Person.id", Person{})
	require.NoError(t, err)

	var p Person
	require.NoError(t, em.Query(ctx, stmt, Person{ID: 1}).Get(&p))
	assert.Equal(t, "Ada Lovelace", p.Name)
}

func TestEntityManager_TransactionalCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	em := newManager(t, &orm.Configuration{})

	insert, err := em.Prepare("INSERT INTO person (id, full_name) VALUES ($Person.id, $Person.full_name)", Person{})
	require.NoError(t, err)

	require.NoError(t, em.Transactional(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		return tx.Query(ctx, insert, Person{ID: 2, Name: "Grace Hopper"}).Run()
	}))

	boom := errors.New("boom")
	err = em.Transactional(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, insert, Person{ID: 3, Name: "Edsger Dijkstra"}).Run(); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	var n int
	require.NoError(t, em.Connection().QueryRowContext(ctx, "SELECT COUNT(*) FROM person").Scan(&n))
	assert.Equal(t, 2, n)
}

// ── Metadata ──────────────────────────────────────────────────────────────────

func TestEntityManager_ClassMetadataAppliesNamingStrategy(t *testing.T) {
	ctx := context.Background()
	em := newManager(t, &orm.Configuration{
		EntityNamespaces:  map[string]string{"App": "app.entity"},
		NamingStrategy:    orm.UnderscoreNamingStrategy{},
		DefaultRepository: "app.Repository",
	})

	md, err := em.ClassMetadata(ctx, "App:Person")
	require.NoError(t, err)
	assert.Equal(t, "app.entity.Person", md.Name)
	assert.Equal(t, "person", md.Table)
	assert.Equal(t, []string{"id", "full_name", "active"}, md.Columns())
	assert.Equal(t, "app.Repository", md.Repository)

	again, err := em.ClassMetadata(ctx, "app.entity.Person")
	require.NoError(t, err)
	assert.Same(t, md, again)
}

func TestEntityManager_ClassMetadataUsesMetadataCache(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)
	cfg := &orm.Configuration{MetadataCache: pool, NamingStrategy: orm.UnderscoreNamingStrategy{}}
	em := newManager(t, cfg)

	_, err := em.ClassMetadata(ctx, "app.entity.Person")
	require.NoError(t, err)
	_, hit, err := pool.Get(ctx, "metadata:app.entity.Person")
	require.NoError(t, err)
	assert.True(t, hit)

	// A second manager sharing the cache never consults its driver.
	other, err := orm.New(em.Connection(), &orm.Configuration{
		MetadataCache:  pool,
		MetadataDriver: mapping.NewStaticDriver(mapping.NewRegistry(afero.NewMemMapFs())),
	})
	require.NoError(t, err)
	md, err := other.ClassMetadata(ctx, "app.entity.Person")
	require.NoError(t, err)
	assert.Equal(t, "person", md.Table)
}

func TestEntityManager_UnknownAlias(t *testing.T) {
	em := newManager(t, &orm.Configuration{})
	_, err := em.ClassMetadata(context.Background(), "Shop:Order")
	assert.True(t, errors.Is(err, errors.NotFound))
}

// ── Find ──────────────────────────────────────────────────────────────────────

func TestEntityManager_Find(t *testing.T) {
	ctx := context.Background()
	queries := newPool(t)
	em := newManager(t, &orm.Configuration{
		NamingStrategy: orm.UnderscoreNamingStrategy{},
		QueryCache:     queries,
	})

	row, err := em.Find(ctx, "app.entity.Person", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "fullName": "Ada Lovelace", "active": true}, row)

	sqlText, hit, err := queries.Get(ctx, "select:sqlite3:app.entity.Person")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "SELECT id, full_name, active FROM person WHERE id = ?", string(sqlText))

	_, err = em.Find(ctx, "app.entity.Person", 99)
	assert.True(t, errors.Is(err, errors.NotFound))

	_, err = em.Find(ctx, "app.entity.Person")
	assert.True(t, errors.Is(err, errors.NotValid))
}

// ── Result cache ──────────────────────────────────────────────────────────────

func TestEntityManager_Remember(t *testing.T) {
	ctx := context.Background()
	em := newManager(t, &orm.Configuration{ResultCache: newPool(t)})

	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		return []string{"a", "b"}, nil
	}
	var first, second []string
	require.NoError(t, em.Remember(ctx, "letters", time.Minute, &first, load))
	require.NoError(t, em.Remember(ctx, "letters", time.Minute, &second, load))

	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

// ── Configuration ─────────────────────────────────────────────────────────────

func TestConfiguration_Functions(t *testing.T) {
	var cfg orm.Configuration
	require.NoError(t, cfg.AddFunction(orm.StringFunction, "SOUNDEX", "soundex(%s)"))
	require.NoError(t, cfg.AddFunction(orm.NumericFunction, "ROUND2", "round(%s, 2)"))
	assert.True(t, errors.Is(cfg.AddFunction("boolean", "X", "x"), errors.NotValid))

	impl, ok := cfg.Function(orm.StringFunction, "SOUNDEX")
	assert.True(t, ok)
	assert.Equal(t, "soundex(%s)", impl)
	assert.Equal(t, []string{"ROUND2"}, cfg.Functions(orm.NumericFunction))
	assert.Empty(t, cfg.Functions(orm.DatetimeFunction))
}

func TestNew_RequiresConnection(t *testing.T) {
	_, err := orm.New(nil, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}
