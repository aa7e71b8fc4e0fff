package database

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"time"

	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/tree"
)

// Config is a connection record after parsing.
type Config struct {
	Driver string
	Params tree.Node

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Types maps new type names onto registered ones; existing names are
	// overridden.
	Types map[string]string
	// TypeMapping maps database column types onto type names.
	TypeMapping map[string]string

	Subscribers []Subscriber
	Logger      StatementLogger
}

// Connection is a database/sql pool plus the configuration attached to it.
// Statements issued through ExecContext, QueryContext and QueryRowContext
// are reported to the statement logger, if any.
type Connection struct {
	*sql.DB

	driver      string
	params      tree.Node
	types       *Types
	typeMapping map[string]string
	events      *EventManager
	logger      StatementLogger
}

// Open creates the pool with opener and applies cfg. Types named in
// TypeMapping must exist once Types has been applied.
func Open(opener Opener, cfg Config) (*Connection, error) {
	types := NewTypes()
	names := make([]string, 0, len(cfg.Types))
	for name := range cfg.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := types.Alias(name, cfg.Types[name]); err != nil {
			return nil, errors.Annotatef(err, "type %q", name)
		}
	}
	mapping := make(map[string]string, len(cfg.TypeMapping))
	for dbType, name := range cfg.TypeMapping {
		if !types.Has(name) {
			return nil, errors.NotFoundf("type %q mapped from %q", name, dbType)
		}
		mapping[dbType] = name
	}

	events := NewEventManager()
	for _, s := range cfg.Subscribers {
		events.AddSubscriber(s)
	}

	params := cfg.Params
	if params.IsNull() {
		params = tree.EmptyMap()
	}
	db, err := opener(params)
	if err != nil {
		return nil, errors.Annotatef(err, "opening %s connection", cfg.Driver)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Connection{
		DB:          db,
		driver:      cfg.Driver,
		params:      params,
		types:       types,
		typeMapping: mapping,
		events:      events,
		logger:      cfg.Logger,
	}, nil
}

// Connect pings the database and fires PostConnect.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.PingContext(ctx); err != nil {
		return errors.Annotatef(err, "connecting to %s", c.driver)
	}
	return errors.Trace(c.events.Dispatch(ctx, PostConnect, c))
}

func (c *Connection) Driver() string { return c.driver }

// Params returns the connection parameters with the password masked.
func (c *Connection) Params() tree.Node { return Redact(c.params) }

func (c *Connection) Types() *Types { return c.types }

func (c *Connection) Events() *EventManager { return c.events }

// Placeholder returns the bind parameter marker for the n-th (1-based)
// argument of a statement in this connection's dialect.
func (c *Connection) Placeholder(n int) string {
	switch c.driver {
	case "pgsql", "postgres", "pdo_pgsql":
		return "$" + strconv.Itoa(n)
	case "sqlsrv", "mssql", "pdo_sqlsrv":
		return "@p" + strconv.Itoa(n)
	}
	return "?"
}

// MappedType returns the type a database column type is mapped to.
func (c *Connection) MappedType(dbType string) (Type, bool) {
	name, ok := c.typeMapping[dbType]
	if !ok {
		return nil, false
	}
	typ, err := c.types.Lookup(name)
	return typ, err == nil
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.DB.ExecContext(ctx, query, args...)
	c.log(ctx, query, args, start, err)
	return res, err
}

func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.DB.QueryContext(ctx, query, args...)
	c.log(ctx, query, args, start, err)
	return rows, err
}

func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := c.DB.QueryRowContext(ctx, query, args...)
	c.log(ctx, query, args, start, row.Err())
	return row
}

func (c *Connection) log(ctx context.Context, query string, args []any, start time.Time, err error) {
	if c.logger == nil {
		return
	}
	c.logger.LogStatement(ctx, query, args, time.Since(start), err)
}
