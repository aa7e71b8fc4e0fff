package container

import (
	"context"

	"github.com/juju/errors"

	"github.com/km-arc/go-persistence/framework/database"
	"github.com/km-arc/go-persistence/framework/tree"
)

// buildConnection opens the pool of a dbal record:
//
//	parameters:        {driver: sqlite3, path: app.db, ...}
//	maxOpenConns:      10
//	connMaxLifetime:   5m
//	types:             {money: integer}
//	typeMapping:       {numeric: money}
//	eventSubscribers:  [sqliteForeignKeys]
//	sqlLogger:         zap
//	ping:              true
func (c *Container) buildConnection(ctx context.Context, record tree.Node, _ Resolver) (any, error) {
	params := record.Get("parameters")
	driver := params.StringOr("driver", "")
	opener, err := c.factories.Drivers.Lookup(driver)
	if err != nil {
		return nil, errors.Trace(err)
	}

	cfg := database.Config{Driver: driver, Params: params}
	if cfg.MaxOpenConns, err = intOf(record.Get("maxOpenConns")); err != nil {
		return nil, errors.Annotate(err, "maxOpenConns")
	}
	if cfg.MaxIdleConns, err = intOf(record.Get("maxIdleConns")); err != nil {
		return nil, errors.Annotate(err, "maxIdleConns")
	}
	if cfg.ConnMaxLifetime, err = durationOf(record.Get("connMaxLifetime")); err != nil {
		return nil, errors.Annotate(err, "connMaxLifetime")
	}
	if cfg.Types, err = record.Get("types").StringMap(); err != nil {
		return nil, errors.NewNotValid(err, "types")
	}
	if cfg.TypeMapping, err = record.Get("typeMapping").StringMap(); err != nil {
		return nil, errors.NewNotValid(err, "typeMapping")
	}

	subscribers, err := record.Get("eventSubscribers").Strings()
	if err != nil {
		return nil, errors.NewNotValid(err, "eventSubscribers")
	}
	for _, name := range subscribers {
		if name == "" {
			continue
		}
		newSubscriber, err := c.factories.Subscribers.Lookup(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		cfg.Subscribers = append(cfg.Subscribers, newSubscriber())
	}

	if name := record.StringOr("sqlLogger", ""); name != "" {
		newLogger, err := c.factories.StatementLoggers.Lookup(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if cfg.Logger, err = newLogger(c.logger, record.Get("sqlLoggerParams")); err != nil {
			return nil, errors.Annotatef(err, "sql logger %q", name)
		}
	}

	conn, err := database.Open(opener, cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if ping, _ := record.Get("ping").AsBool(); ping {
		if err := conn.Connect(ctx); err != nil {
			_ = conn.Close()
			return nil, errors.Trace(err)
		}
	}
	return conn, nil
}
