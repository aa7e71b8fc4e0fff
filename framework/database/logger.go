package database

import (
	"context"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-persistence/framework/factory"
	"github.com/km-arc/go-persistence/framework/tree"
)

// StatementLogger observes every statement run through a Connection.
type StatementLogger interface {
	LogStatement(ctx context.Context, query string, args []any, took time.Duration, err error)
}

// StatementLoggerFactory builds the logger named by "sqlLogger" from
// "sqlLoggerParams". base is the container's logger.
type StatementLoggerFactory func(base *zap.Logger, params tree.Node) (StatementLogger, error)

// NewStatementLoggers returns an empty statement logger table.
func NewStatementLoggers() *factory.Registry[StatementLoggerFactory] {
	return factory.New[StatementLoggerFactory]("sql logger")
}

// RegisterBuiltinLoggers adds "zap".
func RegisterBuiltinLoggers(loggers *factory.Registry[StatementLoggerFactory]) {
	loggers.Register("zap", NewZapStatementLogger)
}

// ZapStatementLogger writes statements to a zap logger at a fixed level.
type ZapStatementLogger struct {
	log   *zap.Logger
	level zapcore.Level
}

// NewZapStatementLogger recognizes params.level (debug, info, warn;
// default debug).
func NewZapStatementLogger(base *zap.Logger, params tree.Node) (StatementLogger, error) {
	level := zapcore.DebugLevel
	if s := params.StringOr("level", ""); s != "" {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return nil, errors.NotValidf("sql logger level %q", s)
		}
	}
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapStatementLogger{log: base.Named("sql"), level: level}, nil
}

func (l *ZapStatementLogger) LogStatement(_ context.Context, query string, args []any, took time.Duration, err error) {
	fields := []zap.Field{
		zap.String("query", query),
		zap.Int("args", len(args)),
		zap.Duration("took", took),
	}
	if err != nil {
		l.log.Warn("statement failed", append(fields, zap.Error(err))...)
		return
	}
	if ce := l.log.Check(l.level, "statement"); ce != nil {
		ce.Write(fields...)
	}
}
