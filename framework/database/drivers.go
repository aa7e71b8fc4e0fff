package database

import (
	"database/sql"
	"net"
	"net/url"
	"strconv"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/km-arc/go-persistence/framework/factory"
	"github.com/km-arc/go-persistence/framework/tree"
)

// Opener creates a connection pool from the "parameters" mapping of a
// connection record. It must not perform I/O; the first round trip happens
// on Connection.Connect or the first query.
type Opener func(params tree.Node) (*sql.DB, error)

// NewDrivers returns an empty driver table.
func NewDrivers() *factory.Registry[Opener] {
	return factory.New[Opener]("sql driver")
}

// RegisterBuiltins adds the MySQL, PostgreSQL, SQLite and SQL Server
// openers, including the pdo_* identifiers older configurations use.
func RegisterBuiltins(drivers *factory.Registry[Opener]) {
	for _, id := range []string{"mysql", "pdo_mysql", "mysqli"} {
		drivers.Register(id, OpenMySQL)
	}
	for _, id := range []string{"pgsql", "postgres", "pdo_pgsql"} {
		drivers.Register(id, OpenPostgres)
	}
	for _, id := range []string{"sqlite3", "sqlite", "pdo_sqlite"} {
		drivers.Register(id, OpenSQLite)
	}
	for _, id := range []string{"sqlsrv", "mssql", "pdo_sqlsrv"} {
		drivers.Register(id, OpenSQLServer)
	}
}

// ── MySQL ─────────────────────────────────────────────────────────────────────

// MySQLConfig translates connection parameters into a driver config.
// Recognized: host, port, unix_socket, user, password, dbname, charset and
// driverOptions (passed as DSN parameters).
func MySQLConfig(params tree.Node) (*mysql.Config, error) {
	cfg := mysql.NewConfig()
	cfg.User = params.StringOr("user", "")
	cfg.Passwd = params.StringOr("password", "")
	cfg.DBName = params.StringOr("dbname", "")
	cfg.ParseTime = true
	if sock := params.StringOr("unix_socket", ""); sock != "" {
		cfg.Net = "unix"
		cfg.Addr = sock
	} else {
		port, err := portOf(params, 3306)
		if err != nil {
			return nil, errors.Trace(err)
		}
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(params.StringOr("host", "localhost"), strconv.Itoa(port))
	}
	opts, err := params.Get("driverOptions").StringMap()
	if err != nil {
		return nil, errors.NotValidf("driverOptions: %v", err)
	}
	if charset := params.StringOr("charset", ""); charset != "" {
		opts["charset"] = charset
	}
	if len(opts) > 0 {
		cfg.Params = opts
	}
	return cfg, nil
}

// OpenMySQL opens a pool through the MySQL connector, or from a raw "dsn"
// parameter when one is given.
func OpenMySQL(params tree.Node) (*sql.DB, error) {
	var cfg *mysql.Config
	var err error
	if dsn := params.StringOr("dsn", ""); dsn != "" {
		cfg, err = mysql.ParseDSN(dsn)
	} else {
		cfg, err = MySQLConfig(params)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return sql.OpenDB(connector), nil
}

// ── PostgreSQL ────────────────────────────────────────────────────────────────

// PostgresDSN builds a postgres:// URL. Recognized: host, port, user,
// password, dbname, sslmode and driverOptions (query parameters).
func PostgresDSN(params tree.Node) (string, error) {
	if dsn := params.StringOr("dsn", ""); dsn != "" {
		return dsn, nil
	}
	port, err := portOf(params, 5432)
	if err != nil {
		return "", errors.Trace(err)
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(params.StringOr("host", "localhost"), strconv.Itoa(port)),
		Path:   "/" + params.StringOr("dbname", ""),
	}
	if user := params.StringOr("user", ""); user != "" {
		if pw, ok := params.Get("password").AsString(); ok {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	q, err := query(params)
	if err != nil {
		return "", errors.Trace(err)
	}
	if mode := params.StringOr("sslmode", ""); mode != "" {
		q.Set("sslmode", mode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OpenPostgres opens a pool through the lib/pq connector.
func OpenPostgres(params tree.Node) (*sql.DB, error) {
	dsn, err := PostgresDSN(params)
	if err != nil {
		return nil, errors.Trace(err)
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return sql.OpenDB(connector), nil
}

// ── SQLite ────────────────────────────────────────────────────────────────────

// SQLiteDSN builds a go-sqlite3 DSN. Recognized: path, memory (bool) and
// driverOptions (appended as URI parameters, e.g. _foreign_keys).
func SQLiteDSN(params tree.Node) (string, error) {
	if dsn := params.StringOr("dsn", ""); dsn != "" {
		return dsn, nil
	}
	file := params.StringOr("path", "")
	if memory, _ := params.Get("memory").AsBool(); memory || file == "" {
		file = ":memory:"
	}
	q, err := query(params)
	if err != nil {
		return "", errors.Trace(err)
	}
	if len(q) == 0 {
		return file, nil
	}
	return "file:" + file + "?" + q.Encode(), nil
}

// OpenSQLite opens a go-sqlite3 pool. An in-memory database is limited to
// a single connection so every statement sees the same database.
func OpenSQLite(params tree.Node) (*sql.DB, error) {
	dsn, err := SQLiteDSN(params)
	if err != nil {
		return nil, errors.Trace(err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || len(dsn) >= 13 && dsn[:13] == "file::memory:"
}

// ── SQL Server ────────────────────────────────────────────────────────────────

// SQLServerDSN builds a sqlserver:// URL. Recognized: host, port, user,
// password, dbname and driverOptions.
func SQLServerDSN(params tree.Node) (string, error) {
	if dsn := params.StringOr("dsn", ""); dsn != "" {
		return dsn, nil
	}
	port, err := portOf(params, 1433)
	if err != nil {
		return "", errors.Trace(err)
	}
	u := url.URL{
		Scheme: "sqlserver",
		Host:   net.JoinHostPort(params.StringOr("host", "localhost"), strconv.Itoa(port)),
	}
	if user := params.StringOr("user", ""); user != "" {
		u.User = url.UserPassword(user, params.StringOr("password", ""))
	}
	q, err := query(params)
	if err != nil {
		return "", errors.Trace(err)
	}
	if db := params.StringOr("dbname", ""); db != "" {
		q.Set("database", db)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// OpenSQLServer opens a pool through the go-mssqldb connector.
func OpenSQLServer(params tree.Node) (*sql.DB, error) {
	dsn, err := SQLServerDSN(params)
	if err != nil {
		return nil, errors.Trace(err)
	}
	connector, err := mssql.NewConnector(dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return sql.OpenDB(connector), nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

// portOf reads "port", which configurations give as a number, a numeric
// string or null.
func portOf(params tree.Node, def int) (int, error) {
	v := params.Get("port")
	if v.IsNull() {
		return def, nil
	}
	if i, ok := v.AsInt(); ok {
		return int(i), nil
	}
	s := v.Text()
	if s == "" {
		return def, nil
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NotValidf("port %q", s)
	}
	return p, nil
}

func query(params tree.Node) (url.Values, error) {
	opts, err := params.Get("driverOptions").StringMap()
	if err != nil {
		return nil, errors.NotValidf("driverOptions: %v", err)
	}
	q := url.Values{}
	for k, v := range opts {
		q.Set(k, v)
	}
	return q, nil
}

// Redact returns params with the password masked, for logs and
// diagnostics.
func Redact(params tree.Node) tree.Node {
	if !params.Has("password") || params.Get("password").IsNull() {
		return params
	}
	return params.With("password", tree.String("********"))
}

