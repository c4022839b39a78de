package sqlstore

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Dialect holds what differs between the supported databases. Queries are
// written with '?' placeholders and rebound per dialect.
type Dialect struct {
	name       string
	driverName string
	numbered   bool   // $1, $2, ... placeholders
	lockClause string // appended to the stream row query in write transactions
	configure  func(db *sql.DB)
	uniqueErr  func(err error) bool
}

var (
	// SQLite uses modernc.org/sqlite. All access goes through one
	// connection, which serializes writers.
	SQLite = &Dialect{
		name:       "sqlite",
		driverName: "sqlite",
		configure:  func(db *sql.DB) { db.SetMaxOpenConns(1) },
		uniqueErr:  isSQLiteUniqueViolation,
	}

	// Postgres uses pgx through database/sql. Writers lock the stream row.
	Postgres = &Dialect{
		name:       "postgres",
		driverName: "pgx",
		numbered:   true,
		lockClause: " FOR UPDATE",
		configure:  func(*sql.DB) {},
		uniqueErr:  isPgUniqueViolation,
	}
)

func (d *Dialect) String() string { return d.name }

// ParseDialect resolves a dialect by name.
func ParseDialect(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return nil, errors.New("sqlstore: unknown dialect " + strconv.Quote(name))
	}
}

// SQLiteDSN returns a DSN for a database file with the pragmas the store
// relies on.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
}

func (d *Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var (
		sb strings.Builder
		n  int
	)
	sb.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
