package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the differences between the supported SQL backends
type Dialect struct {
	Name       string
	DriverName string
	// LockClause is appended to the press-run lookup to take a row lock
	LockClause string
	// MaxOpenConns of 0 leaves the pool unbounded
	MaxOpenConns int
	positional   bool
}

var (
	// SQLite uses the pure-Go modernc driver. A single connection serializes
	// writers, which is what stands in for row locks there.
	SQLite = Dialect{Name: "sqlite", DriverName: "sqlite", MaxOpenConns: 1}
	// Postgres uses pgx through database/sql and locks the press-run row.
	Postgres = Dialect{Name: "postgres", DriverName: "pgx", LockClause: " FOR UPDATE", positional: true}
)

// DialectByName resolves sqlite or postgres (alias pgx)
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s (expected: sqlite or postgres)", name)
	}
}

// Rebind rewrites ? placeholders into $n for positional dialects
func (d Dialect) Rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a primary key or unique constraint failure
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// extended result codes disabled
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
