package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finora/internal/core"
)

var (
	// ErrNotFound is returned for missing rows and for rows owned by another user.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a row changed between read and write.
	ErrConflict = errors.New("concurrent update")
	// ErrCategoryNotFound rejects a transaction pointing at a category the
	// owner cannot see.
	ErrCategoryNotFound = errors.New("category not found")
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) Valid() bool { return d == SQLite || d == Postgres }

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// timestampLayout is fixed width so TEXT columns sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries runs the statements in *.sql.go against a DBTX. Statements are
// written with ? placeholders and rebound for postgres.
type Queries struct {
	db      DBTX
	dialect Dialect
	now     func() time.Time
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect, now: time.Now}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, dialect: q.dialect, now: q.now}
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

func (q *Queries) rebind(query string) string {
	if q.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// forUpdate locks the selected row on postgres. SQLite serialises writers
// on its own.
func (q *Queries) forUpdate() string {
	if q.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

func (q *Queries) timestamp() time.Time {
	return q.now().UTC().Truncate(time.Microsecond)
}

func (q *Queries) timeArg(t time.Time) any {
	if q.dialect == Postgres {
		return t
	}
	return t.UTC().Format(timestampLayout)
}

func (q *Queries) nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return q.timeArg(*t)
}

func (q *Queries) dateArg(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	if q.dialect == Postgres {
		return d.Time
	}
	return d.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// dbDate scans DATE (postgres) and TEXT (sqlite) columns. NULL is the zero date.
type dbDate struct{ core.Date }

func (d *dbDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Date = core.Date{}
		return nil
	case time.Time:
		d.Date = core.DateOf(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

func (d *dbDate) parse(s string) error {
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	parsed, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	d.Date = parsed
	return nil
}

// dbTime scans TIMESTAMPTZ (postgres) and TEXT (sqlite) columns.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("scan timestamp: unsupported type %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", time.DateTime} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("scan timestamp %q: unrecognised format", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
