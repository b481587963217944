package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	// Postgres driver, registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the persistent question store plus the event tables that hang
// off it. It is the single source of truth for inventory counts.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string
	seq     *sequenceCounter
}

// Open connects to the database, applies driver specific settings and
// migrates the schema. driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*Store, error) {
	var (
		db          *sql.DB
		dialectName string
		err         error
	)

	switch driver {
	case DriverSQLite, "":
		dialectName = dialect.SQLite
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite database")
		}
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, eris.Wrap(err, "apply pragmas")
		}
	case DriverPostgres:
		dialectName = dialect.Postgres
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres database")
		}
	default:
		return nil, eris.Errorf("unsupported store driver %q", driver)
	}

	s := &Store{
		db:      db,
		drv:     entsql.OpenDB(dialectName, db),
		dialect: dialectName,
	}

	ctx := context.Background()
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "auto-migrate")
	}

	s.seq, err = newSequenceCounter(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// OpenMemory opens a private in-memory SQLite store. Each call gets its own
// database.
func OpenMemory() (*Store, error) {
	return Open(DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect name in use.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Questions returns the question repository.
func (s *Store) Questions() QuestionRepo {
	return &questionRepo{db: s.db, dialect: s.dialect}
}

// EventRepo returns the event repository.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{db: s.db, dialect: s.dialect, seq: s.seq}
}

// builder returns a dialect aware SQL builder.
func builder(d string) *entsql.DialectBuilder {
	return entsql.Dialect(d)
}

// sqliteDSN makes sure per-connection pragmas are set on every pooled
// connection, not just the first one.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// applyPragmas configures SQLite for a single writer with concurrent readers.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return eris.Wrap(err, p)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite database file path in priority order:
// 1. QUOTAGEN_DB environment variable
// 2. $XDG_DATA_HOME/quotagen/quotagen.db
// 3. ~/.local/share/quotagen/quotagen.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("QUOTAGEN_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", eris.Wrap(err, "resolve home dir")
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "quotagen", "quotagen.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
