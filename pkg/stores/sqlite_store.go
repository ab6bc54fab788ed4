package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.opentelemetry.io/otel/attribute"

	"github.com/portfoliobot/projectstore/pkg/telemetry"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	schemaDownMigration = "migrations/000001_portfolio_schema.down.sql"
	migrationsTable     = "schema_migrations"
)

// SQLiteStore implements the Store interface using SQLite. It keeps no open
// connection between calls.
type SQLiteStore struct {
	path        string
	busyTimeout time.Duration
	tel         *telemetry.Telemetry
	logger      *telemetry.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	// Path is the database file location. Required.
	Path string

	// BusyTimeout bounds how long a statement waits on a locked database.
	BusyTimeout time.Duration

	// Telemetry is optional; without it operations are only timed.
	Telemetry *telemetry.Telemetry
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	logger := telemetry.NewNopLogger()
	if cfg.Telemetry != nil && cfg.Telemetry.Logger != nil {
		logger = cfg.Telemetry.Logger.NewComponentLogger("stores")
	}

	return &SQLiteStore{
		path:        cfg.Path,
		busyTimeout: cfg.BusyTimeout,
		tel:         cfg.Telemetry,
		logger:      logger,
	}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// open acquires a single-connection handle on the database file.
func (s *SQLiteStore) open(ctx context.Context) (*sql.DB, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", s.path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// instrument wraps fn in a span, a metrics sample and operation logging.
func (s *SQLiteStore) instrument(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	if s.tel == nil {
		ctx = s.logger.WithContext(ctx)
	}
	op := s.tel.StartOperation(ctx, operation, attrs...)
	if s.tel != nil {
		op.Logger = op.Logger.WithField("component", "stores")
	}

	err := fn(op.Ctx)
	if err != nil {
		class := errorClass(err)
		op.Metrics.RecordError(class)
		if op.Span != nil {
			op.Span.SetAttributes(telemetry.AttrErrorClass.String(class))
		}
	}
	op.End(err)
	return err
}

// run executes fn against a freshly opened database and closes it afterwards.
func (s *SQLiteStore) run(ctx context.Context, operation string, fn func(ctx context.Context, db *sql.DB) error, attrs ...attribute.KeyValue) error {
	return s.instrument(ctx, operation, func(ctx context.Context) error {
		db, err := s.open(ctx)
		if err != nil {
			return err
		}
		err = fn(ctx, db)
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close database: %w", cerr)
		}
		return err
	}, attrs...)
}

// inTx runs fn inside a transaction that is committed when fn succeeds.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateTables applies the embedded schema migration.
func (s *SQLiteStore) CreateTables(ctx context.Context) error {
	return s.run(ctx, "create_tables", func(_ context.Context, db *sql.DB) error {
		sourceDriver, err := iofs.New(migrationsFS, "migrations")
		if err != nil {
			return fmt.Errorf("failed to create migration source: %w", err)
		}

		driver, err := sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: migrationsTable})
		if err != nil {
			return fmt.Errorf("failed to create database driver: %w", err)
		}

		m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
		if err != nil {
			return fmt.Errorf("failed to create migration instance: %w", err)
		}

		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return ErrSchemaExists
			}
			return fmt.Errorf("failed to create tables: %w", classifyError(err))
		}
		return nil
	})
}

// ClearTables drops every table if present, including the migration record.
func (s *SQLiteStore) ClearTables(ctx context.Context) error {
	down, err := migrationsFS.ReadFile(schemaDownMigration)
	if err != nil {
		return fmt.Errorf("failed to read drop script: %w", err)
	}

	return s.run(ctx, "clear_tables", func(ctx context.Context, db *sql.DB) error {
		return inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(down)); err != nil {
				return fmt.Errorf("failed to drop tables: %w", classifyError(err))
			}
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+migrationsTable); err != nil {
				return fmt.Errorf("failed to drop migration table: %w", err)
			}
			return nil
		})
	})
}

// ResetDB drops, recreates and reseeds the schema. The three steps are not
// atomic: a failure part way leaves the database in whatever state the last
// successful step produced.
func (s *SQLiteStore) ResetDB(ctx context.Context) error {
	return s.instrument(ctx, "reset_db", func(ctx context.Context) error {
		if err := s.ClearTables(ctx); err != nil {
			return err
		}
		if err := s.CreateTables(ctx); err != nil {
			return err
		}
		if err := s.DefaultInsert(ctx); err != nil {
			return err
		}
		if s.tel != nil {
			s.tel.Metrics.RecordSchemaReset()
		}
		telemetry.FromContext(ctx).Warn("database reset to seed data")
		return nil
	})
}

// DefaultInsert seeds the skill and status vocabularies, skipping rows that
// already exist.
func (s *SQLiteStore) DefaultInsert(ctx context.Context) error {
	return s.run(ctx, "default_insert", func(ctx context.Context, db *sql.DB) error {
		return inTx(ctx, db, func(tx *sql.Tx) error {
			if err := insertVocabulary(ctx, tx, `INSERT OR IGNORE INTO skills (skill_name) VALUES (?)`, DefaultSkills); err != nil {
				return fmt.Errorf("failed to seed skills: %w", err)
			}
			if err := insertVocabulary(ctx, tx, `INSERT OR IGNORE INTO status (status_name) VALUES (?)`, DefaultStatuses); err != nil {
				return fmt.Errorf("failed to seed statuses: %w", err)
			}
			return nil
		})
	})
}

func insertVocabulary(ctx context.Context, tx *sql.Tx, query string, values []string) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return classifyError(err)
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, v); err != nil {
			return classifyError(err)
		}
	}
	return nil
}

// HealthCheck verifies the database file can be opened and queried.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.run(ctx, "health_check", func(ctx context.Context, db *sql.DB) error {
		var one int
		if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
		return nil
	})
}

// Backup writes a consistent copy of the database to dest with VACUUM INTO.
func (s *SQLiteStore) Backup(ctx context.Context, dest string) error {
	return s.run(ctx, "backup", func(ctx context.Context, db *sql.DB) error {
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%w: %s", ErrBackupExists, dest)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat backup destination: %w", err)
		}
		if dir := filepath.Dir(dest); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("failed to create backup directory: %w", err)
			}
		}
		if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
			return fmt.Errorf("failed to back up database: %w", err)
		}
		return nil
	})
}

// Restore replaces the database file with src after checking its integrity.
func (s *SQLiteStore) Restore(ctx context.Context, src string) error {
	return s.instrument(ctx, "restore", func(ctx context.Context) error {
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("failed to stat restore source: %w", err)
		}
		if err := checkIntegrity(ctx, src); err != nil {
			return err
		}
		return replaceFile(src, s.path)
	})
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open restore source: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptDatabase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("%w: %s", ErrCorruptDatabase, result)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptDatabase, err)
	}
	return nil
}

// replaceFile copies src next to dst and renames it into place.
func replaceFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open restore source: %w", err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dst)+".restore-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to copy database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush database copy: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return nil
}
