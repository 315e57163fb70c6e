// Package migrations wires golang-migrate execution for the connector's
// persistence layer.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migrations loader
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	dbmigrations "github.com/tradeforge/poloniex-connector/db/migrations"
)

var errNotDirectory = errors.New("migrations path must be a directory")

// Apply ensures the migrations located at migrationsDir are applied to the
// Postgres instance reachable via dsn. An empty migrationsDir falls back to
// the migrations embedded in the binary. A nil logger disables informational
// logging.
func Apply(ctx context.Context, dsn, migrationsDir string, logger *log.Logger) error {
	m, closeFn, err := open(ctx, dsn, migrationsDir, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			if logger != nil {
				logger.Printf("database migrations up-to-date")
			}
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	if logger != nil {
		logger.Printf("database migrations applied successfully")
	}
	return nil
}

// Rollback reverts the given number of migration steps.
func Rollback(ctx context.Context, dsn, migrationsDir string, steps int, logger *log.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	m, closeFn, err := open(ctx, dsn, migrationsDir, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			if logger != nil {
				logger.Printf("database migrations: nothing to roll back")
			}
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}
	if logger != nil {
		logger.Printf("database migrations rolled back %d step(s)", steps)
	}
	return nil
}

func open(ctx context.Context, dsn, migrationsDir string, logger *log.Logger) (*migrate.Migrate, func(), error) {
	resolvedDir := ""
	if strings.TrimSpace(migrationsDir) != "" {
		var err error
		resolvedDir, err = resolveDir(migrationsDir)
		if err != nil {
			return nil, nil, err
		}
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open migrations connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		if cerr := db.Close(); cerr != nil && logger != nil {
			logger.Printf("database migrations close: %v", cerr)
		}
		return nil, nil, fmt.Errorf("ping migrations database: %w", err)
	}

	var driverConfig pgxv5.Config
	driver, err := pgxv5.WithInstance(db, &driverConfig)
	if err != nil {
		if cerr := db.Close(); cerr != nil && logger != nil {
			logger.Printf("database migrations close: %v", cerr)
		}
		return nil, nil, fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	var m *migrate.Migrate
	if resolvedDir == "" {
		src, srcErr := iofs.New(dbmigrations.Files, ".")
		if srcErr != nil {
			return nil, nil, fmt.Errorf("open embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "pgx5", driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance(fileURL(resolvedDir), "pgx5", driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("initialise migrate instance: %w", err)
	}

	if logger != nil {
		if resolvedDir == "" {
			logger.Printf("running database migrations: source=embedded")
		} else {
			logger.Printf("running database migrations: path=%s", resolvedDir)
		}
	}

	closeFn := func() {
		sourceErr, dbErr := m.Close()
		if logger == nil {
			return
		}
		if sourceErr != nil {
			logger.Printf("database migrations source close: %v", sourceErr)
		}
		if dbErr != nil {
			logger.Printf("database migrations db close: %v", dbErr)
		}
	}
	return m, closeFn, nil
}

func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(strings.TrimSpace(dir))
	if err != nil {
		return "", fmt.Errorf("resolve migrations path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("migrations directory: %w", err)
		}
		return "", fmt.Errorf("stat migrations directory: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("migrations directory: %w", errNotDirectory)
	}

	return abs, nil
}

func fileURL(path string) string {
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := new(url.URL)
	u.Scheme = "file"
	u.Path = slashed
	return u.String()
}
