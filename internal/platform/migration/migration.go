// Package migration applies the SQL files under migrations/ with golang-migrate.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file:// source
)

// Up applies every pending migration in dir against dsn. It reports the
// resulting schema version; no pending migrations is not an error.
func Up(dsn, dir string, logger *slog.Logger) (uint, error) {
	m, err := open(dsn, dir, logger)
	if err != nil {
		return 0, err
	}
	defer closeMigrate(m, logger)

	logger.Info("running database migrations", slog.String("dir", dir))
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return 0, fmt.Errorf("migrate up: %w", err)
		}
		logger.Info("database migration: no change needed")
	}
	return version(m)
}

// Down rolls back the given number of migrations.
func Down(dsn, dir string, steps int, logger *slog.Logger) (uint, error) {
	if steps <= 0 {
		return 0, errors.New("migrate down: steps must be positive")
	}
	m, err := open(dsn, dir, logger)
	if err != nil {
		return 0, err
	}
	defer closeMigrate(m, logger)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate down: %w", err)
	}
	return version(m)
}

func open(dsn, dir string, logger *slog.Logger) (*migrate.Migrate, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir: %w", err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), dsn)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	m.Log = NewLogger(logger, false)
	return m, nil
}

func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}

func closeMigrate(m *migrate.Migrate, logger *slog.Logger) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.Warn("close migrate", slog.Any("error", err))
	}
}

// Logger adapts slog to the migrate.Logger interface.
type Logger struct {
	logger  *slog.Logger
	verbose bool
}

// NewLogger wraps logger. A nil logger falls back to slog.Default.
func NewLogger(logger *slog.Logger, verbose bool) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger, verbose: verbose}
}

// Printf implements migrate.Logger.
func (l *Logger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf("db migration: "+format, v...))
}

// Verbose implements migrate.Logger.
func (l *Logger) Verbose() bool {
	return l.verbose
}
