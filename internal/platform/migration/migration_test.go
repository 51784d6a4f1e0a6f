package migration

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/require"
)

var _ migrate.Logger = (*Logger)(nil)

func TestLoggerWritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)), true)

	l.Printf("applied %d/u %s", 1, "init")
	require.True(t, l.Verbose())
	require.Contains(t, buf.String(), "db migration: applied 1/u init")
}

func TestDownRejectsNonPositiveSteps(t *testing.T) {
	_, err := Down("postgres://localhost/unistock", "migrations", 0, slog.Default())
	require.ErrorContains(t, err, "steps must be positive")
}

func TestUpFailsWithoutSource(t *testing.T) {
	_, err := Up("postgres://localhost:1/unistock?sslmode=disable", t.TempDir()+"/missing", slog.Default())
	require.Error(t, err)
}
