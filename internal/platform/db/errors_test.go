package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "vouchers_unit_number_key"})

	require.True(t, IsUniqueViolation(err, ""))
	require.True(t, IsUniqueViolation(err, "vouchers_unit_number_key"))
	require.False(t, IsUniqueViolation(err, "asset_items_unit_number_key"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	require.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestIsSerializationFailure(t *testing.T) {
	require.True(t, IsSerializationFailure(fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"})))
	require.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40P01"}))
	require.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsSerializationFailure(errors.New("boom")))
}

func TestClassifyWrapsSerializationFailure(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}

	err := classify(fmt.Errorf("platform/db: commit tx: %w", pgErr))
	require.ErrorIs(t, err, ErrSerialization)
	var got *pgconn.PgError
	require.ErrorAs(t, err, &got)
	require.Equal(t, "40001", got.Code)

	require.Equal(t, err, classify(err))

	other := errors.New("boom")
	require.Equal(t, other, classify(other))
	require.NotErrorIs(t, classify(&pgconn.PgError{Code: "23505"}), ErrSerialization)
}
