package kvstore

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgres creates a Postgres store backed by pgxmock for unit testing.
func newMockPostgres(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgres_Get_Missing(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT value FROM kv WHERE key = \$1`).
		WithArgs("dqc.rules.v1").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := s.Get(context.Background(), "dqc.rules.v1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get_Found(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT value FROM kv WHERE key = \$1`).
		WithArgs("dqc.actions.v1").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`[]`))

	v, ok, err := s.Get(context.Background(), "dqc.actions.v1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Set_Upserts(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO kv`).
		WithArgs("dqc.scans.v1", `[{"id":"s1"}]`, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Set(context.Background(), "dqc.scans.v1", `[{"id":"s1"}]`)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`DELETE FROM kv WHERE key = \$1`).
		WithArgs("dqc.failures.v1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := s.Delete(context.Background(), "dqc.failures.v1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemory_RoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v1"))
	require.NoError(t, m.Set(ctx, "k", "v2"))

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)

	// Deleting an absent key is a no-op.
	require.NoError(t, m.Delete(ctx, "k"))
}
