package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Exec(context.Background(), db, []string{
		`CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v INTEGER NOT NULL)`,
	}))
	return db
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	require.NoError(t, WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO kv (k, v) VALUES (?, ?)`), "a", 1)
		return err
	}))

	boom := errors.New("boom")
	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('b', 2)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM kv`))
	assert.Equal(t, 1, n)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mp.db")
	db, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: path})
	require.NoError(t, err)
	assert.NoError(t, db.Close())
	assert.FileExists(t, path)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestSQLiteUsesQuestionBind(t *testing.T) {
	assert.Equal(t, sqlx.QUESTION, sqlx.BindType(DriverSQLite))
	assert.Equal(t, sqlx.DOLLAR, sqlx.BindType(DriverPostgres))
}
