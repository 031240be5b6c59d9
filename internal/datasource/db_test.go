package datasource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createDatasourceTable = `
CREATE TABLE t_ds_datasource (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	type INTEGER NOT NULL,
	connection_params TEXT
)`

func seedDatasources(t *testing.T, db *sqlx.DB) {
	t.Helper()
	db.MustExec(createDatasourceTable)
	db.MustExec(`INSERT INTO t_ds_datasource (id, name, type) VALUES (1, 'ds_mysql', 0)`)
	db.MustExec(`INSERT INTO t_ds_datasource (id, name, type) VALUES (2, 'ds_pg', 1)`)
	db.MustExec(`INSERT INTO t_ds_datasource (id, name, type) VALUES (3, 'ds_weird', 99)`)
}

func TestDBLookup(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()
	seedDatasources(t, db)

	lookup, err := NewDBLookupFromDB(db, "")
	require.NoError(t, err)
	ctx := context.Background()

	rec, err := lookup.Lookup(ctx, "ds_pg")
	require.NoError(t, err)
	assert.Equal(t, Record{ID: 2, Name: "ds_pg", Type: "POSTGRESQL"}, rec)

	_, err = lookup.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lookup.Lookup(ctx, "ds_weird")
	assert.ErrorContains(t, err, "unknown type code 99")
}

func TestNewDBLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	seed, err := sqlx.Open("sqlite3", path)
	require.NoError(t, err)
	seedDatasources(t, seed)
	require.NoError(t, seed.Close())

	lookup, err := NewDBLookup(context.Background(), DBConfig{Driver: "sqlite3", DSN: path, MaxOpenConns: 2})
	require.NoError(t, err)
	defer lookup.Close()

	rec, err := lookup.Lookup(context.Background(), "ds_mysql")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, "MYSQL", rec.Type)
}

func TestDBLookupRejectsBadTable(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewDBLookupFromDB(db, "t_ds_datasource; DROP TABLE x")
	assert.Error(t, err)

	_, err = NewDBLookup(context.Background(), DBConfig{Driver: "sqlite3"})
	assert.ErrorContains(t, err, "dsn is required")
}

func TestTypeName(t *testing.T) {
	name, ok := TypeName(0)
	assert.True(t, ok)
	assert.Equal(t, "MYSQL", name)

	name, ok = TypeName(10)
	assert.True(t, ok)
	assert.Equal(t, "REDSHIFT", name)

	_, ok = TypeName(-1)
	assert.False(t, ok)
}
