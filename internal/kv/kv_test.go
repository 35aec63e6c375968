package kv

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, KeyUsers)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, KeyUsers, []byte(`{"a@b.c":{}}`)))
	got, err := store.Get(ctx, KeyUsers)
	require.NoError(t, err)
	assert.Equal(t, `{"a@b.c":{}}`, string(got))

	require.NoError(t, store.Set(ctx, KeyUsers, []byte(`{}`)))
	got, err = store.Get(ctx, KeyUsers)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))

	_, err = store.Get(ctx, KeyPlans)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	storeContract(t, store)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestSQLiteStoreFile(t *testing.T) {
	path := t.TempDir() + "/nested/lumina.db"
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), KeyHistory, []byte("[]")))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), KeyHistory)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test:")
	defer store.Close()

	storeContract(t, store)

	raw, err := mr.Get("test:" + KeyUsers)
	require.NoError(t, err)
	assert.Equal(t, `{}`, raw)
	assert.Zero(t, mr.TTL("test:"+KeyUsers))
}

func TestConnectRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

func TestMySQLStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewMySQLStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS kv_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Migrate(ctx))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_value FROM kv_entries WHERE entry_key = ?")).
		WithArgs(KeyPlans).
		WillReturnRows(sqlmock.NewRows([]string{"entry_value"}))
	_, err = store.Get(ctx, KeyPlans)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_entries (entry_key, entry_value)")).
		WithArgs(KeyPlans, []byte("[]")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.Set(ctx, KeyPlans, []byte("[]")))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT entry_value FROM kv_entries WHERE entry_key = ?")).
		WithArgs(KeyPlans).
		WillReturnRows(sqlmock.NewRows([]string{"entry_value"}).AddRow([]byte("[]")))
	got, err := store.Get(ctx, KeyPlans)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	mock.ExpectClose()
	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
