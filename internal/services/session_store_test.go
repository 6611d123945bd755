package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	stored := Session{
		ID:                "sess-1",
		Mode:              ModePinInput,
		ActiveCardNumber:  "4000123412341234",
		FailedPINAttempts: 1,
		Buffer:            "12",
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	t.Run("missing key starts at welcome", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("atm:session:t1").RedisNil()

		session, err := NewRedisSessionStore(client).Load(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, ModeWelcome, session.Mode)
		assert.NotEmpty(t, session.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("load decodes stored session", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("atm:session:t1").SetVal(string(data))

		session, err := NewRedisSessionStore(client).Load(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, stored, session)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt value", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("atm:session:t1").SetVal("{not json")

		_, err := NewRedisSessionStore(client).Load(ctx, "t1")
		assert.ErrorContains(t, err, "decode session")
		assert.ErrorIs(t, err, ErrSessionCorrupt)
	})

	t.Run("redis failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("atm:session:t1").SetErr(errors.New("connection refused"))

		_, err := NewRedisSessionStore(client).Load(ctx, "t1")
		assert.ErrorContains(t, err, "load session")
	})

	t.Run("save without expiry", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectSet("atm:session:t1", data, 0).SetVal("OK")

		require.NoError(t, NewRedisSessionStore(client).Save(ctx, "t1", stored))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("save failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectSet("atm:session:t1", data, 0).SetErr(errors.New("read only replica"))

		err := NewRedisSessionStore(client).Save(ctx, "t1", stored)
		assert.ErrorContains(t, err, "save session")
	})

	t.Run("delete", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectDel("atm:session:t1").SetVal(1)

		require.NoError(t, NewRedisSessionStore(client).Delete(ctx, "t1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	fresh, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, ModeWelcome, fresh.Mode)

	fresh.Mode = ModeCardInput
	fresh.Buffer = "4000"
	require.NoError(t, store.Save(ctx, "t1", fresh))

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, fresh, loaded)

	other, err := store.Load(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, ModeWelcome, other.Mode)

	require.NoError(t, store.Delete(ctx, "t1"))
	reset, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, ModeWelcome, reset.Mode)
	assert.NotEqual(t, fresh.ID, reset.ID)
}
