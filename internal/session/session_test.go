package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bikemetro/models"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedisStore() (*RedisStore, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return NewRedisStore(db, "@bikemetro"), mock
}

func testProfile() *models.Profile {
	return &models.Profile{ID: 7, Nickname: "ciclista", Name: "Ana Rojas", Email: "ana@example.com"}
}

func TestNewKeys(t *testing.T) {
	keys := NewKeys("")

	assert.Equal(t, "@bikemetro_token", keys.Token)
	assert.Equal(t, "@bikemetro_refresh_token", keys.Refresh)
	assert.Equal(t, "@bikemetro_user", keys.User)
	assert.Len(t, keys.All(), 3)
}

func TestRedisStore_Save(t *testing.T) {
	store, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	user := testProfile()
	raw, err := json.Marshal(user)
	require.NoError(t, err)

	mock.ExpectMSet(
		"@bikemetro_token", "access-1",
		"@bikemetro_refresh_token", "refresh-1",
		"@bikemetro_user", string(raw),
	).SetVal("OK")

	err = store.Save(context.Background(), Session{AccessToken: "access-1", RefreshToken: "refresh-1", User: user})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Load(t *testing.T) {
	store, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	raw, err := json.Marshal(testProfile())
	require.NoError(t, err)

	mock.ExpectMGet(store.Keys.All()...).SetVal([]interface{}{"access-1", "refresh-1", string(raw)})

	sess, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "access-1", sess.AccessToken)
	assert.Equal(t, "refresh-1", sess.RefreshToken)
	require.NotNil(t, sess.User)
	assert.Equal(t, "ciclista", sess.User.Nickname)
	assert.True(t, sess.Authenticated())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_LoadEmpty(t *testing.T) {
	store, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectMGet(store.Keys.All()...).SetVal([]interface{}{nil, nil, nil})

	sess, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Nil(t, sess.User)
}

func TestRedisStore_LoadCorruptUser(t *testing.T) {
	store, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectMGet(store.Keys.All()...).SetVal([]interface{}{"access-1", nil, "{not json"})

	_, err := store.Load(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "session.Load")
}

func TestRedisStore_SetAccessTokenAndRefresh(t *testing.T) {
	store, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectSet("@bikemetro_token", "access-2", 0).SetVal("OK")
	mock.ExpectGet("@bikemetro_refresh_token").SetVal("refresh-1")
	mock.ExpectGet("@bikemetro_refresh_token").RedisNil()

	require.NoError(t, store.SetAccessToken(context.Background(), "access-2"))

	token, err := store.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", token)

	token, err = store.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Clear(t *testing.T) {
	store, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectDel(store.Keys.All()...).SetVal(3)

	assert.NoError(t, store.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ClearError(t *testing.T) {
	store, mock := setupTestRedisStore()
	defer mock.ClearExpect()

	mock.ExpectDel(store.Keys.All()...).SetErr(errors.New("connection refused"))

	err := store.Clear(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())

	user := testProfile()
	require.NoError(t, store.Save(ctx, Session{AccessToken: "a", RefreshToken: "r", User: user}))

	// Mutating the caller's copy does not leak into the store.
	user.Nickname = "changed"

	require.NoError(t, store.SetAccessToken(ctx, "b"))
	sess, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", sess.AccessToken)
	assert.Equal(t, "ciclista", sess.User.Nickname)

	refresh, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r", refresh)

	require.NoError(t, store.Clear(ctx))
	sess, _ = store.Load(ctx)
	assert.Equal(t, Session{}, sess)
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 42,
		"exp":     exp.Unix(),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)

	claims, err := ParseClaims(token)

	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.True(t, exp.Equal(claims.ExpiresAt))
}

func TestParseClaims_Malformed(t *testing.T) {
	_, err := ParseClaims("not-a-token")

	assert.Error(t, err)
}
