package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/identity/internal/models"
	redisc "github.com/mx-space/identity/internal/pkg/redis"
	"github.com/mx-space/identity/internal/pkg/tokens"
)

// fakeStore is an in-memory durable store keyed (userID, digest).
type fakeStore struct {
	rows      map[string]*models.UserSession
	insertErr error
	revokeErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*models.UserSession{}, revokeErr: map[string]error{}}
}

func key(userID, digest string) string { return userID + "|" + digest }

func (f *fakeStore) Insert(ctx context.Context, s *models.UserSession) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *s
	f.rows[key(s.UserID, s.RefreshDigest)] = &cp
	return nil
}

func (f *fakeStore) FindActive(ctx context.Context, userID, digest string) (*models.UserSession, error) {
	row, ok := f.rows[key(userID, digest)]
	if !ok || !row.Active(time.Now()) {
		return nil, ErrSessionNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeStore) MarkRevoked(ctx context.Context, userID, digest string) error {
	if err := f.revokeErr[key(userID, digest)]; err != nil {
		return err
	}
	row, ok := f.rows[key(userID, digest)]
	if !ok || row.RevokedAt != nil {
		return ErrSessionNotFound
	}
	now := time.Now()
	row.RevokedAt = &now
	return nil
}

func (f *fakeStore) ListActive(ctx context.Context, userID string) ([]models.UserSession, error) {
	var out []models.UserSession
	for _, row := range f.rows {
		if row.UserID == userID && row.Active(time.Now()) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for k, row := range f.rows {
		if row.ExpiresAt.Before(before) {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

type failingCache struct{}

func (failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("cache down")
}
func (failingCache) Del(ctx context.Context, keys ...string) error {
	return errors.New("cache down")
}

func newTestManager(t *testing.T) (*Manager, *fakeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redisc.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	store := newFakeStore()
	return NewManager(store, cache, time.Hour, nil), store, mr
}

func TestCreateThenExists(t *testing.T) {
	m, _, mr := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "u-1", "t-1", "refresh-secret", DeviceMeta{IP: "1.2.3.4", UA: "go-test"})
	require.NoError(t, err)
	assert.Equal(t, tokens.Digest("refresh-secret"), s.RefreshDigest)

	ok, err := m.Exists(ctx, "u-1", "refresh-secret")
	require.NoError(t, err)
	assert.True(t, ok)

	// The cache entry must have been written with a TTL.
	assert.True(t, mr.Exists(cacheKey("u-1", s.RefreshDigest)))
	assert.Greater(t, mr.TTL(cacheKey("u-1", s.RefreshDigest)), time.Duration(0))

	ok, err = m.Exists(ctx, "u-1", "wrong-secret")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateFailsWhenDurableWriteFails(t *testing.T) {
	m, store, mr := newTestManager(t)
	store.insertErr = errors.New("mysql down")

	_, err := m.Create(context.Background(), "u-1", "t-1", "refresh-secret", DeviceMeta{})
	require.Error(t, err)
	assert.False(t, mr.Exists(cacheKey("u-1", tokens.Digest("refresh-secret"))))
}

func TestCreateSurvivesCacheFailure(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, failingCache{}, time.Hour, nil)

	_, err := m.Create(context.Background(), "u-1", "t-1", "refresh-secret", DeviceMeta{})
	require.NoError(t, err, "durable row is authoritative; cache write failure must not fail the login")
}

func TestExistsRepopulatesCacheAfterEviction(t *testing.T) {
	m, _, mr := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "u-1", "t-1", "refresh-secret", DeviceMeta{})
	require.NoError(t, err)

	// Simulate eviction: drop only the cache entry, keep the durable row.
	mr.Del(cacheKey("u-1", s.RefreshDigest))

	ok, err := m.Exists(ctx, "u-1", "refresh-secret")
	require.NoError(t, err)
	assert.True(t, ok)

	// Read-through must have restored the entry.
	assert.True(t, mr.Exists(cacheKey("u-1", s.RefreshDigest)))
}

func TestExistsFallsBackWhenCacheDown(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, failingCache{}, time.Hour, nil)
	ctx := context.Background()

	_, err := m.Create(ctx, "u-1", "t-1", "refresh-secret", DeviceMeta{})
	require.NoError(t, err)

	ok, err := m.Exists(ctx, "u-1", "refresh-secret")
	require.NoError(t, err)
	assert.True(t, ok, "a cache failure must never read as 'session absent'")
}

func TestRevoke(t *testing.T) {
	m, store, mr := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "u-1", "t-1", "refresh-secret", DeviceMeta{})
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, "u-1", "refresh-secret"))

	// Well before the cache TTL would have expired the entry.
	ok, err := m.Exists(ctx, "u-1", "refresh-secret")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(cacheKey("u-1", s.RefreshDigest)))

	// Row stays for the audit trail, marked revoked.
	row := store.rows[key("u-1", s.RefreshDigest)]
	require.NotNil(t, row)
	assert.NotNil(t, row.RevokedAt)

	assert.ErrorIs(t, m.Revoke(ctx, "u-1", "refresh-secret"), ErrSessionNotFound)
}

func TestRevokeAll(t *testing.T) {
	m, _, mr := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "u-1", "t-1", "secret-a", DeviceMeta{})
	require.NoError(t, err)
	_, err = m.Create(ctx, "u-1", "t-1", "secret-b", DeviceMeta{})
	require.NoError(t, err)
	_, err = m.Create(ctx, "u-2", "t-1", "secret-c", DeviceMeta{})
	require.NoError(t, err)

	n, err := m.RevokeAll(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, secret := range []string{"secret-a", "secret-b"} {
		ok, err := m.Exists(ctx, "u-1", secret)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, mr.Exists(cacheKey("u-1", tokens.Digest(secret))))
	}

	// Other users keep their sessions.
	ok, err := m.Exists(ctx, "u-2", "secret-c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRevokeAllSkipsFailingRow(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "u-1", "t-1", "secret-a", DeviceMeta{})
	require.NoError(t, err)
	_, err = m.Create(ctx, "u-1", "t-1", "secret-b", DeviceMeta{})
	require.NoError(t, err)

	store.revokeErr[key("u-1", tokens.Digest("secret-a"))] = errors.New("row lock timeout")

	n, err := m.RevokeAll(ctx, "u-1")
	require.NoError(t, err, "partial failure must not abort the sweep")
	assert.Equal(t, 1, n)

	ok, err := m.Exists(ctx, "u-1", "secret-b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepExpired(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "u-1", "t-1", "live", DeviceMeta{})
	require.NoError(t, err)
	store.rows[key("u-1", tokens.Digest("dead"))] = &models.UserSession{
		UserID:        "u-1",
		RefreshDigest: tokens.Digest("dead"),
		ExpiresAt:     time.Now().Add(-time.Hour),
	}

	n, err := m.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := m.Exists(ctx, "u-1", "live")
	require.NoError(t, err)
	assert.True(t, ok)
}
