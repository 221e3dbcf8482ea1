// Package session tracks active refresh-credential sessions in two stores: a
// redis cache for low-latency existence checks and a durable table that is
// the source of truth whenever the cache misses.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/identity/internal/models"
	"github.com/mx-space/identity/internal/pkg/tokens"
	"go.uber.org/zap"
)

const DefaultTTL = 7 * 24 * time.Hour

// defaultCacheTimeout bounds every cache call; a slow cache must degrade to
// the durable read, never hang the request.
const defaultCacheTimeout = 500 * time.Millisecond

var ErrSessionNotFound = errors.New("session not found")

// DeviceMeta captures request metadata stored with each session.
type DeviceMeta struct {
	IP          string
	UA          string
	DeviceClass string
}

// Store is the durable side. Rows are keyed (userID, refreshDigest); revoked
// rows are kept for the audit trail.
type Store interface {
	Insert(ctx context.Context, s *models.UserSession) error
	FindActive(ctx context.Context, userID, digest string) (*models.UserSession, error)
	MarkRevoked(ctx context.Context, userID, digest string) error
	ListActive(ctx context.Context, userID string) ([]models.UserSession, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Cache is the fast side. Get returns "" on miss.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Manager coordinates the two stores.
type Manager struct {
	store        Store
	cache        Cache
	ttl          time.Duration
	cacheTimeout time.Duration
	logger       *zap.Logger
}

func NewManager(store Store, cache Cache, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:        store,
		cache:        cache,
		ttl:          ttl,
		cacheTimeout: defaultCacheTimeout,
		logger:       logger.Named("SessionManager"),
	}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

func cacheKey(userID, digest string) string {
	return "identity:session:" + userID + ":" + digest
}

// Create persists a new session. The durable write must succeed before the
// caller may hand out credentials; a cache write failure only costs the fast
// path and is retried once.
func (m *Manager) Create(ctx context.Context, userID, tenantID, refreshSecret string, meta DeviceMeta) (*models.UserSession, error) {
	digest := tokens.Digest(refreshSecret)
	s := &models.UserSession{
		UserID:        userID,
		TenantID:      tenantID,
		RefreshDigest: digest,
		IP:            meta.IP,
		UA:            meta.UA,
		DeviceClass:   meta.DeviceClass,
		ExpiresAt:     time.Now().Add(m.ttl),
	}
	if err := m.store.Insert(ctx, s); err != nil {
		return nil, err
	}

	if err := m.cacheSet(ctx, cacheKey(userID, digest), m.ttl); err != nil {
		m.logger.Warn("session cache write failed, retrying once", zap.Error(err))
		if err := m.cacheSet(ctx, cacheKey(userID, digest), m.ttl); err != nil {
			// Durable row is authoritative; Exists backfills the cache later.
			m.logger.Warn("session cache backfill deferred to read-through", zap.Error(err))
		}
	}
	return s, nil
}

// Exists reports whether the session for refreshSecret is still active.
// Cache hit answers immediately; a miss (or cache failure) falls through to
// the durable store and, when the row is active, repopulates the cache with
// the remaining lifetime. Without the repopulation a cache eviction would
// permanently log out a legitimate session.
func (m *Manager) Exists(ctx context.Context, userID, refreshSecret string) (bool, error) {
	digest := tokens.Digest(refreshSecret)
	key := cacheKey(userID, digest)

	val, err := m.cacheGet(ctx, key)
	if err != nil {
		m.logger.Warn("session cache read failed, falling back to durable store", zap.Error(err))
	} else if val != "" {
		return true, nil
	}

	s, err := m.store.FindActive(ctx, userID, digest)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if !s.Active(time.Now()) {
		return false, nil
	}

	if remaining := time.Until(s.ExpiresAt); remaining > 0 {
		if err := m.cacheSet(ctx, key, remaining); err != nil {
			m.logger.Warn("session cache repopulation failed", zap.Error(err))
		}
	}
	return true, nil
}

// Revoke marks the durable row revoked and drops the cache entry. The row is
// kept for the audit trail.
func (m *Manager) Revoke(ctx context.Context, userID, refreshSecret string) error {
	digest := tokens.Digest(refreshSecret)
	if err := m.store.MarkRevoked(ctx, userID, digest); err != nil {
		return err
	}
	if err := m.cacheDel(ctx, cacheKey(userID, digest)); err != nil {
		m.logger.Warn("session cache delete failed", zap.Error(err))
	}
	return nil
}

// RevokeAll revokes every active session of a user, e.g. after a password
// reset. Failures are per row: a session we could not revoke is logged and
// skipped rather than aborting the rest.
func (m *Manager) RevokeAll(ctx context.Context, userID string) (int, error) {
	sessions, err := m.store.ListActive(ctx, userID)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for i := range sessions {
		s := &sessions[i]
		if err := m.store.MarkRevoked(ctx, userID, s.RefreshDigest); err != nil {
			m.logger.Warn("revoke-all: durable revoke failed for one session",
				zap.String("session_id", s.ID), zap.Error(err))
			continue
		}
		revoked++
		if err := m.cacheDel(ctx, cacheKey(userID, s.RefreshDigest)); err != nil {
			m.logger.Warn("revoke-all: cache delete failed for one session",
				zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	return revoked, nil
}

// ListActive returns the user's active sessions (device management view).
func (m *Manager) ListActive(ctx context.Context, userID string) ([]models.UserSession, error) {
	return m.store.ListActive(ctx, userID)
}

// SweepExpired removes durable rows past their expiry. Cache entries expire
// by TTL on their own.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, time.Now())
}

func (m *Manager) cacheSet(ctx context.Context, key string, ttl time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, m.cacheTimeout)
	defer cancel()
	return m.cache.Set(cctx, key, "1", ttl)
}

func (m *Manager) cacheGet(ctx context.Context, key string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, m.cacheTimeout)
	defer cancel()
	return m.cache.Get(cctx, key)
}

func (m *Manager) cacheDel(ctx context.Context, key string) error {
	cctx, cancel := context.WithTimeout(ctx, m.cacheTimeout)
	defer cancel()
	return m.cache.Del(cctx, key)
}
