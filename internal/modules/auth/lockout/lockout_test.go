package lockout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/identity/internal/models"
	"github.com/mx-space/identity/internal/modules/auth/user"
)

// fakeDirectory implements the counter/lock surface of user.Directory with
// store-level increment semantics.
type fakeDirectory struct {
	user.Directory
	mu       sync.Mutex
	attempts map[string]int
	locked   map[string]time.Time
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{attempts: map[string]int{}, locked: map[string]time.Time{}}
}

func (f *fakeDirectory) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[id]++
	return f.attempts[id], nil
}

func (f *fakeDirectory) ResetFailedAttempts(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[id] = 0
	delete(f.locked, id)
	return nil
}

func (f *fakeDirectory) Lock(ctx context.Context, id string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked[id] = until
	return nil
}

func TestRecordFailureTripsAtThreshold(t *testing.T) {
	dir := newFakeDirectory()
	g := NewGuard(dir, 5, 30*time.Minute)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		count, lockedUntil, err := g.RecordFailure(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Nil(t, lockedUntil)
	}

	count, lockedUntil, err := g.RecordFailure(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.NotNil(t, lockedUntil)

	until, ok := dir.locked["u-1"]
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), until, time.Minute)
}

func TestRecordSuccessClears(t *testing.T) {
	dir := newFakeDirectory()
	g := NewGuard(dir, 5, 30*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := g.RecordFailure(ctx, "u-1")
		require.NoError(t, err)
	}
	require.NoError(t, g.RecordSuccess(ctx, "u-1"))

	assert.Equal(t, 0, dir.attempts["u-1"])
	_, stillLocked := dir.locked["u-1"]
	assert.False(t, stillLocked)
}

func TestIsLockedSelfClears(t *testing.T) {
	g := NewGuard(newFakeDirectory(), 5, 30*time.Minute)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)

	assert.False(t, g.IsLocked(&models.UserModel{}))
	assert.False(t, g.IsLocked(&models.UserModel{LockedUntil: &past}))
	assert.True(t, g.IsLocked(&models.UserModel{LockedUntil: &future}))
}

func TestConcurrentFailuresReachThreshold(t *testing.T) {
	dir := newFakeDirectory()
	g := NewGuard(dir, 5, 30*time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = g.RecordFailure(ctx, "u-1")
		}()
	}
	wg.Wait()

	// No lost updates: five concurrent failures must reliably trip the lock.
	assert.Equal(t, 5, dir.attempts["u-1"])
	_, locked := dir.locked["u-1"]
	assert.True(t, locked)
}
