package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testValue struct {
	text string
	err  bool
}

func (v testValue) IsError() bool { return v.err }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, cfg Config) (*Store[testValue], *fakeClock) {
	t.Helper()

	store, err := New[testValue](cfg, zerolog.Nop())
	require.NoError(t, err)

	clock := newFakeClock()
	store.now = clock.Now
	return store, clock
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero entries", cfg: Config{MaxEntries: 0, SuccessTTL: time.Hour, ErrorTTL: time.Minute}},
		{name: "zero success ttl", cfg: Config{MaxEntries: 1, SuccessTTL: 0, ErrorTTL: time.Minute}},
		{name: "negative error ttl", cfg: Config{MaxEntries: 1, SuccessTTL: time.Hour, ErrorTTL: -time.Minute}},
		{name: "negative sweep interval", cfg: Config{MaxEntries: 1, SuccessTTL: time.Hour, ErrorTTL: time.Minute, SweepInterval: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New[testValue](tt.cfg, zerolog.Nop())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.TTLFor(true))
	assert.Equal(t, time.Hour, cfg.TTLFor(false))
	assert.Equal(t, time.Hour, cfg.sweepInterval())

	cfg.SweepInterval = time.Minute
	assert.Equal(t, time.Minute, cfg.sweepInterval())
}

func TestStore_SetAndGet(t *testing.T) {
	store, _ := newTestStore(t, DefaultConfig())

	store.Set("BGB 1", testValue{text: "§ 1 BGB"})

	got, ok := store.Get("BGB 1")
	require.True(t, ok)
	assert.Equal(t, "§ 1 BGB", got.text)

	_, ok = store.Get("BGB 2")
	assert.False(t, ok)
}

func TestStore_TTLByKind(t *testing.T) {
	store, clock := newTestStore(t, Config{
		MaxEntries: 10,
		SuccessTTL: time.Hour,
		ErrorTTL:   5 * time.Minute,
	})

	store.Set("ok", testValue{text: "found"})
	store.Set("failed", testValue{err: true})

	clock.Advance(5*time.Minute + time.Second)

	_, ok := store.Get("failed")
	assert.False(t, ok, "error entry should expire after the error TTL")

	_, ok = store.Get("ok")
	assert.True(t, ok, "success entry should outlive the error TTL")

	clock.Advance(time.Hour)

	_, ok = store.Get("ok")
	assert.False(t, ok, "success entry should expire after the success TTL")
}

func TestStore_LazyExpiryRemovesEntry(t *testing.T) {
	store, clock := newTestStore(t, DefaultConfig())

	store.Set("BGB 1", testValue{text: "x"})
	require.Equal(t, 1, store.Len())

	clock.Advance(DefaultSuccessTTL + time.Second)

	_, ok := store.Get("BGB 1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStore_EvictsOldestInserted(t *testing.T) {
	const limit = 3
	store, _ := newTestStore(t, Config{MaxEntries: limit, SuccessTTL: time.Hour, ErrorTTL: time.Minute})

	for i := 0; i <= limit; i++ {
		store.Set(fmt.Sprintf("key-%d", i), testValue{text: fmt.Sprint(i)})
	}

	assert.Equal(t, limit, store.Len())

	_, ok := store.Get("key-0")
	assert.False(t, ok, "first inserted key should be evicted")

	for i := 1; i <= limit; i++ {
		_, ok := store.Get(fmt.Sprintf("key-%d", i))
		assert.True(t, ok, "key-%d should be resident", i)
	}
}

func TestStore_ReadsDoNotRefreshOrder(t *testing.T) {
	store, _ := newTestStore(t, Config{MaxEntries: 2, SuccessTTL: time.Hour, ErrorTTL: time.Minute})

	store.Set("a", testValue{})
	store.Set("b", testValue{})

	// Reading "a" must not protect it from eviction
	_, ok := store.Get("a")
	require.True(t, ok)

	store.Set("c", testValue{})

	_, ok = store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("b")
	assert.True(t, ok)
}

func TestStore_ReinsertRefreshesOrderAndValue(t *testing.T) {
	store, _ := newTestStore(t, Config{MaxEntries: 2, SuccessTTL: time.Hour, ErrorTTL: time.Minute})

	store.Set("a", testValue{text: "old"})
	store.Set("b", testValue{})
	store.Set("a", testValue{text: "new"})
	store.Set("c", testValue{})

	_, ok := store.Get("b")
	assert.False(t, ok, "b is now the oldest insertion")

	got, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new", got.text)
}

func TestStore_ReinsertRefreshesExpiry(t *testing.T) {
	store, clock := newTestStore(t, Config{MaxEntries: 2, SuccessTTL: time.Hour, ErrorTTL: time.Minute})

	store.Set("a", testValue{err: true})
	clock.Advance(50 * time.Second)
	store.Set("a", testValue{text: "recovered"})
	clock.Advance(30 * time.Minute)

	got, ok := store.Get("a")
	require.True(t, ok)
	assert.False(t, got.IsError())
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t, DefaultConfig())

	store.Set("a", testValue{})
	store.Delete("a")
	store.Delete("missing")

	_, ok := store.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStore_Sweep(t *testing.T) {
	store, clock := newTestStore(t, Config{MaxEntries: 10, SuccessTTL: time.Hour, ErrorTTL: time.Minute})

	store.Set("error-1", testValue{err: true})
	store.Set("error-2", testValue{err: true})
	store.Set("success", testValue{})

	clock.Advance(2 * time.Minute)

	removed := store.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())

	assert.Equal(t, 0, store.Sweep(), "second sweep has nothing to remove")
}

func TestStore_RunSweepsWithoutReads(t *testing.T) {
	store, clock := newTestStore(t, Config{
		MaxEntries:    10,
		SuccessTTL:    time.Hour,
		ErrorTTL:      time.Minute,
		SweepInterval: 10 * time.Millisecond,
	})

	store.Set("a", testValue{})
	store.Set("b", testValue{err: true})
	clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestStore_Purge(t *testing.T) {
	store, _ := newTestStore(t, DefaultConfig())

	store.Set("a", testValue{})
	store.Set("b", testValue{})
	store.Purge()

	assert.Equal(t, 0, store.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	const limit = 16
	store, clock := newTestStore(t, Config{MaxEntries: limit, SuccessTTL: time.Minute, ErrorTTL: time.Second})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", (g*31+i)%40)
				store.Set(key, testValue{err: i%3 == 0})
				store.Get(key)
				if i%50 == 0 {
					clock.Advance(time.Second)
					store.Sweep()
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), limit)
}
