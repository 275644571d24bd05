package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

func user(text string) models.Message      { return models.Message{Role: models.RoleUser, Content: text} }
func assistant(text string) models.Message { return models.Message{Role: models.RoleAssistant, Content: text} }

func TestMemoryAppendAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversations(Options{})

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Append(ctx, "c1", user("hello")))
	require.NoError(t, s.Append(ctx, "c1", assistant("hi"), user("search asthma")))
	require.NoError(t, s.Append(ctx, "c2", user("other")))

	got, err = s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, "search asthma", got[2].Content)
	assert.False(t, got[0].CreatedAt.IsZero())

	// callers get a copy
	got[0].Content = "mutated"
	again, _ := s.Get(ctx, "c1")
	assert.Equal(t, "hello", again[0].Content)
}

func TestMemoryEvict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversations(Options{})
	require.NoError(t, s.Append(ctx, "c1", user("hello")))
	require.NoError(t, s.Evict(ctx, "c1"))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryConversations(Options{TTL: time.Hour})
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Append(ctx, "old", user("a")))
	clock = clock.Add(50 * time.Minute)
	require.NoError(t, s.Append(ctx, "fresh", user("b")))
	clock = clock.Add(20 * time.Minute)

	got, _ := s.Get(ctx, "old")
	assert.Nil(t, got, "idle for 70 minutes")
	got, _ = s.Get(ctx, "fresh")
	assert.Len(t, got, 1)

	clock = clock.Add(time.Hour)
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryAppendAfterExpiryStartsOver(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	s := NewMemoryConversations(Options{TTL: time.Minute})
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Append(ctx, "c", user("first")))
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, s.Append(ctx, "c", user("second")))

	got, _ := s.Get(ctx, "c")
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Content)
}

func TestMemoryMaxMessages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversations(Options{MaxMessages: 3})
	for _, m := range []models.Message{user("1"), assistant("2"), user("3"), assistant("4"), user("5")} {
		require.NoError(t, s.Append(ctx, "c", m))
	}
	got, _ := s.Get(ctx, "c")
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].Content)
}

func TestMemoryConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversations(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(ctx, "c", user("x"))
			_, _ = s.Get(ctx, "c")
		}()
	}
	wg.Wait()
	got, _ := s.Get(ctx, "c")
	assert.Len(t, got, 20)
}
