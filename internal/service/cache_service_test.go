package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type recordingCache struct {
	repo      *memoryCacheRepo
	published map[string][]string
}

func (r *recordingCache) PublishInvalidation(schoolID string, keys ...string) {
	r.published[schoolID] = append(r.published[schoolID], keys...)
}

func newRecordingCache() (*CacheService, *recordingCache) {
	rec := &recordingCache{repo: newMemoryCacheRepo(), published: map[string][]string{}}
	return NewCacheService(rec.repo, nil, rec, time.Minute, zap.NewNop(), true), rec
}

func TestRememberLoadsOnceThenHits(t *testing.T) {
	cache, _ := newRecordingCache()
	loads := 0
	load := func(dest *[]string) func(context.Context) error {
		return func(context.Context) error {
			loads++
			*dest = []string{"a", "b"}
			return nil
		}
	}

	var first []string
	hit, err := cache.Remember(context.Background(), "posts:c1", &first, load(&first))
	require.NoError(t, err)
	assert.False(t, hit)

	var second []string
	hit, err = cache.Remember(context.Background(), "posts:c1", &second, load(&second))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, second)
	assert.Equal(t, 1, loads)
}

func TestRememberPropagatesLoaderError(t *testing.T) {
	cache, rec := newRecordingCache()
	boom := errors.New("boom")
	var dest []string
	_, err := cache.Remember(context.Background(), "posts:c1", &dest, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, rec.repo.has("posts:c1"))
}

func TestInvalidateExactAndPatternKeys(t *testing.T) {
	cache, rec := newRecordingCache()
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "users:s1:STUDENT:1:20", []int{1}, 0))
	require.NoError(t, cache.Set(ctx, "users:s1:TEACHER:1:20", []int{1}, 0))
	require.NoError(t, cache.Set(ctx, "users:s2:TEACHER:1:20", []int{1}, 0))
	require.NoError(t, cache.Set(ctx, "school:s1", []int{1}, 0))

	cache.Invalidate(ctx, "s1", "users:s1:*", "school:s1")

	assert.False(t, rec.repo.has("users:s1:STUDENT:1:20"))
	assert.False(t, rec.repo.has("users:s1:TEACHER:1:20"))
	assert.False(t, rec.repo.has("school:s1"))
	assert.True(t, rec.repo.has("users:s2:TEACHER:1:20"))
	assert.Equal(t, []string{"users:s1:*", "school:s1"}, rec.published["s1"])
}

func TestDisabledCacheStillPublishes(t *testing.T) {
	rec := &recordingCache{repo: newMemoryCacheRepo(), published: map[string][]string{}}
	cache := NewCacheService(rec.repo, nil, rec, time.Minute, nil, false)

	var dest []string
	hit, err := cache.Remember(context.Background(), "k", &dest, func(context.Context) error {
		dest = []string{"x"}
		return nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, rec.repo.gets)

	cache.Invalidate(context.Background(), "s1", "k")
	assert.Equal(t, []string{"k"}, rec.published["s1"])
}
