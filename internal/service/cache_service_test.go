package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/stars-api/internal/models"
	appErrors "github.com/noah-isme/stars-api/pkg/errors"
)

type fakeCacheRepo struct {
	data   map[string][]byte
	getErr error
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{data: map[string][]byte{}}
}

func (f *fakeCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range f.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(f.data, key)
		}
	}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()
	ref := models.CourseRef{CourseCode: "CZ2002", Index: "10101"}

	var out models.Vacancy
	hit, err := cache.Get(ctx, vacancyCacheKey(ref), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, vacancyCacheKey(ref), models.Vacancy{CourseCode: "CZ2002", Index: "10101", Vacancy: 4}, 0))
	hit, err = cache.Get(ctx, vacancyCacheKey(ref), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 4, out.Vacancy)

	cache.InvalidateSection(ctx, ref)
	hit, _ = cache.Get(ctx, vacancyCacheKey(ref), &out)
	assert.False(t, hit)
}

func TestCacheServiceInvalidateCourse(t *testing.T) {
	repo := newFakeCacheRepo()
	cache := NewCacheService(repo, nil, 0, nil, true)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "vacancy:CZ2002:1", 1, 0))
	require.NoError(t, cache.Set(ctx, "vacancy:CZ2002:2", 1, 0))
	require.NoError(t, cache.Set(ctx, "vacancy:CZ3003:1", 1, 0))
	require.NoError(t, cache.Set(ctx, courseListCacheKey, []string{}, 0))

	cache.InvalidateCourse(ctx, "CZ2002")
	assert.Len(t, repo.data, 1)
	assert.Contains(t, repo.data, "vacancy:CZ3003:1")
}

func TestCacheServiceDisabledAndErrors(t *testing.T) {
	repo := newFakeCacheRepo()
	disabled := NewCacheService(repo, nil, 0, nil, false)
	require.NoError(t, disabled.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.data)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	nilCache.InvalidateSection(context.Background(), models.CourseRef{})

	repo.getErr = errors.New("redis down")
	enabled := NewCacheService(repo, nil, 0, nil, true)
	var v int
	hit, err := enabled.Get(context.Background(), "k", &v)
	assert.False(t, hit)
	assert.Error(t, err)
}
