package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/javandres/bultti-inspections-api/internal/dto"
	"github.com/javandres/bultti-inspections-api/internal/models"
	appErrors "github.com/javandres/bultti-inspections-api/pkg/errors"
)

type inEffectStoreStub struct {
	inspection *models.Inspection
	calls      int
}

func (s *inEffectStoreStub) InEffect(ctx context.Context, key models.VersionKey) (*models.Inspection, error) {
	s.calls++
	return s.inspection, nil
}

type cacheStub struct {
	entries map[string]dto.InEffectResponse
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string]dto.InEffectResponse)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	entry, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*dest.(*dto.InEffectResponse) = entry
	return nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.entries[key] = *value.(*dto.InEffectResponse)
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func TestVersionResolverCacheAside(t *testing.T) {
	store := &inEffectStoreStub{inspection: &models.Inspection{ID: "insp-1", Version: 2}}
	cache := newCacheStub()
	resolver := NewVersionResolver(store, cache, time.Minute, nil)
	key := models.VersionKey{OperatorID: 7, SeasonID: "season-1", DocumentType: models.DocumentTypePre}

	first, err := resolver.InEffect(context.Background(), key)
	require.NoError(t, err)
	require.True(t, first.InEffect)
	require.Equal(t, "insp-1", first.InspectionID)
	require.Equal(t, 1, store.calls)

	// Second lookup is served from cache.
	second, err := resolver.InEffect(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, store.calls)

	// Invalidation forces the next lookup back to the store.
	resolver.Invalidate(context.Background(), key)
	_, err = resolver.InEffect(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
}

func TestVersionResolverEmptyKeySpace(t *testing.T) {
	store := &inEffectStoreStub{}
	resolver := NewVersionResolver(store, nil, time.Minute, nil)

	resp, err := resolver.InEffect(context.Background(), models.VersionKey{
		OperatorID: 7, SeasonID: "season-1", DocumentType: models.DocumentTypePost,
	})
	require.NoError(t, err)
	require.False(t, resp.InEffect)
	require.Empty(t, resp.InspectionID)
	require.Zero(t, resp.Version)
}

func TestVersionResolverDistinctKeysDistinctEntries(t *testing.T) {
	store := &inEffectStoreStub{inspection: &models.Inspection{ID: "insp-1", Version: 1}}
	cache := newCacheStub()
	resolver := NewVersionResolver(store, cache, time.Minute, nil)

	_, err := resolver.InEffect(context.Background(), models.VersionKey{OperatorID: 7, SeasonID: "s", DocumentType: models.DocumentTypePre})
	require.NoError(t, err)
	_, err = resolver.InEffect(context.Background(), models.VersionKey{OperatorID: 7, SeasonID: "s", DocumentType: models.DocumentTypePost})
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
	require.Len(t, cache.entries, 2)
}
