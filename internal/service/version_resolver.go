package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/javandres/bultti-inspections-api/internal/dto"
	"github.com/javandres/bultti-inspections-api/internal/models"
	appErrors "github.com/javandres/bultti-inspections-api/pkg/errors"
)

type inEffectStore interface {
	InEffect(ctx context.Context, key models.VersionKey) (*models.Inspection, error)
}

type inEffectCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// VersionResolver answers which inspection version is in effect for a
// (operator, season, type) key: the highest version currently in
// production. Version assignment itself happens at creation time inside
// the store; versions are immutable afterwards.
type VersionResolver struct {
	store  inEffectStore
	cache  inEffectCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewVersionResolver constructs the resolver. The cache is optional.
func NewVersionResolver(store inEffectStore, cache inEffectCache, ttl time.Duration, logger *zap.Logger) *VersionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &VersionResolver{store: store, cache: cache, ttl: ttl, logger: logger}
}

// InEffect resolves the in-effect version for a key space; InEffect is
// false when no version is in production.
func (r *VersionResolver) InEffect(ctx context.Context, key models.VersionKey) (*dto.InEffectResponse, error) {
	cacheKey := r.cacheKey(key)
	if r.cache != nil {
		var cached dto.InEffectResponse
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			r.logger.Warn("in-effect cache read failed", zap.Error(err))
		}
	}

	insp, err := r.store.InEffect(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve in-effect inspection")
	}
	resp := &dto.InEffectResponse{
		OperatorID:   key.OperatorID,
		SeasonID:     key.SeasonID,
		DocumentType: key.DocumentType,
	}
	if insp != nil {
		resp.InspectionID = insp.ID
		resp.Version = insp.Version
		resp.InEffect = true
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, resp, r.ttl); err != nil {
			r.logger.Warn("in-effect cache write failed", zap.Error(err))
		}
	}
	return resp, nil
}

// Invalidate drops the cached in-effect entry for a key; called after
// every publish or removal that can change the answer.
func (r *VersionResolver) Invalidate(ctx context.Context, key models.VersionKey) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, r.cacheKey(key)); err != nil {
		r.logger.Warn("in-effect cache invalidation failed", zap.Error(err))
	}
}

func (r *VersionResolver) cacheKey(key models.VersionKey) string {
	return fmt.Sprintf("in-effect:%d:%s:%s", key.OperatorID, key.SeasonID, key.DocumentType)
}
