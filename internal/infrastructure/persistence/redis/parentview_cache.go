package redis

import (
	"context"
	"fmt"
	"time"

	domainsync "github.com/kary-hub/kary-sync-engine/internal/domain/sync"
)

// ParentViewCache implements sync.ViewCache on top of the generic Cache.
// Views are keyed by (parent, student); invalidation scans use the key
// layout "parentview:<parentID>:<studentID>".
type ParentViewCache struct {
	cache *Cache
}

// NewParentViewCache creates a new ParentViewCache.
func NewParentViewCache(cache *Cache) *ParentViewCache {
	return &ParentViewCache{cache: cache}
}

// Get returns the cached view for a (parent, student) pair.
// Returns ErrCacheMiss when no fresh view exists.
func (p *ParentViewCache) Get(ctx context.Context, parentID, studentID string) (*domainsync.ParentView, error) {
	var view domainsync.ParentView
	if err := p.cache.Get(ctx, ParentViewKey(parentID, studentID), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Set stores a view with the given TTL. A zero TTL falls back to the
// package default.
func (p *ParentViewCache) Set(ctx context.Context, view *domainsync.ParentView, ttl time.Duration) error {
	if view == nil {
		return ErrCacheNilValue
	}
	if ttl == 0 {
		ttl = TTLParentView
	}
	return p.cache.Set(ctx, ParentViewKey(view.ParentID, view.StudentID), view, ttl)
}

// InvalidateStudent drops every cached view involving the student,
// regardless of which parent it was built for.
func (p *ParentViewCache) InvalidateStudent(ctx context.Context, studentID string) error {
	return p.cache.DeleteByPattern(ctx, fmt.Sprintf("%s*:%s", PrefixParentView, studentID))
}

// InvalidateParent drops every cached view for the parent.
func (p *ParentViewCache) InvalidateParent(ctx context.Context, parentID string) error {
	return p.cache.DeleteByPattern(ctx, fmt.Sprintf("%s%s:*", PrefixParentView, parentID))
}
