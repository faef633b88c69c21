package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

const labelCacheKeyPrefix = "go-gateway::display_label::v1"

// LabelStore resolves display labels straight from entity tables. It looks
// up by primary key only and applies no visibility filtering: relation
// labels render even when the caller cannot read the related record.
type LabelStore struct {
	db          *bun.DB
	descriptors map[string]EntityDescriptor
}

func NewLabelStore(db *bun.DB, descriptors ...EntityDescriptor) (*LabelStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	store := &LabelStore{
		db:          db,
		descriptors: make(map[string]EntityDescriptor, len(descriptors)),
	}
	for _, descriptor := range descriptors {
		entity := strings.TrimSpace(descriptor.Entity)
		if entity == "" {
			return nil, fmt.Errorf("sqlstore: entity name is required")
		}
		if !identifierPattern.MatchString(descriptor.Table) {
			return nil, fmt.Errorf("sqlstore: invalid table name %q for entity %q", descriptor.Table, entity)
		}
		if !identifierPattern.MatchString(descriptor.labelField()) {
			return nil, fmt.Errorf("sqlstore: invalid label field %q for entity %q", descriptor.labelField(), entity)
		}
		store.descriptors[entity] = descriptor
	}
	return store, nil
}

func (s *LabelStore) Label(ctx context.Context, entity string, id int64) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: label store is not configured")
	}
	descriptor, ok := s.descriptors[strings.TrimSpace(entity)]
	if !ok {
		return "", fmt.Errorf("sqlstore: unknown entity %q", entity)
	}
	var label sql.NullString
	err := s.db.NewSelect().
		Table(descriptor.Table).
		ColumnExpr("?", bun.Ident(descriptor.labelField())).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx, &label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return label.String, nil
}

// Invalidate is a no-op on the uncached store.
func (s *LabelStore) Invalidate(ctx context.Context, entity string, id int64) error {
	return nil
}

// CachedLabelStore layers a cache over label resolution. Labels are read on
// every relation field of every record, which makes them by far the
// hottest lookup the gateway performs.
type CachedLabelStore struct {
	base  LabelResolver
	cache repositorycache.CacheService
}

func NewCachedLabelStore(base LabelResolver, cacheService repositorycache.CacheService) (*CachedLabelStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base label resolver is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: label cache service is required")
	}
	return &CachedLabelStore{base: base, cache: cacheService}, nil
}

// LabelCacheKey returns the deterministic cache key contract for label
// reads: go-gateway::display_label::v1::<entity>::<id> with the entity
// segment URL-path escaped.
func LabelCacheKey(entity string, id int64) (string, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return "", fmt.Errorf("sqlstore: entity name is required")
	}
	return strings.Join([]string{
		labelCacheKeyPrefix,
		url.PathEscape(entity),
		fmt.Sprintf("%d", id),
	}, "::"), nil
}

func (s *CachedLabelStore) Label(ctx context.Context, entity string, id int64) (string, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", fmt.Errorf("sqlstore: cached label store is not configured")
	}
	cacheKey, err := LabelCacheKey(entity, id)
	if err != nil {
		return "", err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (string, error) {
		return s.base.Label(ctx, entity, id)
	})
}

func (s *CachedLabelStore) Invalidate(ctx context.Context, entity string, id int64) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached label store is not configured")
	}
	cacheKey, err := LabelCacheKey(entity, id)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return err
	}
	if s.base != nil {
		return s.base.Invalidate(ctx, entity, id)
	}
	return nil
}

var (
	_ LabelResolver = (*LabelStore)(nil)
	_ LabelResolver = (*CachedLabelStore)(nil)
)
