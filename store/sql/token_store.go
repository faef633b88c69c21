package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-gateway/core"
)

// TokenStore persists bearer tokens in gateway_tokens. Raw token values are
// stored as issued; the value column is unique and is the only lookup key
// the gateway ever uses.
type TokenStore struct {
	db   *bun.DB
	repo repository.Repository[*tokenRecord]
}

func NewTokenStore(db *bun.DB) (*TokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*tokenRecord](db, tokenHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid token repository wiring: %w", err)
		}
	}
	return &TokenStore{db: db, repo: repo}, nil
}

func (s *TokenStore) Insert(ctx context.Context, value string, ownerID int64, expiresAt time.Time) (core.Token, error) {
	if s == nil || s.repo == nil {
		return core.Token{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return core.Token{}, fmt.Errorf("sqlstore: token value is required")
	}
	now := time.Now().UTC()
	record := &tokenRecord{
		ID:        uuid.NewString(),
		Value:     value,
		OwnerID:   ownerID,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Token{}, err
	}
	return created.toDomain(), nil
}

func (s *TokenStore) FindByValue(ctx context.Context, value string) (core.Token, bool, error) {
	if s == nil || s.repo == nil {
		return core.Token{}, false, fmt.Errorf("sqlstore: token store is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return core.Token{}, false, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("value", "=", value),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Token{}, false, nil
		}
		return core.Token{}, false, err
	}
	if len(records) == 0 {
		return core.Token{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *TokenStore) UpdateExpiry(ctx context.Context, value string, expiresAt time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: token store is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	res, err := s.db.NewUpdate().
		Model((*tokenRecord)(nil)).
		Set("expires_at = ?", expiresAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("value = ?", value).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *TokenStore) Delete(ctx context.Context, value string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: token store is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	res, err := s.db.NewDelete().
		Model((*tokenRecord)(nil)).
		Where("value = ?", value).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteExpired removes at most limit tokens whose expiry is at or before
// the cutoff. The subquery form keeps the batch bound portable across
// sqlite and postgres, neither of which allows LIMIT on DELETE by default.
func (s *TokenStore) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: token store is not configured")
	}
	query := s.db.NewDelete().Model((*tokenRecord)(nil))
	if limit > 0 {
		subquery := s.db.NewSelect().
			Model((*tokenRecord)(nil)).
			Column("id").
			Where("expires_at <= ?", before.UTC()).
			Limit(limit)
		query = query.Where("id IN (?)", subquery)
	} else {
		query = query.Where("expires_at <= ?", before.UTC())
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

var _ core.TokenStore = (*TokenStore)(nil)
