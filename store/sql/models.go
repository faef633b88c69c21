package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-gateway/core"
)

type tokenRecord struct {
	bun.BaseModel `bun:"table:gateway_tokens,alias:gt"`

	ID        string    `bun:"id,pk"`
	Value     string    `bun:"value,notnull"`
	OwnerID   int64     `bun:"owner_id,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *tokenRecord) toDomain() core.Token {
	if r == nil {
		return core.Token{}
	}
	return core.Token{
		ID:        r.ID,
		Value:     r.Value,
		OwnerID:   r.OwnerID,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

type userRecord struct {
	bun.BaseModel `bun:"table:gateway_users,alias:gu"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Login        string    `bun:"login,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	DisplayName  string    `bun:"display_name,notnull"`
	Active       bool      `bun:"active,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
