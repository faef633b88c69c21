package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Token is an opaque bearer credential bound to a principal and an expiry
// instant. Value and OwnerID never change after creation; only ExpiresAt
// moves, via refresh.
type Token struct {
	ID        string
	Value     string
	OwnerID   int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Valid reports whether the token exists and has not expired at now.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// TokenStore owns token records. Lookups never fail on absence; they report
// found=false and callers decide whether that is an error.
type TokenStore interface {
	Insert(ctx context.Context, value string, ownerID int64, expiresAt time.Time) (Token, error)
	FindByValue(ctx context.Context, value string) (Token, bool, error)
	UpdateExpiry(ctx context.Context, value string, expiresAt time.Time) (bool, error)
	Delete(ctx context.Context, value string) (bool, error)
	// DeleteExpired removes tokens with expires_at <= before, up to limit
	// records per sweep (limit <= 0 means unbounded), returning the count.
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Caller is the acting principal bound by the dispatch preamble; every
// data-access call executes under its authority with its merged context.
type Caller struct {
	UserID  int64
	Store   string
	Context map[string]any
}

// Record is a generic entity instance: field name to value. Relation-valued
// fields hold a RelationRef or []RelationRef, never a nested Record.
type Record map[string]any

// RelationRef is the single-level flattening of a related record: the
// related id plus a display label fetched with elevated visibility.
type RelationRef struct {
	ID    int64
	Label string
}

// Clause is one domain filter triple: [field, operator, value].
type Clause struct {
	Field    string
	Operator string
	Value    any
}

type SearchOptions struct {
	Domain  []Clause
	Fields  []string
	Limit   int
	Offset  int
	Order   string
	Context map[string]any
}

// DataStore is the transactional business-object collaborator behind the
// gateway. Implementations are expected to scope every operation to the
// caller identity and to undo partial mutations when Rollback is invoked.
type DataStore interface {
	Authenticate(ctx context.Context, store string, login string, password string) (int64, bool, error)
	Search(ctx context.Context, caller Caller, entity string, opt SearchOptions) ([]int64, error)
	SearchCount(ctx context.Context, caller Caller, entity string, opt SearchOptions) (int, error)
	SearchRead(ctx context.Context, caller Caller, entity string, opt SearchOptions) ([]Record, error)
	Create(ctx context.Context, caller Caller, entity string, values Record) (int64, error)
	Write(ctx context.Context, caller Caller, entity string, ids []int64, values Record) (bool, error)
	Unlink(ctx context.Context, caller Caller, entity string, ids []int64) (bool, error)
	Rollback(ctx context.Context) error
}

// MethodInvocation carries the operands of a dynamic entity-method call.
type MethodInvocation struct {
	Entity  string
	Method  string
	IDs     []int64
	Args    []any
	Kwargs  map[string]any
	Context map[string]any
}

// Method is a callable registered on the EntityRegistry for one entity type.
type Method func(ctx context.Context, caller Caller, inv MethodInvocation) (any, error)

// StoreResolver resolves the target data store (tenant database) for a
// request and reports whether the gateway is enabled on it.
type StoreResolver interface {
	Resolve(ctx context.Context, requested string) (string, error)
	Active(ctx context.Context, store string) (bool, error)
}

// VersionInfo is the unauthenticated metadata payload of the version route.
type VersionInfo struct {
	ServerVersion     string `json:"server_version"`
	ServerVersionInfo []int  `json:"server_version_info"`
	ServerSerie       string `json:"server_serie"`
	APIVersion        int    `json:"api_version"`
}
