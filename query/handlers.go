package query

import (
	"context"

	"github.com/goliatone/go-gateway/core"
)

// GatewayReader is the read-only slice of the gateway the queries serve.
type GatewayReader interface {
	Search(ctx context.Context, req core.SearchRequest) (core.SearchResult, error)
	Read(ctx context.Context, req core.ReadRequest) ([]core.Record, error)
	TokenLifetime(ctx context.Context, store string, token string) (int64, bool, error)
	Version() core.VersionInfo
}

type SearchQuery struct {
	reader GatewayReader
}

func NewSearchQuery(reader GatewayReader) *SearchQuery {
	return &SearchQuery{reader: reader}
}

func (q *SearchQuery) Query(ctx context.Context, msg SearchMessage) (core.SearchResult, error) {
	if q == nil || q.reader == nil {
		return core.SearchResult{}, queryDependencyError("query: gateway reader is required")
	}
	return q.reader.Search(ctx, msg.Request)
}

type ReadQuery struct {
	reader GatewayReader
}

func NewReadQuery(reader GatewayReader) *ReadQuery {
	return &ReadQuery{reader: reader}
}

func (q *ReadQuery) Query(ctx context.Context, msg ReadMessage) ([]core.Record, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: gateway reader is required")
	}
	return q.reader.Read(ctx, msg.Request)
}

// TokenLifetimeResult mirrors the legacy life payload: the remaining
// seconds, or Found=false when the token is not stored at all.
type TokenLifetimeResult struct {
	Seconds int64
	Found   bool
}

type TokenLifetimeQuery struct {
	reader GatewayReader
}

func NewTokenLifetimeQuery(reader GatewayReader) *TokenLifetimeQuery {
	return &TokenLifetimeQuery{reader: reader}
}

func (q *TokenLifetimeQuery) Query(ctx context.Context, msg TokenLifetimeMessage) (TokenLifetimeResult, error) {
	if q == nil || q.reader == nil {
		return TokenLifetimeResult{}, queryDependencyError("query: gateway reader is required")
	}
	seconds, found, err := q.reader.TokenLifetime(ctx, msg.Store, msg.Token)
	if err != nil {
		return TokenLifetimeResult{}, err
	}
	return TokenLifetimeResult{Seconds: seconds, Found: found}, nil
}

type VersionQuery struct {
	reader GatewayReader
}

func NewVersionQuery(reader GatewayReader) *VersionQuery {
	return &VersionQuery{reader: reader}
}

func (q *VersionQuery) Query(_ context.Context, _ VersionMessage) (core.VersionInfo, error) {
	if q == nil || q.reader == nil {
		return core.VersionInfo{}, queryDependencyError("query: gateway reader is required")
	}
	return q.reader.Version(), nil
}
