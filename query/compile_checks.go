package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-gateway/core"
)

var (
	_ gocmd.Querier[SearchMessage, core.SearchResult]          = (*SearchQuery)(nil)
	_ gocmd.Querier[ReadMessage, []core.Record]                = (*ReadQuery)(nil)
	_ gocmd.Querier[TokenLifetimeMessage, TokenLifetimeResult] = (*TokenLifetimeQuery)(nil)
	_ gocmd.Querier[VersionMessage, core.VersionInfo]          = (*VersionQuery)(nil)
)
