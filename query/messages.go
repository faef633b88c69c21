package query

import (
	"strings"

	"github.com/goliatone/go-gateway/core"
)

const (
	TypeSearch        = "gateway.query.search"
	TypeRead          = "gateway.query.read"
	TypeTokenLifetime = "gateway.query.token.life"
	TypeVersion       = "gateway.query.version"
)

type SearchMessage struct {
	Request core.SearchRequest
}

func (SearchMessage) Type() string { return TypeSearch }

func (m SearchMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return queryValidationError("token", "token is required")
	}
	return nil
}

type ReadMessage struct {
	Request core.ReadRequest
}

func (ReadMessage) Type() string { return TypeRead }

func (m ReadMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return queryValidationError("token", "token is required")
	}
	return nil
}

type TokenLifetimeMessage struct {
	Store string
	Token string
}

func (TokenLifetimeMessage) Type() string { return TypeTokenLifetime }

func (m TokenLifetimeMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return queryValidationError("token", "token is required")
	}
	return nil
}

type VersionMessage struct{}

func (VersionMessage) Type() string { return TypeVersion }

func (VersionMessage) Validate() error { return nil }
