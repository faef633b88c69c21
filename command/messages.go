package command

import (
	"strings"

	"github.com/goliatone/go-gateway/core"
)

const (
	TypeAuthenticate = "gateway.command.authenticate"
	TypeRefreshToken = "gateway.command.token.refresh"
	TypeCloseToken   = "gateway.command.token.close"
	TypeCreate       = "gateway.command.create"
	TypeWrite        = "gateway.command.write"
	TypeUnlink       = "gateway.command.unlink"
	TypeCall         = "gateway.command.call"
)

type AuthenticateMessage struct {
	Request core.AuthenticateRequest
}

func (AuthenticateMessage) Type() string { return TypeAuthenticate }

func (m AuthenticateMessage) Validate() error {
	if strings.TrimSpace(m.Request.Login) == "" {
		return commandValidationError("login", "login is required")
	}
	if m.Request.Password == "" {
		return commandValidationError("password", "password is required")
	}
	return nil
}

type RefreshTokenMessage struct {
	Store string
	Token string
}

func (RefreshTokenMessage) Type() string { return TypeRefreshToken }

func (m RefreshTokenMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	return nil
}

type CloseTokenMessage struct {
	Store string
	Token string
}

func (CloseTokenMessage) Type() string { return TypeCloseToken }

func (m CloseTokenMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	return nil
}

type CreateMessage struct {
	Request core.CreateRequest
}

func (CreateMessage) Type() string { return TypeCreate }

func (m CreateMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	if len(m.Request.Values) == 0 {
		return commandValidationError("values", "values are required")
	}
	return nil
}

type WriteMessage struct {
	Request core.WriteRequest
}

func (WriteMessage) Type() string { return TypeWrite }

func (m WriteMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	if len(m.Request.IDs) == 0 {
		return commandValidationError("ids", "record ids are required")
	}
	return nil
}

type UnlinkMessage struct {
	Request core.UnlinkRequest
}

func (UnlinkMessage) Type() string { return TypeUnlink }

func (m UnlinkMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	if len(m.Request.IDs) == 0 {
		return commandValidationError("ids", "record ids are required")
	}
	return nil
}

type CallMessage struct {
	Request core.CallRequest
}

func (CallMessage) Type() string { return TypeCall }

func (m CallMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	if strings.TrimSpace(m.Request.Method) == "" {
		return commandValidationError("method", "method name is required")
	}
	return nil
}
