package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-gateway/core"
)

// MutatingService is the slice of the gateway the commands drive. Results
// flow back through the go-command result collector on the context.
type MutatingService interface {
	Authenticate(ctx context.Context, req core.AuthenticateRequest) (core.AuthenticateResponse, error)
	RefreshToken(ctx context.Context, store string, token string) (bool, error)
	CloseToken(ctx context.Context, store string, token string) (bool, error)
	Create(ctx context.Context, req core.CreateRequest) (int64, error)
	Write(ctx context.Context, req core.WriteRequest) (bool, error)
	Unlink(ctx context.Context, req core.UnlinkRequest) (bool, error)
	Call(ctx context.Context, req core.CallRequest) (any, error)
}

type AuthenticateCommand struct {
	service MutatingService
}

func NewAuthenticateCommand(service MutatingService) *AuthenticateCommand {
	return &AuthenticateCommand{service: service}
}

func (c *AuthenticateCommand) Execute(ctx context.Context, msg AuthenticateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.Authenticate(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshTokenCommand struct {
	service MutatingService
}

func NewRefreshTokenCommand(service MutatingService) *RefreshTokenCommand {
	return &RefreshTokenCommand{service: service}
}

func (c *RefreshTokenCommand) Execute(ctx context.Context, msg RefreshTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.RefreshToken(ctx, msg.Store, msg.Token)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CloseTokenCommand struct {
	service MutatingService
}

func NewCloseTokenCommand(service MutatingService) *CloseTokenCommand {
	return &CloseTokenCommand{service: service}
}

func (c *CloseTokenCommand) Execute(ctx context.Context, msg CloseTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.CloseToken(ctx, msg.Store, msg.Token)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateCommand struct {
	service MutatingService
}

func NewCreateCommand(service MutatingService) *CreateCommand {
	return &CreateCommand{service: service}
}

func (c *CreateCommand) Execute(ctx context.Context, msg CreateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.Create(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type WriteCommand struct {
	service MutatingService
}

func NewWriteCommand(service MutatingService) *WriteCommand {
	return &WriteCommand{service: service}
}

func (c *WriteCommand) Execute(ctx context.Context, msg WriteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.Write(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UnlinkCommand struct {
	service MutatingService
}

func NewUnlinkCommand(service MutatingService) *UnlinkCommand {
	return &UnlinkCommand{service: service}
}

func (c *UnlinkCommand) Execute(ctx context.Context, msg UnlinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.Unlink(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CallCommand struct {
	service MutatingService
}

func NewCallCommand(service MutatingService) *CallCommand {
	return &CallCommand{service: service}
}

func (c *CallCommand) Execute(ctx context.Context, msg CallMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gateway service is required")
	}
	out, err := c.service.Call(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

var (
	_ gocmd.Commander[AuthenticateMessage] = (*AuthenticateCommand)(nil)
	_ gocmd.Commander[RefreshTokenMessage] = (*RefreshTokenCommand)(nil)
	_ gocmd.Commander[CloseTokenMessage]   = (*CloseTokenCommand)(nil)
	_ gocmd.Commander[CreateMessage]       = (*CreateCommand)(nil)
	_ gocmd.Commander[WriteMessage]        = (*WriteCommand)(nil)
	_ gocmd.Commander[UnlinkMessage]       = (*UnlinkCommand)(nil)
	_ gocmd.Commander[CallMessage]         = (*CallCommand)(nil)
)
