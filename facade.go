package gateway

import (
	"fmt"

	gatewaycommand "github.com/goliatone/go-gateway/command"
	gatewayquery "github.com/goliatone/go-gateway/query"
)

// CommandQueryService is what the facade needs from the gateway service:
// the mutating command surface plus the read-only query surface.
type CommandQueryService interface {
	gatewaycommand.MutatingService
	gatewayquery.GatewayReader
}

type Commands struct {
	Authenticate *gatewaycommand.AuthenticateCommand
	RefreshToken *gatewaycommand.RefreshTokenCommand
	CloseToken   *gatewaycommand.CloseTokenCommand
	Create       *gatewaycommand.CreateCommand
	Write        *gatewaycommand.WriteCommand
	Unlink       *gatewaycommand.UnlinkCommand
	Call         *gatewaycommand.CallCommand
}

type Queries struct {
	Search        *gatewayquery.SearchQuery
	Read          *gatewayquery.ReadQuery
	TokenLifetime *gatewayquery.TokenLifetimeQuery
	Version       *gatewayquery.VersionQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("gateway: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Authenticate: gatewaycommand.NewAuthenticateCommand(service),
		RefreshToken: gatewaycommand.NewRefreshTokenCommand(service),
		CloseToken:   gatewaycommand.NewCloseTokenCommand(service),
		Create:       gatewaycommand.NewCreateCommand(service),
		Write:        gatewaycommand.NewWriteCommand(service),
		Unlink:       gatewaycommand.NewUnlinkCommand(service),
		Call:         gatewaycommand.NewCallCommand(service),
	}
	facade.queries = Queries{
		Search:        gatewayquery.NewSearchQuery(service),
		Read:          gatewayquery.NewReadQuery(service),
		TokenLifetime: gatewayquery.NewTokenLifetimeQuery(service),
		Version:       gatewayquery.NewVersionQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
