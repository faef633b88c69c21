package gateway

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"

	gatewaycommand "github.com/goliatone/go-gateway/command"
	"github.com/goliatone/go-gateway/core"
	gatewayquery "github.com/goliatone/go-gateway/query"
)

type stubFacadeService struct {
	lastCloseStore string
	lastCloseToken string
	lastSearch     core.SearchRequest
}

func (s *stubFacadeService) Authenticate(_ context.Context, req core.AuthenticateRequest) (core.AuthenticateResponse, error) {
	return core.AuthenticateResponse{Token: "issued-for-" + req.Login}, nil
}

func (s *stubFacadeService) RefreshToken(context.Context, string, string) (bool, error) {
	return true, nil
}

func (s *stubFacadeService) CloseToken(_ context.Context, store string, token string) (bool, error) {
	s.lastCloseStore = store
	s.lastCloseToken = token
	return true, nil
}

func (s *stubFacadeService) Create(context.Context, core.CreateRequest) (int64, error) {
	return 1, nil
}

func (s *stubFacadeService) Write(context.Context, core.WriteRequest) (bool, error) {
	return true, nil
}

func (s *stubFacadeService) Unlink(context.Context, core.UnlinkRequest) (bool, error) {
	return true, nil
}

func (s *stubFacadeService) Call(context.Context, core.CallRequest) (any, error) {
	return "called", nil
}

func (s *stubFacadeService) Search(_ context.Context, req core.SearchRequest) (core.SearchResult, error) {
	s.lastSearch = req
	return core.SearchResult{IDs: []int64{1, 2, 3}}, nil
}

func (s *stubFacadeService) Read(context.Context, core.ReadRequest) ([]core.Record, error) {
	return []core.Record{{"id": int64(1)}}, nil
}

func (s *stubFacadeService) TokenLifetime(context.Context, string, string) (int64, bool, error) {
	return 1800, true, nil
}

func (s *stubFacadeService) Version() core.VersionInfo {
	return core.VersionInfo{ServerVersion: "1.0.0", APIVersion: 1}
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.Authenticate == nil || commands.Create == nil || commands.Call == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.Search == nil || queries.Version == nil {
		t.Fatalf("expected query handlers to be wired")
	}

	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected service requirement")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().CloseToken.Execute(context.Background(), gatewaycommand.CloseTokenMessage{
		Store: "gateway",
		Token: "tok",
	}); err != nil {
		t.Fatalf("execute close command: %v", err)
	}
	if svc.lastCloseStore != "gateway" || svc.lastCloseToken != "tok" {
		t.Fatalf("unexpected close delegation payload")
	}

	collector := gocmd.NewResult[core.AuthenticateResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().Authenticate.Execute(ctx, gatewaycommand.AuthenticateMessage{
		Request: core.AuthenticateRequest{Store: "gateway", Login: "alice", Password: "secret"},
	}); err != nil {
		t.Fatalf("execute authenticate command: %v", err)
	}
	if resp, ok := collector.Load(); !ok || resp.Token != "issued-for-alice" {
		t.Fatalf("unexpected authenticate result: %#v ok=%v", resp, ok)
	}

	result, err := facade.Queries().Search.Query(context.Background(), gatewayquery.SearchMessage{
		Request: core.SearchRequest{Token: "tok", Entity: "res.partner"},
	})
	if err != nil {
		t.Fatalf("query search: %v", err)
	}
	if len(result.IDs) != 3 {
		t.Fatalf("unexpected search result: %#v", result)
	}
	if svc.lastSearch.Entity != "res.partner" {
		t.Fatalf("expected search delegation payload, got %#v", svc.lastSearch)
	}
}
