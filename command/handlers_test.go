package command

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-gateway/core"
)

type stubMutatingService struct {
	authenticateFn func(ctx context.Context, req core.AuthenticateRequest) (core.AuthenticateResponse, error)
	refreshFn      func(ctx context.Context, store string, token string) (bool, error)
	closeFn        func(ctx context.Context, store string, token string) (bool, error)
	createFn       func(ctx context.Context, req core.CreateRequest) (int64, error)
	writeFn        func(ctx context.Context, req core.WriteRequest) (bool, error)
	unlinkFn       func(ctx context.Context, req core.UnlinkRequest) (bool, error)
	callFn         func(ctx context.Context, req core.CallRequest) (any, error)
}

func (s stubMutatingService) Authenticate(ctx context.Context, req core.AuthenticateRequest) (core.AuthenticateResponse, error) {
	return s.authenticateFn(ctx, req)
}

func (s stubMutatingService) RefreshToken(ctx context.Context, store string, token string) (bool, error) {
	return s.refreshFn(ctx, store, token)
}

func (s stubMutatingService) CloseToken(ctx context.Context, store string, token string) (bool, error) {
	return s.closeFn(ctx, store, token)
}

func (s stubMutatingService) Create(ctx context.Context, req core.CreateRequest) (int64, error) {
	return s.createFn(ctx, req)
}

func (s stubMutatingService) Write(ctx context.Context, req core.WriteRequest) (bool, error) {
	return s.writeFn(ctx, req)
}

func (s stubMutatingService) Unlink(ctx context.Context, req core.UnlinkRequest) (bool, error) {
	return s.unlinkFn(ctx, req)
}

func (s stubMutatingService) Call(ctx context.Context, req core.CallRequest) (any, error) {
	return s.callFn(ctx, req)
}

func TestAuthenticateCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.AuthenticateResponse{Token: "issued-token-value"}
	called := false

	svc := stubMutatingService{
		authenticateFn: func(_ context.Context, req core.AuthenticateRequest) (core.AuthenticateResponse, error) {
			called = true
			if req.Login != "alice" || req.Store != "gateway" {
				t.Fatalf("unexpected authenticate payload: %#v", req)
			}
			return expected, nil
		},
	}

	cmd := NewAuthenticateCommand(svc)
	collector := gocmd.NewResult[core.AuthenticateResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, AuthenticateMessage{Request: core.AuthenticateRequest{
		Store:    "gateway",
		Login:    "alice",
		Password: "secret",
	}})
	if err != nil {
		t.Fatalf("execute authenticate: %v", err)
	}
	if !called {
		t.Fatalf("expected authenticate invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Token != expected.Token {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestTokenCommands_DelegateToService(t *testing.T) {
	t.Run("refresh", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			refreshFn: func(_ context.Context, store string, token string) (bool, error) {
				called = true
				if store != "gateway" || token != "tok" {
					t.Fatalf("unexpected refresh payload: %q %q", store, token)
				}
				return true, nil
			},
		}
		collector := gocmd.NewResult[bool]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewRefreshTokenCommand(svc).Execute(ctx, RefreshTokenMessage{Store: "gateway", Token: "tok"}); err != nil {
			t.Fatalf("execute refresh: %v", err)
		}
		if !called {
			t.Fatalf("expected refresh invocation")
		}
		if refreshed, ok := collector.Load(); !ok || !refreshed {
			t.Fatalf("expected true refresh result, got %v ok=%v", refreshed, ok)
		}
	})

	t.Run("close", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			closeFn: func(_ context.Context, store string, token string) (bool, error) {
				called = true
				if token != "tok" {
					t.Fatalf("unexpected close token: %q", token)
				}
				return true, nil
			},
		}
		if err := NewCloseTokenCommand(svc).Execute(context.Background(), CloseTokenMessage{Store: "gateway", Token: "tok"}); err != nil {
			t.Fatalf("execute close: %v", err)
		}
		if !called {
			t.Fatalf("expected close invocation")
		}
	})
}

func TestRecordCommands_DelegateToService(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		svc := stubMutatingService{
			createFn: func(_ context.Context, req core.CreateRequest) (int64, error) {
				if req.Entity != "res.partner" || req.Values["name"] != "Alice" {
					t.Fatalf("unexpected create payload: %#v", req)
				}
				return 7, nil
			},
		}
		collector := gocmd.NewResult[int64]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewCreateCommand(svc).Execute(ctx, CreateMessage{Request: core.CreateRequest{
			Token:  "tok",
			Entity: "res.partner",
			Values: core.Record{"name": "Alice"},
		}}); err != nil {
			t.Fatalf("execute create: %v", err)
		}
		if id, ok := collector.Load(); !ok || id != 7 {
			t.Fatalf("expected created id 7, got %d ok=%v", id, ok)
		}
	})

	t.Run("write", func(t *testing.T) {
		svc := stubMutatingService{
			writeFn: func(_ context.Context, req core.WriteRequest) (bool, error) {
				if len(req.IDs) != 2 {
					t.Fatalf("unexpected write ids: %v", req.IDs)
				}
				return true, nil
			},
		}
		if err := NewWriteCommand(svc).Execute(context.Background(), WriteMessage{Request: core.WriteRequest{
			Token:  "tok",
			IDs:    []int64{1, 2},
			Values: core.Record{"name": "Renamed"},
		}}); err != nil {
			t.Fatalf("execute write: %v", err)
		}
	})

	t.Run("unlink", func(t *testing.T) {
		svc := stubMutatingService{
			unlinkFn: func(_ context.Context, req core.UnlinkRequest) (bool, error) {
				if len(req.IDs) != 1 || req.IDs[0] != 9 {
					t.Fatalf("unexpected unlink ids: %v", req.IDs)
				}
				return true, nil
			},
		}
		if err := NewUnlinkCommand(svc).Execute(context.Background(), UnlinkMessage{Request: core.UnlinkRequest{
			Token: "tok",
			IDs:   []int64{9},
		}}); err != nil {
			t.Fatalf("execute unlink: %v", err)
		}
	})
}

func TestCallCommand_StoresArbitraryResult(t *testing.T) {
	svc := stubMutatingService{
		callFn: func(_ context.Context, req core.CallRequest) (any, error) {
			if req.Method != "name_get" {
				t.Fatalf("unexpected method: %q", req.Method)
			}
			return []string{"Alice", "Bob"}, nil
		},
	}
	collector := gocmd.NewResult[any]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewCallCommand(svc).Execute(ctx, CallMessage{Request: core.CallRequest{
		Token:  "tok",
		Method: "name_get",
	}}); err != nil {
		t.Fatalf("execute call: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected call result")
	}
	names, ok := result.([]string)
	if !ok || len(names) != 2 {
		t.Fatalf("unexpected call result: %#v", result)
	}
}
