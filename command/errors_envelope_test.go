package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-gateway/core"
)

func TestMessages_ValidateReturnsRichErrors(t *testing.T) {
	cases := map[string]error{
		"authenticate": (AuthenticateMessage{}).Validate(),
		"refresh":      (RefreshTokenMessage{}).Validate(),
		"close":        (CloseTokenMessage{}).Validate(),
		"create":       (CreateMessage{}).Validate(),
		"write":        (WriteMessage{}).Validate(),
		"unlink":       (UnlinkMessage{}).Validate(),
		"call":         (CallMessage{}).Validate(),
	}
	for name, err := range cases {
		if err == nil {
			t.Fatalf("expected %s validation error", name)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope for %s, got %T", name, err)
		}
		if rich.Category != goerrors.CategoryValidation {
			t.Fatalf("expected validation category for %s, got %q", name, rich.Category)
		}
		if rich.TextCode != core.GatewayErrorMissingArguments {
			t.Fatalf("expected %q text code for %s, got %q", core.GatewayErrorMissingArguments, name, rich.TextCode)
		}
		if rich.Code != 400 {
			t.Fatalf("expected 400 for %s, got %d", name, rich.Code)
		}
	}
}

func TestWriteMessage_RequiresIDs(t *testing.T) {
	err := (WriteMessage{Request: core.WriteRequest{Token: "tok", Values: core.Record{"name": "x"}}}).Validate()
	if err == nil {
		t.Fatalf("expected ids requirement")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	validation := rich.AllValidationErrors()
	if len(validation) != 1 || validation[0].Field != "ids" {
		t.Fatalf("expected ids field error, got %#v", validation)
	}
}

func TestCommands_NilReceiverReturnsRichError(t *testing.T) {
	var cmd *CreateCommand
	err := cmd.Execute(context.Background(), CreateMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.GatewayErrorInternal {
		t.Fatalf("expected internal text code, got %q", rich.TextCode)
	}
}
