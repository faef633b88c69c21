package query

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-gateway/core"
)

func TestSearchMessage_ValidateReturnsRichError(t *testing.T) {
	err := (SearchMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.GatewayErrorMissingArguments {
		t.Fatalf("expected %q text code, got %q", core.GatewayErrorMissingArguments, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 {
		t.Fatalf("expected validation errors in envelope")
	}
	if validation[0].Field != "token" {
		t.Fatalf("expected token validation field, got %q", validation[0].Field)
	}
}

func TestVersionMessage_ValidatesWithoutToken(t *testing.T) {
	if err := (VersionMessage{}).Validate(); err != nil {
		t.Fatalf("expected version message to validate: %v", err)
	}
}

func TestQueries_NilReceiverReturnsRichError(t *testing.T) {
	var q *SearchQuery
	_, err := q.Query(context.Background(), SearchMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.GatewayErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.GatewayErrorInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}
