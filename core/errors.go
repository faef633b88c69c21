package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	GatewayErrorMissingArguments = "GATEWAY_MISSING_ARGUMENTS"
	GatewayErrorInvalidLogin     = "GATEWAY_INVALID_LOGIN"
	GatewayErrorTokenInvalid     = "GATEWAY_TOKEN_INVALID"
	GatewayErrorInvalidStore     = "GATEWAY_INVALID_STORE"
	GatewayErrorAPIUnavailable   = "GATEWAY_API_UNAVAILABLE"
	GatewayErrorUnknownCommand   = "GATEWAY_UNKNOWN_COMMAND"
	GatewayErrorOperationFailed  = "GATEWAY_OPERATION_FAILED"
	GatewayErrorInternal         = "GATEWAY_INTERNAL_ERROR"
)

// Legacy wire values carried in the `error` key of every failure body.
const (
	WireErrorUnknownCommand  = "unknown_command"
	WireErrorInvalidStore    = "invalid_db"
	WireErrorTokenInvalid    = "token_invalid"
	WireErrorAPIUnavailable  = "rest_api_not_supported"
	WireErrorInvalidLogin    = "invalid_login"
	WireErrorMissingArgsFmt  = "arguments_missing %s"
	WireErrorOperationFailed = "operation_failed"
)

func gatewayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureGatewayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "token"):
		return newGatewayError(err.Error(), goerrors.CategoryAuthz, GatewayErrorTokenInvalid)
	case strings.Contains(msg, "login"), strings.Contains(msg, "password"):
		return newGatewayError(err.Error(), goerrors.CategoryAuth, GatewayErrorInvalidLogin)
	case strings.Contains(msg, "unknown entity"), strings.Contains(msg, "not registered"):
		return newGatewayError(err.Error(), goerrors.CategoryOperation, GatewayErrorOperationFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "missing"):
		return newGatewayError(err.Error(), goerrors.CategoryBadInput, GatewayErrorMissingArguments)
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newGatewayError(err.Error(), goerrors.CategoryBadInput, GatewayErrorOperationFailed)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureGatewayErrorEnvelope(mapped)
}

func newGatewayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureGatewayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureGatewayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = gatewayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultGatewayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultGatewayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return GatewayErrorMissingArguments
	case goerrors.CategoryNotFound:
		return GatewayErrorInvalidStore
	case goerrors.CategoryAuth:
		return GatewayErrorInvalidLogin
	case goerrors.CategoryAuthz:
		return GatewayErrorTokenInvalid
	case goerrors.CategoryOperation:
		return GatewayErrorOperationFailed
	default:
		return GatewayErrorInternal
	}
}

func gatewayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation, goerrors.CategoryOperation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WireMessage returns the legacy response body value for a mapped gateway
// error. Operation failures carry the underlying diagnostic text so API
// consumers keep the detail the legacy endpoint exposed.
func WireMessage(err *goerrors.Error) string {
	if err == nil {
		return ""
	}
	switch err.TextCode {
	case GatewayErrorUnknownCommand:
		return WireErrorUnknownCommand
	case GatewayErrorInvalidStore:
		return WireErrorInvalidStore
	case GatewayErrorTokenInvalid:
		return WireErrorTokenInvalid
	case GatewayErrorAPIUnavailable:
		return WireErrorAPIUnavailable
	case GatewayErrorInvalidLogin:
		return WireErrorInvalidLogin
	case GatewayErrorMissingArguments, GatewayErrorOperationFailed:
		if strings.TrimSpace(err.Message) != "" {
			return err.Message
		}
		return WireErrorOperationFailed
	default:
		if strings.TrimSpace(err.Message) != "" {
			return err.Message
		}
		return WireErrorOperationFailed
	}
}
