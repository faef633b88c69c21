// Package rest exposes the gateway over HTTP with the legacy URL layout:
// every command lives under /api and reads its parameters from the form,
// the query string, or positional path segments.
package rest

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-gateway/core"
	"github.com/goliatone/go-gateway/encoder"
)

type Controller struct {
	service *core.Service
	encoder *encoder.Encoder
	logger  core.Logger
}

type ControllerOption func(*Controller)

func WithEncoder(enc *encoder.Encoder) ControllerOption {
	return func(c *Controller) {
		c.encoder = enc
	}
}

func WithLogger(logger core.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(service *core.Service, options ...ControllerOption) (*Controller, error) {
	if service == nil {
		return nil, goerrors.New("rest: gateway service is required", goerrors.CategoryInternal)
	}
	controller := &Controller{
		service: service,
		encoder: encoder.New(),
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(controller)
	}
	controller.logger = glog.Ensure(controller.logger)
	return controller, nil
}

// Handler returns the mux serving every gateway route.
func (c *Controller) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/", c.dispatch)
	mux.HandleFunc(apiPrefix, c.dispatch)
	return mux
}

func (c *Controller) dispatch(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		c.writeError(w, goerrors.Wrap(err, goerrors.CategoryBadInput, "rest: malformed form payload").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.GatewayErrorOperationFailed))
		return
	}
	parsed, ok := parseRoute(req.URL.Path)
	if !ok {
		c.writeError(w, unknownCommand())
		return
	}
	if method, allowed := commandMethods[parsed.Command]; allowed && method != req.Method {
		c.writeError(w, methodNotAllowed(req.Method))
		return
	}

	switch parsed.Command {
	case "version", "":
		c.handleVersion(w, req)
	case "authenticate":
		c.handleAuthenticate(w, req, parsed)
	case "refresh":
		c.handleRefresh(w, req, parsed)
	case "life":
		c.handleLife(w, req, parsed)
	case "close":
		c.handleClose(w, req, parsed)
	case "search":
		c.handleSearch(w, req, parsed)
	case "read":
		c.handleRead(w, req, parsed)
	case "create":
		c.handleCreate(w, req, parsed)
	case "write":
		c.handleWrite(w, req, parsed)
	case "unlink":
		c.handleUnlink(w, req, parsed)
	case "call":
		c.handleCall(w, req, parsed)
	default:
		c.writeError(w, unknownCommand())
	}
}

func (c *Controller) handleVersion(w http.ResponseWriter, req *http.Request) {
	c.writeResult(w, c.service.Version())
}

func (c *Controller) handleAuthenticate(w http.ResponseWriter, req *http.Request, parsed route) {
	store := firstNonEmpty(parsed.segment(0), formValue(req, "db"))
	login := firstNonEmpty(parsed.segment(1), formValue(req, "login"))
	password := firstNonEmpty(parsed.segment(2), formValue(req, "password"))

	res, err := c.service.Authenticate(req.Context(), core.AuthenticateRequest{
		Store:    store,
		Login:    login,
		Password: password,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeResult(w, map[string]any{"token": res.Token})
}

func (c *Controller) handleRefresh(w http.ResponseWriter, req *http.Request, parsed route) {
	refreshed, err := c.service.RefreshToken(req.Context(), formValue(req, "db"), c.token(req, parsed))
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeResult(w, refreshed)
}

func (c *Controller) handleLife(w http.ResponseWriter, req *http.Request, parsed route) {
	seconds, found, err := c.service.TokenLifetime(req.Context(), formValue(req, "db"), c.token(req, parsed))
	if err != nil {
		c.writeError(w, err)
		return
	}
	if !found {
		c.writeResult(w, false)
		return
	}
	c.writeResult(w, seconds)
}

func (c *Controller) handleClose(w http.ResponseWriter, req *http.Request, parsed route) {
	revoked, err := c.service.CloseToken(req.Context(), formValue(req, "db"), c.token(req, parsed))
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeResult(w, revoked)
}

func (c *Controller) handleSearch(w http.ResponseWriter, req *http.Request, parsed route) {
	domain, err := parseDomain(formValue(req, "domain"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	requestContext, err := parseObject(formValue(req, "context"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	id, _ := parsed.intSegment(1)
	limit, hasLimit := parsed.intSegment(2)
	if !hasLimit {
		limit = formInt(req, "limit")
	}
	offset, hasOffset := parsed.intSegment(3)
	if !hasOffset {
		offset = formInt(req, "offset")
	}

	result, err := c.service.Search(req.Context(), core.SearchRequest{
		Store:   formValue(req, "db"),
		Token:   formValue(req, "token"),
		Entity:  firstNonEmpty(parsed.segment(0), formValue(req, "model")),
		ID:      firstNonZero(id, formInt(req, "id")),
		Domain:  domain,
		Context: requestContext,
		Count:   formValue(req, "count") == "true" || formValue(req, "count") == "1",
		Limit:   int(limit),
		Offset:  int(offset),
		Order:   formValue(req, "order"),
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	if result.Counted {
		c.writeResult(w, result.Total)
		return
	}
	c.writeResult(w, result.IDs)
}

func (c *Controller) handleRead(w http.ResponseWriter, req *http.Request, parsed route) {
	domain, err := parseDomain(formValue(req, "domain"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	fields, err := parseStringList(formValue(req, "fields"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	requestContext, err := parseObject(formValue(req, "context"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	id, _ := parsed.intSegment(1)
	limit, hasLimit := parsed.intSegment(2)
	if !hasLimit {
		limit = formInt(req, "limit")
	}
	offset, hasOffset := parsed.intSegment(3)
	if !hasOffset {
		offset = formInt(req, "offset")
	}

	records, err := c.service.Read(req.Context(), core.ReadRequest{
		Store:   formValue(req, "db"),
		Token:   formValue(req, "token"),
		Entity:  firstNonEmpty(parsed.segment(0), formValue(req, "model")),
		ID:      firstNonZero(id, formInt(req, "id")),
		Domain:  domain,
		Fields:  fields,
		Context: requestContext,
		Limit:   int(limit),
		Offset:  int(offset),
		Order:   formValue(req, "order"),
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeResult(w, records)
}

func (c *Controller) handleCreate(w http.ResponseWriter, req *http.Request, parsed route) {
	values, err := parseObject(formValue(req, "values"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	requestContext, err := parseObject(formValue(req, "context"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}

	id, err := c.service.Create(req.Context(), core.CreateRequest{
		Store:   formValue(req, "db"),
		Token:   formValue(req, "token"),
		Entity:  firstNonEmpty(parsed.segment(0), formValue(req, "model")),
		Values:  core.Record(values),
		Context: requestContext,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeResult(w, id)
}

func (c *Controller) handleWrite(w http.ResponseWriter, req *http.Request, parsed route) {
	values, err := parseObject(formValue(req, "values"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	requestContext, err := parseObject(formValue(req, "context"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	ids, err := c.recordIDs(req, parsed, 1)
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}

	ok, err := c.service.Write(req.Context(), core.WriteRequest{
		Store:   formValue(req, "db"),
		Token:   formValue(req, "token"),
		Entity:  firstNonEmpty(parsed.segment(0), formValue(req, "model")),
		IDs:     ids,
		Values:  core.Record(values),
		Context: requestContext,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeResult(w, ok)
}

func (c *Controller) handleUnlink(w http.ResponseWriter, req *http.Request, parsed route) {
	requestContext, err := parseObject(formValue(req, "context"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	ids, err := c.recordIDs(req, parsed, 1)
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}

	ok, err := c.service.Unlink(req.Context(), core.UnlinkRequest{
		Store:   formValue(req, "db"),
		Token:   formValue(req, "token"),
		Entity:  firstNonEmpty(parsed.segment(0), formValue(req, "model")),
		IDs:     ids,
		Context: requestContext,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeResult(w, ok)
}

func (c *Controller) handleCall(w http.ResponseWriter, req *http.Request, parsed route) {
	args, err := parseArgs(formValue(req, "args"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	kwargs, err := parseObject(formValue(req, "kwargs"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	requestContext, err := parseObject(formValue(req, "context"))
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}
	ids, err := c.recordIDs(req, parsed, 2)
	if err != nil {
		c.writeError(w, badInput(err))
		return
	}

	result, err := c.service.Call(req.Context(), core.CallRequest{
		Store:   formValue(req, "db"),
		Token:   formValue(req, "token"),
		Entity:  firstNonEmpty(parsed.segment(0), formValue(req, "model")),
		Method:  firstNonEmpty(parsed.segment(1), formValue(req, "method")),
		IDs:     ids,
		Args:    args,
		Kwargs:  kwargs,
		Context: requestContext,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeResult(w, result)
}

// token reads the bearer token from the first path segment or the form.
func (c *Controller) token(req *http.Request, parsed route) string {
	return firstNonEmpty(parsed.segment(0), formValue(req, "token"))
}

// recordIDs merges the positional id segment with the JSON ids parameter.
func (c *Controller) recordIDs(req *http.Request, parsed route, segmentIndex int) ([]int64, error) {
	ids, err := parseIDList(formValue(req, "ids"))
	if err != nil {
		return nil, err
	}
	if id, ok := parsed.intSegment(segmentIndex); ok {
		ids = append(ids, id)
	} else if id := formInt(req, "id"); id != 0 {
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Controller) writeResult(w http.ResponseWriter, payload any) {
	body, err := c.encoder.Encode(payload)
	if err != nil {
		c.writeError(w, goerrors.Wrap(err, goerrors.CategoryInternal, "rest: encode response").
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.GatewayErrorInternal))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (c *Controller) writeError(w http.ResponseWriter, err error) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "rest: request failed").
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.GatewayErrorInternal)
	}
	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body, encodeErr := c.encoder.Encode(map[string]any{
		"error": core.WireMessage(richErr),
		"code":  richErr.TextCode,
	})
	if encodeErr != nil {
		http.Error(w, core.WireMessage(richErr), status)
		return
	}
	c.logger.Error("request failed",
		"status", status,
		"code", richErr.TextCode,
		"error", richErr.Message,
	)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func unknownCommand() error {
	return goerrors.New(core.WireErrorUnknownCommand, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.GatewayErrorUnknownCommand)
}

func methodNotAllowed(method string) error {
	return goerrors.New("method "+method+" is not allowed for this command", goerrors.CategoryBadInput).
		WithCode(http.StatusMethodNotAllowed).
		WithTextCode(core.GatewayErrorOperationFailed)
}

func badInput(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, err.Error()).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.GatewayErrorOperationFailed)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func firstNonZero(values ...int64) int64 {
	for _, value := range values {
		if value != 0 {
			return value
		}
	}
	return 0
}
