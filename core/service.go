package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var defaultVersionInfo = VersionInfo{
	ServerVersion:     "1.0.0",
	ServerVersionInfo: []int{1, 0, 0},
	ServerSerie:       "1.0",
	APIVersion:        1,
}

// Service is the generic dispatch gateway: one entry point per supported
// operation, each running the uniform preamble (store resolution, token
// validation, principal binding) before touching the data store, and each
// converting data-access failures into structured gateway errors after
// requesting a transaction rollback.
type Service struct {
	config         Config
	logger         Logger
	loggerProvider LoggerProvider
	errorFactory   ErrorFactory
	errorMapper    ErrorMapper
	tokens         *TokenService
	tokenStore     TokenStore
	dataStore      DataStore
	registry       *EntityRegistry
	storeResolver  StoreResolver
	version        VersionInfo
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	provider, logger := glog.Resolve("gateway", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("gateway"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewEntityRegistry()
	}
	if builder.tokenStore == nil {
		builder.tokenStore = NewMemoryTokenStore()
	}
	if builder.dataStore == nil {
		return nil, builder.errorMapper(fmt.Errorf("core: data store is required"))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, builder.errorMapper(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, builder.errorMapper(err)
	}

	tokens, err := NewTokenService(builder.tokenStore, finalConfig)
	if err != nil {
		return nil, builder.errorMapper(err)
	}

	resolver := builder.storeResolver
	if resolver == nil {
		resolver = StaticStoreResolver{
			Default: finalConfig.ServiceName,
			Stores:  map[string]bool{finalConfig.ServiceName: true},
		}
	}

	version := defaultVersionInfo
	if builder.version != nil {
		version = *builder.version
	}

	return &Service{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		errorFactory:   builder.errorFactory,
		errorMapper:    builder.errorMapper,
		tokens:         tokens,
		tokenStore:     builder.tokenStore,
		dataStore:      builder.dataStore,
		registry:       builder.registry,
		storeResolver:  resolver,
		version:        version,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Tokens() *TokenService {
	if s == nil {
		return nil
	}
	return s.tokens
}

func (s *Service) Registry() *EntityRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

// Version returns the unauthenticated version metadata payload.
func (s *Service) Version() VersionInfo {
	if s == nil {
		return defaultVersionInfo
	}
	return s.version
}

type AuthenticateRequest struct {
	Store    string
	Login    string
	Password string
}

type AuthenticateResponse struct {
	Token string
}

type SearchRequest struct {
	Store   string
	Token   string
	Entity  string
	ID      int64
	Domain  []Clause
	Context map[string]any
	Count   bool
	Limit   int
	Offset  int
	Order   string
}

type SearchResult struct {
	IDs     []int64
	Total   int
	Counted bool
}

type ReadRequest struct {
	Store   string
	Token   string
	Entity  string
	ID      int64
	Domain  []Clause
	Fields  []string
	Context map[string]any
	Limit   int
	Offset  int
	Order   string
}

type CreateRequest struct {
	Store   string
	Token   string
	Entity  string
	Values  Record
	Context map[string]any
}

type WriteRequest struct {
	Store   string
	Token   string
	Entity  string
	IDs     []int64
	Values  Record
	Context map[string]any
}

type UnlinkRequest struct {
	Store   string
	Token   string
	Entity  string
	IDs     []int64
	Context map[string]any
}

type CallRequest struct {
	Store   string
	Token   string
	Entity  string
	Method  string
	IDs     []int64
	Args    []any
	Kwargs  map[string]any
	Context map[string]any
}

// Authenticate verifies credentials against the resolved store and issues a
// bearer token for the authenticated principal.
func (s *Service) Authenticate(ctx context.Context, req AuthenticateRequest) (AuthenticateResponse, error) {
	startedAt := time.Now()
	if err := requireArguments(map[string]string{
		"db":       req.Store,
		"login":    req.Login,
		"password": req.Password,
	}); err != nil {
		return AuthenticateResponse{}, s.fail(ctx, startedAt, "authenticate", err, nil)
	}
	store, err := s.resolveStore(ctx, req.Store)
	if err != nil {
		return AuthenticateResponse{}, s.fail(ctx, startedAt, "authenticate", err, nil)
	}

	ownerID, ok, err := s.dataStore.Authenticate(ctx, store, req.Login, req.Password)
	if err != nil {
		return AuthenticateResponse{}, s.fail(ctx, startedAt, "authenticate", operationFailed(err), map[string]any{"store": store})
	}
	if !ok {
		return AuthenticateResponse{}, s.fail(ctx, startedAt, "authenticate", invalidLogin(), map[string]any{"store": store})
	}

	value, err := s.tokens.Issue(ctx, ownerID)
	if err != nil {
		return AuthenticateResponse{}, s.fail(ctx, startedAt, "authenticate", err, map[string]any{"store": store})
	}
	s.observeOperation(ctx, startedAt, "authenticate", nil, map[string]any{"store": store, "user_id": ownerID})
	return AuthenticateResponse{Token: value}, nil
}

// RefreshToken extends a token's lifetime; the preamble validates the token
// first, so only live tokens reach the existence-based refresh.
func (s *Service) RefreshToken(ctx context.Context, store string, token string) (bool, error) {
	startedAt := time.Now()
	if _, err := s.preamble(ctx, store, token); err != nil {
		return false, s.fail(ctx, startedAt, "refresh", err, nil)
	}
	refreshed, err := s.tokens.Refresh(ctx, token)
	if err != nil {
		return false, s.fail(ctx, startedAt, "refresh", err, nil)
	}
	s.observeOperation(ctx, startedAt, "refresh", nil, nil)
	return refreshed, nil
}

// TokenLifetime reports the seconds until the token expires; found=false
// maps to the legacy boolean false body.
func (s *Service) TokenLifetime(ctx context.Context, store string, token string) (int64, bool, error) {
	startedAt := time.Now()
	if _, err := s.preamble(ctx, store, token); err != nil {
		return 0, false, s.fail(ctx, startedAt, "life", err, nil)
	}
	seconds, found, err := s.tokens.RemainingLifetime(ctx, token)
	if err != nil {
		return 0, false, s.fail(ctx, startedAt, "life", err, nil)
	}
	s.observeOperation(ctx, startedAt, "life", nil, nil)
	return seconds, found, nil
}

// CloseToken revokes the presented token.
func (s *Service) CloseToken(ctx context.Context, store string, token string) (bool, error) {
	startedAt := time.Now()
	if _, err := s.preamble(ctx, store, token); err != nil {
		return false, s.fail(ctx, startedAt, "close", err, nil)
	}
	revoked, err := s.tokens.Revoke(ctx, token)
	if err != nil {
		return false, s.fail(ctx, startedAt, "close", err, nil)
	}
	s.observeOperation(ctx, startedAt, "close", nil, nil)
	return revoked, nil
}

func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	startedAt := time.Now()
	caller, err := s.preamble(ctx, req.Store, req.Token)
	if err != nil {
		return SearchResult{}, s.fail(ctx, startedAt, "search", err, nil)
	}
	entity := s.entityOrDefault(req.Entity)
	opt := SearchOptions{
		Domain:  domainWithID(req.Domain, req.ID),
		Limit:   s.limitOrDefault(req.Limit),
		Offset:  req.Offset,
		Order:   req.Order,
		Context: mergeContext(caller.Context, req.Context),
	}
	fields := map[string]any{"entity": entity, "user_id": caller.UserID}

	if req.Count {
		total, err := s.dataStore.SearchCount(ctx, caller, entity, opt)
		if err != nil {
			return SearchResult{}, s.failRollback(ctx, startedAt, "search", operationFailed(err), fields)
		}
		s.observeOperation(ctx, startedAt, "search", nil, fields)
		return SearchResult{Total: total, Counted: true}, nil
	}

	ids, err := s.dataStore.Search(ctx, caller, entity, opt)
	if err != nil {
		return SearchResult{}, s.failRollback(ctx, startedAt, "search", operationFailed(err), fields)
	}
	s.observeOperation(ctx, startedAt, "search", nil, fields)
	return SearchResult{IDs: ids}, nil
}

func (s *Service) Read(ctx context.Context, req ReadRequest) ([]Record, error) {
	startedAt := time.Now()
	caller, err := s.preamble(ctx, req.Store, req.Token)
	if err != nil {
		return nil, s.fail(ctx, startedAt, "read", err, nil)
	}
	entity := s.entityOrDefault(req.Entity)
	opt := SearchOptions{
		Domain:  domainWithID(req.Domain, req.ID),
		Fields:  req.Fields,
		Limit:   s.limitOrDefault(req.Limit),
		Offset:  req.Offset,
		Order:   req.Order,
		Context: mergeContext(caller.Context, req.Context),
	}
	fields := map[string]any{"entity": entity, "user_id": caller.UserID}

	records, err := s.dataStore.SearchRead(ctx, caller, entity, opt)
	if err != nil {
		return nil, s.failRollback(ctx, startedAt, "read", operationFailed(err), fields)
	}
	s.observeOperation(ctx, startedAt, "read", nil, fields)
	return records, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (int64, error) {
	startedAt := time.Now()
	caller, err := s.preamble(ctx, req.Store, req.Token)
	if err != nil {
		return 0, s.fail(ctx, startedAt, "create", err, nil)
	}
	entity := s.entityOrDefault(req.Entity)
	caller.Context = mergeContext(caller.Context, req.Context)
	fields := map[string]any{"entity": entity, "user_id": caller.UserID}

	id, err := s.dataStore.Create(ctx, caller, entity, req.Values)
	if err != nil {
		return 0, s.failRollback(ctx, startedAt, "create", operationFailed(err), fields)
	}
	s.observeOperation(ctx, startedAt, "create", nil, fields)
	return id, nil
}

func (s *Service) Write(ctx context.Context, req WriteRequest) (bool, error) {
	startedAt := time.Now()
	if err := requireArguments(map[string]string{"ids": idsPresence(req.IDs)}); err != nil {
		return false, s.fail(ctx, startedAt, "write", err, nil)
	}
	caller, err := s.preamble(ctx, req.Store, req.Token)
	if err != nil {
		return false, s.fail(ctx, startedAt, "write", err, nil)
	}
	entity := s.entityOrDefault(req.Entity)
	caller.Context = mergeContext(caller.Context, req.Context)
	fields := map[string]any{"entity": entity, "user_id": caller.UserID}

	ok, err := s.dataStore.Write(ctx, caller, entity, req.IDs, req.Values)
	if err != nil {
		return false, s.failRollback(ctx, startedAt, "write", operationFailed(err), fields)
	}
	s.observeOperation(ctx, startedAt, "write", nil, fields)
	return ok, nil
}

func (s *Service) Unlink(ctx context.Context, req UnlinkRequest) (bool, error) {
	startedAt := time.Now()
	if err := requireArguments(map[string]string{"ids": idsPresence(req.IDs)}); err != nil {
		return false, s.fail(ctx, startedAt, "unlink", err, nil)
	}
	caller, err := s.preamble(ctx, req.Store, req.Token)
	if err != nil {
		return false, s.fail(ctx, startedAt, "unlink", err, nil)
	}
	entity := s.entityOrDefault(req.Entity)
	caller.Context = mergeContext(caller.Context, req.Context)
	fields := map[string]any{"entity": entity, "user_id": caller.UserID}

	ok, err := s.dataStore.Unlink(ctx, caller, entity, req.IDs)
	if err != nil {
		return false, s.failRollback(ctx, startedAt, "unlink", operationFailed(err), fields)
	}
	s.observeOperation(ctx, startedAt, "unlink", nil, fields)
	return ok, nil
}

// Call dispatches a named entity method. Only methods registered on the
// EntityRegistry are callable; restricting the callable surface is the
// registrant's responsibility, not the gateway's.
func (s *Service) Call(ctx context.Context, req CallRequest) (any, error) {
	startedAt := time.Now()
	if err := requireArguments(map[string]string{"method": req.Method}); err != nil {
		return nil, s.fail(ctx, startedAt, "call", err, nil)
	}
	caller, err := s.preamble(ctx, req.Store, req.Token)
	if err != nil {
		return nil, s.fail(ctx, startedAt, "call", err, nil)
	}
	entity := s.entityOrDefault(req.Entity)
	merged := mergeContext(caller.Context, req.Context)
	caller.Context = merged
	fields := map[string]any{"entity": entity, "method": req.Method, "user_id": caller.UserID}

	handler, ok := s.registry.Resolve(entity, req.Method)
	if !ok {
		return nil, s.fail(ctx, startedAt, "call",
			operationFailed(fmt.Errorf("core: method %q is not registered on entity %q", req.Method, entity)),
			fields)
	}

	result, err := handler(ctx, caller, MethodInvocation{
		Entity:  entity,
		Method:  req.Method,
		IDs:     req.IDs,
		Args:    req.Args,
		Kwargs:  req.Kwargs,
		Context: merged,
	})
	if err != nil {
		return nil, s.failRollback(ctx, startedAt, "call", operationFailed(err), fields)
	}
	s.observeOperation(ctx, startedAt, "call", nil, fields)
	return result, nil
}

// preamble runs the shared request prefix: store resolution, gateway
// availability, token validation, principal binding.
func (s *Service) preamble(ctx context.Context, store string, token string) (Caller, error) {
	if s == nil || s.tokens == nil {
		return Caller{}, fmt.Errorf("core: service is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return Caller{}, forbidden()
	}
	resolved, err := s.resolveStore(ctx, store)
	if err != nil {
		return Caller{}, err
	}
	ownerID, err := s.tokens.Validate(ctx, token)
	if err != nil {
		// Missing, unknown and expired tokens are indistinguishable here.
		return Caller{}, forbidden()
	}
	return Caller{UserID: ownerID, Store: resolved, Context: map[string]any{}}, nil
}

func (s *Service) resolveStore(ctx context.Context, requested string) (string, error) {
	resolved, err := s.storeResolver.Resolve(ctx, requested)
	if err != nil {
		return "", invalidStore()
	}
	active, err := s.storeResolver.Active(ctx, resolved)
	if err != nil || !active {
		return "", apiUnavailable()
	}
	return resolved, nil
}

func (s *Service) entityOrDefault(entity string) string {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return s.config.DefaultEntity
	}
	return entity
}

func (s *Service) limitOrDefault(limit int) int {
	if limit <= 0 {
		return s.config.searchLimit()
	}
	return limit
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return defaultErrorMapper(err)
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return nil
	}
	return mapped
}

// fail finalizes a request on an error path without touching the store.
func (s *Service) fail(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) error {
	mapped := s.mapError(err)
	s.observeOperation(ctx, startedAt, operation, mapped, fields)
	return mapped
}

// failRollback additionally asks the collaborator to undo any partial
// mutation so the client-visible state matches "nothing happened".
func (s *Service) failRollback(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) error {
	if s != nil && s.dataStore != nil {
		if rollbackErr := s.dataStore.Rollback(ctx); rollbackErr != nil && s.logger != nil {
			s.logger.WithContext(ctx).Error("transaction rollback failed",
				"error", rollbackErr.Error(),
				"operation", operation,
			)
		}
	}
	return s.fail(ctx, startedAt, operation, err, fields)
}

func requireArguments(params map[string]string) error {
	missing := make([]string, 0, len(params))
	for name, value := range params {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return goerrors.New(
		fmt.Sprintf(WireErrorMissingArgsFmt, missing),
		goerrors.CategoryBadInput,
	).WithCode(gatewayHTTPStatus(goerrors.CategoryBadInput)).
		WithTextCode(GatewayErrorMissingArguments)
}

func idsPresence(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	return "present"
}

func invalidLogin() error {
	return goerrors.New(WireErrorInvalidLogin, goerrors.CategoryAuth).
		WithCode(gatewayHTTPStatus(goerrors.CategoryAuth)).
		WithTextCode(GatewayErrorInvalidLogin)
}

func forbidden() error {
	return goerrors.New(WireErrorTokenInvalid, goerrors.CategoryAuthz).
		WithCode(gatewayHTTPStatus(goerrors.CategoryAuthz)).
		WithTextCode(GatewayErrorTokenInvalid)
}

func invalidStore() error {
	return goerrors.New(WireErrorInvalidStore, goerrors.CategoryNotFound).
		WithCode(gatewayHTTPStatus(goerrors.CategoryNotFound)).
		WithTextCode(GatewayErrorInvalidStore)
}

func apiUnavailable() error {
	return goerrors.New(WireErrorAPIUnavailable, goerrors.CategoryInternal).
		WithCode(gatewayHTTPStatus(goerrors.CategoryInternal)).
		WithTextCode(GatewayErrorAPIUnavailable)
}

func operationFailed(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryOperation, err.Error()).
		WithCode(gatewayHTTPStatus(goerrors.CategoryOperation)).
		WithTextCode(GatewayErrorOperationFailed)
}

func domainWithID(domain []Clause, id int64) []Clause {
	if id == 0 {
		return domain
	}
	out := make([]Clause, 0, len(domain)+1)
	out = append(out, domain...)
	out = append(out, Clause{Field: "id", Operator: "=", Value: id})
	return out
}

func mergeContext(base map[string]any, overlay map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(overlay))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range overlay {
		merged[key] = value
	}
	return merged
}
