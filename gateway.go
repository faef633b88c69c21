package gateway

import "github.com/goliatone/go-gateway/core"

type Config = core.Config

type TokenConfig = core.TokenConfig

type SweepConfig = core.SweepConfig

type Option = core.Option

type Service = core.Service

type TokenService = core.TokenService
type TokenSweeper = core.TokenSweeper
type TokenStore = core.TokenStore
type DataStore = core.DataStore
type StoreResolver = core.StoreResolver
type EntityRegistry = core.EntityRegistry

type Caller = core.Caller
type Record = core.Record
type RelationRef = core.RelationRef
type Clause = core.Clause
type SearchOptions = core.SearchOptions
type VersionInfo = core.VersionInfo

type AuthenticateRequest = core.AuthenticateRequest
type AuthenticateResponse = core.AuthenticateResponse
type SearchRequest = core.SearchRequest
type SearchResult = core.SearchResult
type ReadRequest = core.ReadRequest
type CreateRequest = core.CreateRequest
type WriteRequest = core.WriteRequest
type UnlinkRequest = core.UnlinkRequest
type CallRequest = core.CallRequest

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithTokenStore      = core.WithTokenStore
	WithDataStore       = core.WithDataStore
	WithEntityRegistry  = core.WithEntityRegistry
	WithStoreResolver   = core.WithStoreResolver
	WithVersionInfo     = core.WithVersionInfo
)

var (
	NewService        = core.NewService
	NewTokenService   = core.NewTokenService
	NewTokenSweeper   = core.NewTokenSweeper
	NewEntityRegistry = core.NewEntityRegistry
	DefaultConfig     = core.DefaultConfig
)
