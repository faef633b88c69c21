package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-gateway/core"
)

// RepositoryFactory wires the SQL-backed gateway collaborators from a
// single database handle: the token store, the entity data store and the
// label resolver behind it.
type RepositoryFactory struct {
	db          *bun.DB
	descriptors []EntityDescriptor
	cache       repositorycache.CacheService

	tokenStore *TokenStore
	dataStore  *SQLDataStore
	labels     LabelResolver
}

type FactoryOption func(*RepositoryFactory)

func WithEntities(descriptors ...EntityDescriptor) FactoryOption {
	return func(f *RepositoryFactory) {
		f.descriptors = append(f.descriptors, descriptors...)
	}
}

// WithLabelCache enables cached label resolution. Without it labels are
// read from the entity tables on every lookup.
func WithLabelCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(options ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, options ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(options...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, options ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(options...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.tokenStore != nil && f.dataStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) initStores() error {
	tokenStore, err := NewTokenStore(f.db)
	if err != nil {
		return err
	}
	f.tokenStore = tokenStore

	labelStore, err := NewLabelStore(f.db, f.descriptors...)
	if err != nil {
		return err
	}
	f.labels = labelStore
	if f.cache != nil {
		cached, err := NewCachedLabelStore(labelStore, f.cache)
		if err != nil {
			return err
		}
		f.labels = cached
	}

	dataStore, err := NewSQLDataStore(f.db, f.labels, f.descriptors...)
	if err != nil {
		return err
	}
	f.dataStore = dataStore
	return nil
}

func (f *RepositoryFactory) TokenStore() core.TokenStore {
	if f == nil {
		return nil
	}
	return f.tokenStore
}

func (f *RepositoryFactory) DataStore() core.DataStore {
	if f == nil {
		return nil
	}
	return f.dataStore
}

func (f *RepositoryFactory) Labels() LabelResolver {
	if f == nil {
		return nil
	}
	return f.labels
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
