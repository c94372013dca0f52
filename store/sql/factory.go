package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-payledger/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	profileStore  *ProfileStore
	timelineStore *TimelineStore
	ledgerStore   *LedgerStore
	failureStore  *FailureStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as a
// go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.ledgerStore != nil && f.failureStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) ProfileStore() core.ProfileStore {
	if f == nil {
		return nil
	}
	return f.profileStore
}

func (f *RepositoryFactory) TimelineStore() core.TimelineStore {
	if f == nil {
		return nil
	}
	return f.timelineStore
}

func (f *RepositoryFactory) LedgerStore() core.LedgerStore {
	if f == nil {
		return nil
	}
	return f.ledgerStore
}

func (f *RepositoryFactory) FailureStore() core.FailureStore {
	if f == nil {
		return nil
	}
	return f.failureStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	profileStore, err := NewProfileStore(f.db)
	if err != nil {
		return err
	}
	timelineStore, err := NewTimelineStore(f.db)
	if err != nil {
		return err
	}
	ledgerStore, err := NewLedgerStore(f.db)
	if err != nil {
		return err
	}
	failureStore, err := NewFailureStore(f.db)
	if err != nil {
		return err
	}

	f.profileStore = profileStore
	f.timelineStore = timelineStore
	f.ledgerStore = ledgerStore
	f.failureStore = failureStore
	return nil
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
