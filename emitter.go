package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefinitionEmitter persists migrated packages. Records are fed one at a
// time between Begin and Commit; Close releases resources and discards
// anything uncommitted where the backend supports it.
type DefinitionEmitter interface {
	// Name returns the config name of the emitter ("files", "store").
	Name() string

	// Begin prepares the backend for a batch.
	Begin(ctx context.Context) error

	// Emit persists one parsed record.
	Emit(ctx context.Context, rec PackageRecord) error

	// Commit finishes the batch.
	Commit(ctx context.Context) error

	// Close releases resources. It is safe to call after a failed Begin.
	Close() error
}

// newDefinitionEmitter builds the emitter selected by cfg. For the store
// emitter it opens the store and, unless disabled, creates the schema.
func newDefinitionEmitter(ctx context.Context, cfg *MigrationConfig, format CatalogFormat, log *zap.SugaredLogger) (DefinitionEmitter, error) {
	switch cfg.Emitter {
	case "files":
		if format.InfoOnly() {
			return nil, fmt.Errorf("the files emitter cannot ingest %s catalogs", format.Name())
		}
		log.Infof("writing definitions to %s", cfg.Output.Dir)
		return newFileEmitter(cfg.Output.Dir), nil
	case "store":
		store, err := openConfiguredStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		hooks, err := loadHooks(cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
		return newStoreEmitter(store, format.InfoOnly(), hooks, log), nil
	default:
		return nil, fmt.Errorf("unsupported emitter %q (must be files or store)", cfg.Emitter)
	}
}

// openConfiguredStore opens the store from cfg and applies the schema when
// store.create_schema is set.
func openConfiguredStore(ctx context.Context, cfg *MigrationConfig, log *zap.SugaredLogger) (*PackageStore, error) {
	store, err := openPackageStore(ctx, cfg.Store.Type, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	d := store.Dialect()
	if name, err := d.ExtractDBName(cfg.Store.DSN); err == nil {
		log.Infof("connected to %s store '%s'", d.Name(), name)
	}

	if cfg.Store.CreateSchema {
		log.Debugf("creating store tables if absent")
		if err := store.CreateSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}
