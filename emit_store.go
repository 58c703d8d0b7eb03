package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// storeEmitter writes raw records into the package store. All writes of a
// run share one transaction that is committed exactly once.
type storeEmitter struct {
	store    *PackageStore
	infoOnly bool
	hooks    storeHooks
	log      *zap.SugaredLogger

	tx *storeTx
}

func newStoreEmitter(store *PackageStore, infoOnly bool, hooks storeHooks, log *zap.SugaredLogger) *storeEmitter {
	return &storeEmitter{store: store, infoOnly: infoOnly, hooks: hooks, log: log}
}

func (e *storeEmitter) Name() string { return "store" }

func (e *storeEmitter) Begin(ctx context.Context) error {
	if e.tx != nil {
		return errors.New("store emitter: batch already started")
	}
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	e.tx = tx
	return e.runHooks(ctx, e.hooks.BeforeData, "before_data")
}

func (e *storeEmitter) Emit(ctx context.Context, rec PackageRecord) error {
	if e.tx == nil {
		return errors.New("store emitter: Emit called outside a batch")
	}
	if err := e.tx.UpsertInfo(ctx, rec); err != nil {
		return err
	}
	if e.infoOnly {
		return nil
	}
	if err := e.tx.UpsertDependencies(ctx, rec); err != nil {
		return err
	}
	return e.tx.UpsertInstallation(ctx, rec)
}

func (e *storeEmitter) Commit(ctx context.Context) error {
	if e.tx == nil {
		return errors.New("store emitter: Commit called outside a batch")
	}
	if err := e.runHooks(ctx, e.hooks.AfterData, "after_data"); err != nil {
		return err
	}
	tx := e.tx
	e.tx = nil
	return tx.Commit()
}

// Close rolls back an unfinished batch and closes the store.
func (e *storeEmitter) Close() error {
	var rbErr error
	if e.tx != nil {
		rbErr = e.tx.Rollback()
		e.tx = nil
		e.log.Warnf("batch rolled back, nothing was committed")
	}
	return errors.Join(rbErr, e.store.Close())
}

func (e *storeEmitter) runHooks(ctx context.Context, hooks []hookFile, phase string) error {
	if len(hooks) == 0 {
		return nil
	}
	e.log.Infof("running %s hooks (%d files)...", phase, len(hooks))
	for _, h := range hooks {
		e.log.Debugf("  %s: %d statements", h.Path, len(h.Statements))
		for i, stmt := range h.Statements {
			if err := e.tx.Exec(ctx, stmt); err != nil {
				return storeErr(fmt.Sprintf("hook %s: %s: statement %d", phase, h.Path, i+1),
					fmt.Errorf("%w\nSQL: %s", err, stmt))
			}
		}
	}
	return nil
}
