package main

import (
	"context"

	"idledata/pkg/config"
	"idledata/pkg/logger"
	"idledata/pkg/store"
	"idledata/pkg/store/badgerstore"
	"idledata/pkg/store/mongostore"
)

// openStore opens the configured document store
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, error) {
	if err := cfg.RequireStore(); err != nil {
		return nil, err
	}

	switch cfg.Storage.Driver {
	case config.DriverMongo:
		return mongostore.Open(ctx, cfg.Storage.MongoURI, cfg.Storage.Database, cfg.Storage.ItemsCollection, log)
	default:
		return badgerstore.Open(cfg.Storage.BadgerPath, log)
	}
}
