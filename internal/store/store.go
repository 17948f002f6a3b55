// Package store opens the document store selected by STORE_DRIVER.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"api_ventas/internal/config"
	"api_ventas/internal/provision"
	"api_ventas/internal/sales"
	"api_ventas/internal/store/appwrite"
	"api_ventas/internal/store/mongostore"
)

// CloseFunc releases the connections opened by an Open* call.
type CloseFunc func() error

func noopClose() error { return nil }

func appwriteClient(cfg *config.Config, logger *zap.Logger) *appwrite.Client {
	return appwrite.NewClient(appwrite.Options{
		Endpoint:  cfg.AppwriteEndpoint,
		ProjectID: cfg.AppwriteProjectID,
		APIKey:    cfg.AppwriteAPIKey,
		Timeout:   cfg.StoreTimeout,
	}, logger.Named("appwrite"))
}

// OpenSales returns the sales.Storage for cfg.StoreDriver.
func OpenSales(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sales.Storage, CloseFunc, error) {
	switch cfg.StoreDriver {
	case config.DriverAppwrite:
		client := appwriteClient(cfg, logger)
		return appwrite.NewSalesStore(client, cfg.AppwriteDatabaseID, cfg.AppwriteCollectionID), client.Close, nil

	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI, logger)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		closeFn := func() error { return mongostore.Disconnect(client, logger) }
		return mongostore.NewSalesStore(coll), closeFn, nil

	case config.DriverMemory:
		logger.Warn("using in-memory storage; sales are lost on restart")
		return sales.NewLocalStorage(), noopClose, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// OpenProvisioner returns the provision.Backend for cfg.StoreDriver.
func OpenProvisioner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (provision.Backend, CloseFunc, error) {
	switch cfg.StoreDriver {
	case config.DriverAppwrite:
		client := appwriteClient(cfg, logger)
		return appwrite.NewProvisioner(client), client.Close, nil

	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI, logger)
		if err != nil {
			return nil, nil, err
		}
		return mongostore.NewProvisioner(client), func() error { return mongostore.Disconnect(client, logger) }, nil
	}
	return nil, nil, fmt.Errorf("store driver %q cannot be provisioned", cfg.StoreDriver)
}
