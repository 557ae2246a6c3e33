package services

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoConfig struct {
	URI      string
	Database string
	// ForceTLS12 pins the TLS version. Some Atlas clusters fail negotiation
	// from Cloud Run otherwise.
	ForceTLS12 bool
}

// ConnectMongo opens a client shared by every Mongo-backed service and pings it.
func ConnectMongo(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ForceTLS12 {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongo: ping: %w", err)
	}

	logger.Info("MongoDB connected", zap.String("db", cfg.Database))
	return client, client.Database(cfg.Database), nil
}
