package database

import (
	"context"
	"log"

	"go-fleetreport/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
)

// MongodbDB holds the report service database: event documents, the
// directory collections, run history and persisted logs.
type MongodbDB struct {
	DB *mongo.Database
}

// NewDatabase connects to MongoDB and disconnects when the app stops.
// Reads prefer secondaries since report runs never write events.
func NewDatabase(lc fx.Lifecycle, cfg *config.Config) (*MongodbDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName(cfg.AppId).
		SetReadPreference(readpref.SecondaryPreferred())
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Printf("Connected to MongoDB database %s", cfg.DBName)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Println("Disconnecting from MongoDB...")
			return client.Disconnect(ctx)
		},
	})

	return &MongodbDB{DB: client.Database(cfg.DBName)}, nil
}

// Ping checks that the primary answers. A nil handle is treated as healthy so
// tests can run without a server.
func (m *MongodbDB) Ping(ctx context.Context) error {
	if m == nil || m.DB == nil {
		return nil
	}
	return m.DB.Client().Ping(ctx, readpref.Primary())
}
