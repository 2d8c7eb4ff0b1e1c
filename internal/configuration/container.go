package configuration

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"loftwire/internal/auth"
	"loftwire/internal/db"
	"loftwire/internal/handler"
	"loftwire/internal/hub"
	"loftwire/internal/push"
	"loftwire/internal/repo"
)

type Container struct {
	Hub            *hub.Hub
	MonitorHandler handler.MonitorHandler
	HistoryHandler handler.HistoryHandler
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

// BuildContainer wires every component of the service. The config
// file path comes from LOFTWIRE_CONFIG; an empty value means
// environment-only configuration.
func BuildContainer() (*Container, error) {
	config, err := LoadConfig(os.Getenv("LOFTWIRE_CONFIG"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, fmt.Errorf("open mongo connection: %w", err)
	}

	store := repo.NewStore(con, logger)
	users := repo.NewUserStore(con)

	verifier := auth.NewVerifier(auth.Config{
		Secret: []byte(config.Auth.Secret),
		Issuer: config.Auth.Issuer,
	})

	var dispatcher push.Dispatcher
	if config.Push.Endpoint != "" {
		dispatcher = push.NewHTTPDispatcher(config.Push.Endpoint, logger)
	} else {
		dispatcher = push.NewNopDispatcher()
	}

	h := hub.NewHub(hub.Deps{
		Store:          store,
		Users:          users,
		Push:           dispatcher,
		Verifier:       verifier,
		Metrics:        hub.NewMetrics(prometheus.DefaultRegisterer),
		Logger:         logger,
		AllowedOrigins: config.Cors.AllowedOrigins,
	})

	return &Container{
		Hub:            h,
		MonitorHandler: handler.NewMonitorHandler(hub.NewMonitorService(h)),
		HistoryHandler: handler.NewHistoryHandler(store),
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
