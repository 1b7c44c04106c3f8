package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/cache"
	"github.com/mcdev12/gameroom/go/internal/config"
	"github.com/mcdev12/gameroom/go/internal/room/identity"
	"github.com/mcdev12/gameroom/go/internal/room/presence"
	"github.com/mcdev12/gameroom/go/internal/room/results"
	"github.com/mcdev12/gameroom/go/internal/room/scoring"
	"github.com/mcdev12/gameroom/go/internal/room/store"
	"github.com/mcdev12/gameroom/go/internal/room/store/postgres"
	"github.com/mcdev12/gameroom/go/internal/room/store/sqlite"
)

// Service is the room gateway: live room connections plus the room and results HTTP
// endpoints.
type Service struct {
	store          store.Store
	cache          cache.Cache
	hub            *Hub
	bus            *ClusterBus
	wsHandler      *WebSocketHandler
	stateHandler   *StateHandler
	resultsHandler *results.Handler
}

// NewService opens the configured store, cache and cluster bus and wires the gateway.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	policy, err := LoadPolicy(cfg.App.PolicyFile)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := openCache(cfg.Cache)
	if err != nil {
		st.Close()
		return nil, err
	}

	clock := clockwork.NewRealClock()
	controller := presence.NewController(st, clock)
	registry := NewRegistry(controller.Sequencer())
	engine := scoring.NewEngine(st)

	var (
		bus    *ClusterBus
		fanout Broadcaster = registry
	)
	if cfg.Cluster.NATSURL != "" {
		bus, err = ConnectCluster(cfg.Cluster.NATSURL, cfg.Cluster.SubjectPrefix, registry)
		if err != nil {
			closeAll(st, c)
			return nil, err
		}
		fanout = bus
	}

	connCfg := ConnectionConfigFrom(cfg.WebSocket)
	hub := NewHub(HubOptions{
		Registry:   registry,
		Fanout:     fanout,
		Presence:   controller,
		Scoring:    engine,
		Responses:  st,
		Policy:     policy,
		SendBuffer: connCfg.SendBuffer,
	})
	resolver := identity.NewResolver([]byte(cfg.Auth.JWTSecret), st, c, cfg.Cache.TTL)

	return &Service{
		store:          st,
		cache:          c,
		hub:            hub,
		bus:            bus,
		wsHandler:      NewWebSocketHandler(hub, resolver, connCfg),
		stateHandler:   NewStateHandler(hub, st, resolver),
		resultsHandler: results.NewHandler(results.NewService(st, engine, clock), resolver),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		dsn := cfg.Database.DSN()
		if cfg.Store.AutoMigrate {
			if err := postgres.Migrate(ctx, dsn); err != nil {
				return nil, err
			}
		}
		pg, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		lite, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return lite, nil
	}
}

func openCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddress(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return rc, nil
	case "memory":
		return cache.NewMemoryCache(), nil
	default:
		return nil, nil
	}
}

func closeAll(st store.Store, c cache.Cache) {
	if c != nil {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close cache")
		}
	}
	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close store")
	}
}

// Start begins the gateway service
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway service")

	if s.bus != nil {
		if err := s.bus.Start(); err != nil {
			return err
		}
	}

	<-ctx.Done()
	log.Info().Msg("room gateway service shutting down")
	return nil
}

// Stop closes every live connection and waits for the sessions to leave their rooms,
// then closes the cluster bus, cache and store.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.hub.Drain(ctx, "server shutting down"); err != nil {
		log.Error().Err(err).Msg("sessions still open at shutdown")
	}

	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close cluster bus")
		}
	}
	closeAll(s.store, s.cache)

	log.Info().Msg("room gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and HTTP routes
func (s *Service) RegisterRoutes(r chi.Router) {
	s.wsHandler.RegisterRoutes(r)
	s.stateHandler.RegisterStateRoutes(r)
	s.resultsHandler.RegisterRoutes(r)
	log.Info().Msg("room gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() RegistryStats {
	return s.hub.Registry().Stats()
}
