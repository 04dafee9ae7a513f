package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"dicevault/internal/broker"
	"dicevault/internal/cache"
	"dicevault/internal/config"
	"dicevault/internal/counter"
	"dicevault/internal/database"
	"dicevault/internal/game"
	"dicevault/internal/ledger"
)

type FiberServer struct {
	*fiber.App

	cfg         *config.Config
	store       ledger.Store
	db          database.Service
	cache       cache.Service
	nats        *nats.Conn
	gameManager *game.Manager
	gameHub     *game.Hub
	gameFactory *game.GameFactory
	counters    *counter.Service
}

// backends are the connections a server owns and closes on shutdown.
type backends struct {
	store ledger.Store
	db    database.Service
	cache cache.Service
	nats  *nats.Conn
}

// New opens the configured store backend and optional NATS connection and
// wires the games on top.
func New(cfg *config.Config) (*FiberServer, error) {
	b, err := openBackends(cfg)
	if err != nil {
		return nil, err
	}
	return newFiberServer(cfg, b), nil
}

func openBackends(cfg *config.Config) (backends, error) {
	var b backends

	switch cfg.StoreBackend {
	case config.BackendMemory:
		b.store = ledger.NewMemoryStore()
	case config.BackendRedis:
		svc, err := cache.New(cfg.Redis)
		if err != nil {
			return b, err
		}
		b.cache = svc
		b.store = cache.NewStore(svc.GetClient(), cache.DEFAULT_KEY_PREFIX)
	case config.BackendPostgres, config.BackendSQLite:
		svc, err := database.New(cfg.StoreBackend, cfg.Database)
		if err != nil {
			return b, err
		}
		if err := database.RunMigrations(svc.DB(), svc.Dialect()); err != nil {
			svc.Close()
			return b, err
		}
		b.db = svc
		b.store = database.NewStore(svc)
	default:
		return b, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.NATS.URL != "" {
		conn, err := broker.Connect(cfg.NATS)
		if err != nil {
			b.close()
			return b, err
		}
		b.nats = conn
	}

	log.Printf("[SERVER] Ledger backend: %s", cfg.StoreBackend)
	return b, nil
}

func (b backends) close() {
	if b.nats != nil {
		b.nats.Close()
	}
	if b.cache != nil {
		b.cache.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
}

func newFiberServer(cfg *config.Config, b backends) *FiberServer {
	hub := game.NewHub()
	broadcasters := []game.Broadcaster{hub}
	if b.nats != nil {
		broadcasters = append(broadcasters, broker.NewPublisher(b.nats, cfg.NATS.Subject))
	}

	factory := game.NewGameFactory()
	for _, gameType := range game.GameTypes() {
		engine, err := game.NewEngine(gameType, b.store)
		if err != nil {
			// both game types are known, this cannot happen
			panic(err)
		}
		factory.RegisterEngine(engine)
	}

	manager := game.NewManager(factory, cfg.QueueSize, cfg.SettleTimeout, broadcasters...)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "dicevault",
			AppName:       "dicevault",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		cfg:         cfg,
		store:       b.store,
		db:          b.db,
		cache:       b.cache,
		nats:        b.nats,
		gameManager: manager,
		gameHub:     hub,
		gameFactory: factory,
		counters:    counter.NewService(b.store),
	}

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	return server
}

// Start runs the hub and settlement loop and, when an authority is
// configured, initializes every game that is not yet initialized.
func (s *FiberServer) Start(ctx context.Context) error {
	go s.gameHub.Run()
	s.gameManager.Start(ctx)

	if s.cfg.Authority != "" {
		authority, err := ledger.ParseAddress(s.cfg.Authority)
		if err != nil {
			return fmt.Errorf("GAME_AUTHORITY: %w", err)
		}
		for _, gameType := range s.gameFactory.Types() {
			engine, _ := s.gameFactory.GetEngine(gameType)
			_, err := engine.Initialize(ctx, authority, s.cfg.HouseEdge)
			if err != nil && !errors.Is(err, game.ErrAlreadyInitialized) {
				return fmt.Errorf("initialize %s: %w", gameType, err)
			}
		}
	}

	log.Println("[SERVER] Game manager and hub started")
	return nil
}

// Shutdown gracefully shuts down the server and game components
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	err := s.App.ShutdownWithTimeout(10 * time.Second)

	if s.gameManager != nil {
		s.gameManager.Stop()
	}
	if s.gameHub != nil {
		s.gameHub.Stop()
	}

	backends{db: s.db, cache: s.cache, nats: s.nats}.close()
	return err
}
