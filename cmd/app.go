package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"apocaliptyx/application"
	"apocaliptyx/config"
	"apocaliptyx/database"
	"apocaliptyx/domain/events"
	"apocaliptyx/domain/services"
	"apocaliptyx/infrastructure"
	"apocaliptyx/infrastructure/cache"
	"apocaliptyx/repository"
	"apocaliptyx/repository/memory"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// app holds the wired storage, event and service layers shared by the server
// and the maintenance commands
type app struct {
	cfg *config.Config

	db          *database.DB // nil when running on the memory store
	natsClient  *infrastructure.NATSClient
	redisClient *redis.Client

	uowFactory *infrastructure.UnitOfWorkFactory
	wallet     *application.WalletService
	scenarios  *application.ScenarioService
	steals     *application.StealEngine
}

// configureLogging applies the configured level, with JSON output in production
func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, falling back to info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// appOptions controls which outbound integrations newApp connects
type appOptions struct {
	// offline drops events instead of publishing them and skips the Redis
	// cache and Discord webhook
	offline bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	// Storage
	var repoFactory infrastructure.RepositoryFactory
	if cfg.UseMemoryStore() {
		log.Println("DATABASE_URL not set, using in-memory store")
		repoFactory = memory.NewStore()
	} else {
		log.Println("Connecting to database...")
		db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
		repoFactory = repository.NewUnitOfWorkFactory(db)
		log.Println("Database connection established successfully")
	}

	if opts.offline {
		log.Println("Running offline, events will not be published")
		a.uowFactory = infrastructure.NewUnitOfWorkFactory(repoFactory, infrastructure.NewNoopEventPublisher())
		a.buildServices(nil)
		return a, nil
	}

	// Event publishing
	if cfg.NATSServers != "" {
		log.Printf("Connecting to NATS at %s...", cfg.NATSServers)
		a.natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := a.natsClient.Connect(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Println("NATS connection established successfully")
	}
	publisher := infrastructure.NewNATSEventPublisher(a.natsClient, infrastructure.NewEventSubjectMapper())
	if a.natsClient != nil {
		if err := publisher.EnsureDomainEventStream(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure event stream: %w", err)
		}
	}
	a.uowFactory = infrastructure.NewUnitOfWorkFactory(repoFactory, publisher)

	// Scenario read cache
	var readCache application.ScenarioReadCache
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = rdb
		scenarioCache := cache.NewScenarioCache(rdb, cfg.CacheTTL)
		for _, eventType := range events.ScenarioEventTypes() {
			a.uowFactory.RegisterLocalHandler(eventType, scenarioCache.HandleEvent)
		}
		readCache = scenarioCache
		log.Println("Redis scenario cache enabled")
	}

	// Discord announcements
	if cfg.DiscordWebhookID != "" && cfg.DiscordWebhookToken != "" {
		announcer, err := infrastructure.NewDiscordAnnouncer(cfg.DiscordWebhookID, cfg.DiscordWebhookToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create discord announcer: %w", err)
		}
		a.uowFactory.RegisterLocalHandler(events.EventTypeScenarioStolen, announcer.HandleEvent)
		a.uowFactory.RegisterLocalHandler(events.EventTypeShieldApplied, announcer.HandleEvent)
		log.Println("Discord steal announcements enabled")
	}

	a.buildServices(readCache)
	return a, nil
}

func (a *app) buildServices(readCache application.ScenarioReadCache) {
	cfg := a.cfg
	stealRules := services.NewStealRules(
		services.EscalatingStealCost{
			BaseCost:   cfg.StealBaseCost,
			PoolRate:   cfg.StealPoolRate,
			Escalation: cfg.StealEscalation,
		},
		services.FractionalCompensation{Rate: cfg.StealCompensationRate},
		cfg.StealCooldown,
	)
	shieldRules := services.NewShieldRules(cfg.ShieldCatalog)

	a.wallet = application.NewWalletService(a.uowFactory, cfg.StartingBalance)
	a.scenarios = application.NewScenarioService(a.uowFactory, readCache, cfg.ZeroStakePolicy)
	a.steals = application.NewStealEngine(a.uowFactory, stealRules, shieldRules, cfg.ZeroStakePolicy)
}

// health pings the database and checks the NATS connection when configured
func (a *app) health() error {
	if a.natsClient != nil && !a.natsClient.IsConnected() {
		return fmt.Errorf("nats is disconnected")
	}
	if a.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close releases connections in reverse order of creation
func (a *app) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			log.Printf("Error closing redis client: %v", err)
		}
	}
	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			log.Printf("Error closing NATS client: %v", err)
		}
	}
	if a.db != nil {
		log.Println("Closing database connection...")
		a.db.Close()
	}
}
