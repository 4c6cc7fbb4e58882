package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"marketchat/internal/app/server"
	"marketchat/internal/config"
	"marketchat/internal/core/contracts"
	"marketchat/internal/core/domain"
	"marketchat/internal/core/services"
	"marketchat/internal/platform/logger"
	"marketchat/internal/platform/telemetry"
	"marketchat/internal/plugins/memory"
	"marketchat/internal/plugins/postgres"
	"marketchat/internal/plugins/publisher"
	redisPlugin "marketchat/internal/plugins/redis"
)

type userWriter interface {
	UpsertUser(ctx context.Context, u domain.User) error
}

// backends is the storage selected by configuration: Postgres when DATABASE_URL is set,
// otherwise the in-memory store; Redis, when REDIS_URL is set, takes over last-seen and
// rate limiting.
type backends struct {
	store    domain.ConversationStore
	users    domain.UserDirectory
	seed     userWriter
	lastSeen contracts.LastSeenStore
	limiter  contracts.RateLimiter
	closers  []func() error
}

func (b *backends) Close() {
	for _, c := range b.closers {
		_ = c()
	}
}

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	// Logger
	log := logger.NewLogger(cfg)
	if err := cfg.ValidateAPI(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log.Info("starting api")

	otelShutdown, err := telemetry.InitTelemetry(ctx, cfg, "api")
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
		os.Exit(1)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	infra, err := openBackends(ctx, cfg, log)
	if err != nil {
		log.Error("backend setup failed", "err", err)
		os.Exit(1)
	}
	defer infra.Close()
	if err := seedUsers(ctx, infra.seed, cfg.API.SeedUsers, log); err != nil {
		log.Error("seeding users failed", "err", err)
		os.Exit(1)
	}

	// Core Services
	wsTokens, err := services.NewWSTokenService(cfg.Gateway.AuthSecret)
	if err != nil {
		log.Error("ws token service", "err", err)
		os.Exit(1)
	}
	chat := services.NewChatService(services.ChatDeps{
		Store:     infra.store,
		Users:     infra.users,
		LastSeen:  infra.lastSeen,
		Publisher: publisher.NewHTTPPublisher(cfg.Gateway.InternalURL, cfg.Gateway.InternalSecret, cfg.Gateway.PublishTimeout),
		Limiter:   infra.limiter,
		Tokens:    wsTokens,
		WSURL:     cfg.Gateway.PublicURL,
		TokenTTL:  cfg.Gateway.TokenTTL,
		Log:       log,
	})
	defer chat.Close()

	// Server
	handler := server.NewAPIHandler(server.APIDeps{
		Chat:       chat,
		Tokens:     services.NewSessionTokenService(cfg.API.JWTSecret, cfg.API.JWTIssuer),
		CORSOrigin: cfg.Gateway.CORSOrigin,
		Log:        log,
	})
	srv := server.New(cfg.API.Addr, handler, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("api stopped with error", "err", err)
		return
	}
	log.Info("api stopped")
}

// seedUsers writes active, unblocked users so a local run can start conversations without
// the account service.
func seedUsers(ctx context.Context, w userWriter, seeds []config.SeedUser, log *slog.Logger) error {
	for _, seed := range seeds {
		if err := w.UpsertUser(ctx, domain.User{ID: seed.ID, Name: seed.Name, IsActive: true}); err != nil {
			return fmt.Errorf("seed user %s: %w", seed.ID, err)
		}
	}
	if len(seeds) > 0 {
		log.Info("seeded users", "count", len(seeds))
	}
	return nil
}

func openBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.DSN != "" {
		pdb, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.closers = append(b.closers, pdb.Close)
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pdb); err != nil {
				b.Close()
				return nil, err
			}
		}
		users := postgres.NewUserRepo(pdb)
		b.store, b.users, b.lastSeen, b.seed = postgres.NewConversationRepo(pdb), users, users, users
		log.Info("postgres connected")
	} else {
		mem := memory.NewStore()
		b.store, b.users, b.lastSeen, b.seed = mem, mem, mem, mem
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	perMinute := cfg.RateLimit.MessagesPerMinute
	if cfg.Redis.URL != "" {
		rdb, err := redisPlugin.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.closers = append(b.closers, rdb.Close)
		b.lastSeen = redisPlugin.NewLastSeenStore(rdb, cfg.Redis.KeyPrefix)
		if perMinute > 0 {
			limiter, err := redisPlugin.NewFixedWindowLimiter(rdb, cfg.Redis.KeyPrefix, perMinute, time.Minute)
			if err != nil {
				b.Close()
				return nil, err
			}
			b.limiter = limiter
		}
		log.Info("redis connected")
	} else if perMinute > 0 {
		b.limiter = memory.NewFixedWindowLimiter(perMinute, time.Minute)
	}
	return b, nil
}
