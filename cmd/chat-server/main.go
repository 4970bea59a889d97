package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sasachat/sasachat/internal/cache"
	"github.com/sasachat/sasachat/internal/config"
	"github.com/sasachat/sasachat/internal/events"
	"github.com/sasachat/sasachat/internal/gateway"
	"github.com/sasachat/sasachat/internal/handler"
	"github.com/sasachat/sasachat/internal/hub"
	"github.com/sasachat/sasachat/internal/identity"
	"github.com/sasachat/sasachat/internal/idgen"
	"github.com/sasachat/sasachat/internal/registry"
	"github.com/sasachat/sasachat/internal/repository"
	"github.com/sasachat/sasachat/internal/service"
	"github.com/sasachat/sasachat/internal/store"
	"github.com/sasachat/sasachat/pkg/database"
	"github.com/sasachat/sasachat/pkg/jwt"
	pkglog "github.com/sasachat/sasachat/pkg/log"
	"github.com/sasachat/sasachat/pkg/middleware"
	"github.com/sasachat/sasachat/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Connect to database using GORM
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	roomRepo := repository.NewGormRoomRepository(db)
	if err := roomRepo.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate rooms")
	}

	ids, err := idgen.NewSnowflake(cfg.NodeID, idgen.DefaultEpoch)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create id generator")
	}

	// Initialize message store
	var messages store.MessageStore
	switch cfg.Store.Driver {
	case "cassandra":
		cs, err := store.NewCassandraMessageStore(cfg.Cassandra, ids)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to cassandra")
		}
		messages = cs
	default:
		gs := store.NewGormMessageStore(db, ids, cfg.Store.CheckRoom)
		if err := gs.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate messages")
		}
		messages = gs
	}
	defer messages.Close()
	logger.Info().Str("driver", cfg.Store.Driver).Msg("message store ready")

	// Shared Redis client for the presence mirror and history cache
	var rdb *redis.Client
	if cfg.Registry.Mirror || cfg.Cache.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	// Membership registry
	var reg registry.Registry = registry.NewMemoryRegistry()
	if cfg.Registry.Mirror {
		mirror := registry.NewRedisMirror(reg, registry.NewRedisSetStore(rdb), cfg.Registry.Redis)
		mirror.Start(ctx)
		defer mirror.Stop()
		reg = mirror
	}

	// Event bus
	bus, err := pubsub.NewPubSub(cfg.Bus)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event bus")
	}
	if bus != nil {
		defer bus.Close()
		logger.Info().Str("driver", cfg.Bus.Driver).Msg("event bus connected")
	}

	// Connection hub and room gateway
	h := hub.NewHub(cfg.WebSocket)
	go h.Run()

	var publisher pubsub.Publisher
	if bus != nil {
		publisher = bus
	}
	gw := gateway.New(h, reg, messages, ids, roomRepo, publisher, cfg.Gateway)

	// History pager, optionally cached
	var pager cache.Pager = messages
	var invalidator events.CacheInvalidator
	if cfg.Cache.Enabled {
		cached := cache.NewCachedPager(messages, cache.NewRedisPageCache(rdb, cfg.Cache.Prefix), cfg.Cache.Prefix, cfg.Cache.TTL)
		pager = cached
		invalidator = cached
	}

	// Room lifecycle events
	listener := events.NewListener(bus, gw, invalidator)
	if bus != nil {
		if err := listener.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to subscribe to room events")
		}
	}
	dispatcher := events.NewDispatcher(publisher, listener)

	// Authentication
	tokens, err := jwt.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}
	resolver := identity.NewResolver(tokens, cfg.Auth.CookieName)

	// Initialize services and handlers
	roomService := service.NewRoomService(roomRepo, dispatcher, reg)
	historyService := service.NewHistoryService(pager)
	chatService := service.NewChatService(gw, resolver)

	httpHandler := handler.NewHTTPHandler(roomService, historyService, middleware.NewAuthMiddleware(tokens, cfg.Auth.CookieName))
	wsHandler := handler.NewWSHandler(h, chatService, resolver, cfg.WebSocket)

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	httpHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
		// No WriteTimeout: websocket pumps manage their own write deadlines.
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Int64("node_id", cfg.NodeID).
			Str("store", cfg.Store.Driver).
			Str("bus", cfg.Bus.Driver).
			Msg("chat-server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}

	gw.Stop()
	h.Stop()

	logger.Info().Msg("chat-server stopped")
}
