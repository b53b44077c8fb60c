package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/ironvalemmo/server/api/rest"
	"github.com/ironvalemmo/server/cache"
	"github.com/ironvalemmo/server/config"
	dbadapter "github.com/ironvalemmo/server/db"
	"github.com/ironvalemmo/server/game/persist"
	"github.com/ironvalemmo/server/game/player"
	mw "github.com/ironvalemmo/server/middleware"
	"github.com/ironvalemmo/server/plugin/hook"
	"github.com/ironvalemmo/server/scheduler"
	"github.com/ironvalemmo/server/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Store ----
	// A migration or seed failure aborts startup; running against a
	// half-migrated schema corrupts saves.
	st := store.New(db, c, logger)
	if err := st.Init(); err != nil {
		log.Fatalf("store init: %v", err)
	}
	logger.Info("Store initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Hooks ----
	hooks := hook.NewHookCenter()

	// ---- Player Lifecycle ----
	manager := player.NewManager(st, hooks, pubsub, c, cfg.Game, logger)
	manager.StartAutoSave(sched, time.Duration(cfg.Persistence.SaveIntervalS)*time.Second)

	// ---- Persistence Coordinator ----
	coord := persist.NewCoordinator(st, manager, sched, nil, cfg.Persistence, logger)
	coord.Start()
	defer coord.Stop()

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	adminH := apirest.NewAdminHandler(st, manager, coord, sched, logger)

	api := r.Group("/api")
	{
		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.POST("/save", adminH.ForceSave)
		adminG.POST("/chunk-cleanup", adminH.ForceChunkCleanup)
		adminG.POST("/maintenance", adminH.ForceMaintenance)
		adminG.GET("/coordinator", adminH.CoordinatorStats)
		adminG.GET("/database", adminH.DatabaseStats)
		adminG.GET("/players", adminH.ListPlayers)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
