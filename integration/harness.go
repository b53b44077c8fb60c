package integration

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	apirest "github.com/ironvalemmo/server/api/rest"
	"github.com/ironvalemmo/server/cache"
	"github.com/ironvalemmo/server/config"
	"github.com/ironvalemmo/server/game/persist"
	"github.com/ironvalemmo/server/game/player"
	mw "github.com/ironvalemmo/server/middleware"
	"github.com/ironvalemmo/server/plugin/hook"
	"github.com/ironvalemmo/server/scheduler"
	"github.com/ironvalemmo/server/store"
	"github.com/ironvalemmo/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdminKey protects the admin routes in tests.
const AdminKey = "test-admin-key"

// TestServer wraps a real HTTP server with the persistence engine
// wired the way main.go wires it.
type TestServer struct {
	Store   *store.Store
	Cache   cache.Cache
	PubSub  cache.PubSub
	Hooks   *hook.HookCenter
	Manager *player.Manager
	Coord   *persist.Coordinator
	Sched   *scheduler.Scheduler
	Server  *httptest.Server
	URL     string
}

// NewTestServer creates a fully wired engine for integration testing.
// The coordinator's tickers are not started; tests drive the passes
// explicitly so nothing fires mid-assertion.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)

	st := store.New(db, c, logger)
	require.NoError(t, st.Init())

	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	hooks := hook.NewHookCenter()
	gameCfg := config.GameConfig{
		RespawnDelayS: 60,
		SpawnX:        0, SpawnY: 64, SpawnZ: 0,
	}
	manager := player.NewManager(st, hooks, pubsub, c, gameCfg, logger)

	persistCfg := config.PersistenceConfig{
		SaveIntervalS:           30,
		ChunkCleanupIntervalS:   300,
		ChunkInactiveMinutes:    15,
		SessionCleanupIntervalS: 600,
		SessionStaleMinutes:     5,
		MaintenanceIntervalS:    3600,
		SessionRetentionDays:    7,
		ActivityRetentionDays:   30,
	}
	coord := persist.NewCoordinator(st, manager, sched, nil, persistCfg, logger)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(1000), 1000))
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	adminH := apirest.NewAdminHandler(st, manager, coord, sched, logger)
	adminG := r.Group("/api/admin")
	adminG.Use(apirest.AdminAuth(AdminKey))
	adminG.POST("/save", adminH.ForceSave)
	adminG.POST("/chunk-cleanup", adminH.ForceChunkCleanup)
	adminG.POST("/maintenance", adminH.ForceMaintenance)
	adminG.GET("/coordinator", adminH.CoordinatorStats)
	adminG.GET("/database", adminH.DatabaseStats)
	adminG.GET("/players", adminH.ListPlayers)
	adminG.GET("/scheduler", adminH.ListSchedulerTasks)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &TestServer{
		Store:   st,
		Cache:   c,
		PubSub:  pubsub,
		Hooks:   hooks,
		Manager: manager,
		Coord:   coord,
		Sched:   sched,
		Server:  srv,
		URL:     srv.URL,
	}
}
