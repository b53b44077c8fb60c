package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ironvalemmo/server/game/persist"
	"github.com/ironvalemmo/server/game/player"
	"github.com/ironvalemmo/server/scheduler"
	"github.com/ironvalemmo/server/store"
	"go.uber.org/zap"
)

// AdminHandler exposes the persistence engine's operational surface.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	store   *store.Store
	manager *player.Manager
	coord   *persist.Coordinator
	sched   *scheduler.Scheduler
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	s *store.Store,
	m *player.Manager,
	coord *persist.Coordinator,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{store: s, manager: m, coord: coord, sched: sched, logger: logger}
}

// ForceSave flushes every online player and runs a coordinator save
// pass outside the schedule.
// POST /api/admin/save
func (h *AdminHandler) ForceSave(c *gin.Context) {
	saved, failed := h.manager.SaveAll(c.Request.Context())
	h.coord.RunSave()
	h.logger.Info("admin forced save pass",
		zap.Int("playersSaved", saved), zap.Int("playerFailures", failed))
	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"playersSaved":   saved,
		"playerFailures": failed,
		"stats":          h.coord.GetStats(),
	})
}

// ForceChunkCleanup runs one chunk cleanup pass outside the schedule.
// POST /api/admin/chunk-cleanup
func (h *AdminHandler) ForceChunkCleanup(c *gin.Context) {
	h.coord.RunChunkCleanup()
	h.logger.Info("admin forced chunk cleanup")
	c.JSON(http.StatusOK, gin.H{"ok": true, "stats": h.coord.GetStats()})
}

// ForceMaintenance runs one retention pass outside the schedule.
// POST /api/admin/maintenance
func (h *AdminHandler) ForceMaintenance(c *gin.Context) {
	h.coord.RunMaintenance()
	h.logger.Info("admin forced maintenance")
	c.JSON(http.StatusOK, gin.H{"ok": true, "stats": h.coord.GetStats()})
}

// CoordinatorStats returns the coordinator's cumulative counters.
// GET /api/admin/coordinator
func (h *AdminHandler) CoordinatorStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.GetStats())
}

// DatabaseStats returns table-level row counts.
// GET /api/admin/database
func (h *AdminHandler) DatabaseStats(c *gin.Context) {
	stats, err := h.store.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListPlayers returns a snapshot of all online players.
// GET /api/admin/players
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	type playerInfo struct {
		ExternalID string  `json:"external_id"`
		Name       string  `json:"name"`
		CurrentHP  int     `json:"current_hp"`
		MaxHP      int     `json:"max_hp"`
		Alive      bool    `json:"alive"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Z          float64 `json:"z"`
	}
	ids := h.manager.Online()
	result := make([]playerInfo, 0, len(ids))
	for _, id := range ids {
		st, err := h.manager.GetState(id)
		if err != nil {
			continue
		}
		result = append(result, playerInfo{
			ExternalID: st.ExternalID,
			Name:       st.Name,
			CurrentHP:  st.CurrentHP,
			MaxHP:      st.MaxHP,
			Alive:      st.Alive,
			X:          st.Pos.X,
			Y:          st.Pos.Y,
			Z:          st.Pos.Z,
		})
	}
	c.JSON(http.StatusOK, gin.H{"players": result, "count": len(result)})
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
