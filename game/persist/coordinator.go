package persist

import (
	"context"
	"sync"
	"time"

	"github.com/ironvalemmo/server/config"
	"github.com/ironvalemmo/server/game/player"
	"github.com/ironvalemmo/server/model"
	"github.com/ironvalemmo/server/scheduler"
	"github.com/ironvalemmo/server/store"
	"go.uber.org/zap"
)

// Scheduler task names.
const (
	taskSave           = "persist.save"
	taskChunkCleanup   = "persist.chunk_cleanup"
	taskSessionCleanup = "persist.session_cleanup"
	taskMaintenance    = "persist.maintenance"
)

// ChunkProvider hands the coordinator the dirty chunks to flush on a
// save pass. The world simulation implements it; in its absence the
// save pass stamps sessions only.
type ChunkProvider interface {
	DirtyChunks() []*model.WorldChunk
}

// Stats are cumulative counters since process start, exposed on the
// admin surface.
type Stats struct {
	SaveRuns            int64     `json:"saveRuns"`
	SessionsStamped     int64     `json:"sessionsStamped"`
	ChunksSaved         int64     `json:"chunksSaved"`
	ChunkSaveFailures   int64     `json:"chunkSaveFailures"`
	ChunksMarked        int64     `json:"chunksMarked"`
	ChunksReset         int64     `json:"chunksReset"`
	SessionsClosedStale int64     `json:"sessionsClosedStale"`
	SessionsPurged      int64     `json:"sessionsPurged"`
	ActivityPurged      int64     `json:"activityPurged"`
	LastSaveAt          time.Time `json:"lastSaveAt"`
	LastMaintenanceAt   time.Time `json:"lastMaintenanceAt"`
}

// Coordinator drives the background persistence jobs and owns session
// and chunk-activity bookkeeping. It sits between the live layers (the
// player manager, the world simulation) and the store: the live layers
// report enters, leaves, and chunk traffic; the coordinator turns them
// into rows and sweeps them on schedule.
type Coordinator struct {
	store   *store.Store
	manager *player.Manager
	sched   *scheduler.Scheduler
	chunks  ChunkProvider
	cfg     config.PersistenceConfig
	logger  *zap.Logger

	mu         sync.Mutex
	sessions   map[string]string // external id -> open session id
	activities map[string]int64  // external id -> open chunk activity id
	stats      Stats
	running    bool
}

// NewCoordinator creates a Coordinator. chunks may be nil.
func NewCoordinator(s *store.Store, m *player.Manager, sched *scheduler.Scheduler, chunks ChunkProvider, cfg config.PersistenceConfig, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:      s,
		manager:    m,
		sched:      sched,
		chunks:     chunks,
		cfg:        cfg,
		logger:     logger,
		sessions:   make(map[string]string),
		activities: make(map[string]int64),
	}
}

// Start registers the four recurring jobs. Calling Start twice simply
// re-registers the same names; the scheduler replaces, not duplicates.
func (c *Coordinator) Start() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	c.sched.AddTicker(taskSave, time.Duration(c.cfg.SaveIntervalS)*time.Second, c.RunSave)
	c.sched.AddTicker(taskChunkCleanup, time.Duration(c.cfg.ChunkCleanupIntervalS)*time.Second, c.RunChunkCleanup)
	c.sched.AddTicker(taskSessionCleanup, time.Duration(c.cfg.SessionCleanupIntervalS)*time.Second, c.RunSessionCleanup)
	c.sched.AddTicker(taskMaintenance, time.Duration(c.cfg.MaintenanceIntervalS)*time.Second, c.RunMaintenance)
	c.logger.Info("persistence coordinator started",
		zap.Int("saveIntervalS", c.cfg.SaveIntervalS),
		zap.Int("chunkCleanupIntervalS", c.cfg.ChunkCleanupIntervalS))
}

// Stop deregisters the jobs, flushes every online player, and runs one
// final save pass so nothing since the last tick is lost on shutdown.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.sched.Remove(taskSave)
	c.sched.Remove(taskChunkCleanup)
	c.sched.Remove(taskSessionCleanup)
	c.sched.Remove(taskMaintenance)
	if saved, failed := c.manager.SaveAll(context.Background()); saved+failed > 0 {
		c.logger.Info("final player flush",
			zap.Int("saved", saved), zap.Int("failed", failed))
	}
	c.RunSave()
	c.logger.Info("persistence coordinator stopped")
}

// HandlePlayerEntered opens a session for a player coming online. Any
// session still open for the same player is closed first as superseded;
// exactly one active session per player.
func (c *Coordinator) HandlePlayerEntered(externalID string, playerID int64, token string) (string, error) {
	stale, err := c.store.GetActiveSessionsForPlayer(playerID)
	if err != nil {
		return "", err
	}
	for _, s := range stale {
		if err := c.store.EndSession(s.ID, model.DisconnectReasonSuperseded); err != nil {
			c.logger.Warn("superseded session close failed",
				zap.String("session", s.ID), zap.Error(err))
		}
	}

	id, err := c.store.CreateSession(playerID, token, c.cfg.SaveIntervalS)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.sessions[externalID] = id
	c.mu.Unlock()
	return id, nil
}

// HandlePlayerLeft closes the player's session and any open chunk
// activity. reason is one of the model.DisconnectReason constants.
func (c *Coordinator) HandlePlayerLeft(externalID, reason string) {
	c.mu.Lock()
	sessionID, hadSession := c.sessions[externalID]
	delete(c.sessions, externalID)
	activityID, hadActivity := c.activities[externalID]
	delete(c.activities, externalID)
	c.mu.Unlock()

	if hadActivity {
		if err := c.store.RecordChunkExit(activityID); err != nil {
			c.logger.Warn("chunk exit on leave failed",
				zap.String("externalId", externalID), zap.Error(err))
		}
	}
	if hadSession {
		if err := c.store.EndSession(sessionID, reason); err != nil {
			c.logger.Warn("session close failed",
				zap.String("session", sessionID), zap.Error(err))
		}
	}
}

// Touch bumps a session's activity timestamp. Transports call it on
// any inbound traffic so the stale sweep never reaps a live player.
func (c *Coordinator) Touch(externalID string) {
	c.mu.Lock()
	sessionID, ok := c.sessions[externalID]
	c.mu.Unlock()
	if !ok {
		return
	}
	now := time.Now()
	if err := c.store.UpdateSession(sessionID, store.SessionUpdate{LastActivity: &now}); err != nil {
		c.logger.Warn("session touch failed", zap.String("session", sessionID), zap.Error(err))
	}
}

// HandleChunkEntered records a player crossing into a chunk. The open
// activity row in the previous chunk, if any, is closed first.
func (c *Coordinator) HandleChunkEntered(externalID string, playerID int64, x, z int) error {
	c.mu.Lock()
	prev, hadPrev := c.activities[externalID]
	c.mu.Unlock()

	if hadPrev {
		if err := c.store.RecordChunkExit(prev); err != nil {
			c.logger.Warn("previous chunk exit failed",
				zap.String("externalId", externalID), zap.Error(err))
		}
	}
	id, err := c.store.RecordChunkEntry(x, z, playerID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.activities[externalID] = id
	c.mu.Unlock()
	return nil
}

// HandleChunkLeft closes the player's open chunk activity without
// opening a new one, for walks off the map edge or teleports.
func (c *Coordinator) HandleChunkLeft(externalID string) {
	c.mu.Lock()
	id, ok := c.activities[externalID]
	delete(c.activities, externalID)
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := c.store.RecordChunkExit(id); err != nil {
		c.logger.Warn("chunk exit failed", zap.String("externalId", externalID), zap.Error(err))
	}
}

// RunSave is the periodic save pass: every dirty chunk, and both
// timestamps on every session the store reports active. The session
// scan deliberately goes to the store, not the coordinator's own map,
// so sessions opened before a restart are stamped too and a connected
// player is never reaped as stale between sweeps. Also invoked by Stop
// and the admin force-save endpoint. Player rows are the lifecycle
// manager's own auto-save sweep.
func (c *Coordinator) RunSave() {
	start := time.Now()

	var chunksSaved, chunksFailed int
	if c.chunks != nil {
		for _, chunk := range c.chunks.DirtyChunks() {
			if err := c.store.SaveChunk(chunk); err != nil {
				c.logger.Error("chunk save failed",
					zap.Int("x", chunk.ChunkX), zap.Int("z", chunk.ChunkZ), zap.Error(err))
				chunksFailed++
				continue
			}
			chunksSaved++
		}
	}

	var stamped int64
	now := time.Now()
	sessions, err := c.store.GetActiveSessions()
	if err != nil {
		c.logger.Error("active session scan failed", zap.Error(err))
	}
	for _, s := range sessions {
		upd := store.SessionUpdate{LastActivity: &now, LastSave: &now}
		if err := c.store.UpdateSession(s.ID, upd); err != nil {
			c.logger.Warn("session save stamp failed", zap.String("session", s.ID), zap.Error(err))
			continue
		}
		stamped++
	}

	c.mu.Lock()
	c.stats.SaveRuns++
	c.stats.SessionsStamped += stamped
	c.stats.ChunksSaved += int64(chunksSaved)
	c.stats.ChunkSaveFailures += int64(chunksFailed)
	c.stats.LastSaveAt = now
	c.mu.Unlock()

	if stamped > 0 || chunksSaved+chunksFailed > 0 {
		c.logger.Debug("save pass finished",
			zap.Int64("sessions", stamped),
			zap.Int("chunks", chunksSaved), zap.Int("chunkFailures", chunksFailed),
			zap.Duration("took", time.Since(start)))
	}
}

// RunChunkCleanup is the two-phase chunk sweep: chunks idle past the
// threshold get marked, chunks already marked and still empty get
// reset. A marked chunk that sees traffic before the second pass has
// its flag survive but stays occupied, so it is never reset under a
// player.
func (c *Coordinator) RunChunkCleanup() {
	marked, err := c.store.GetChunksMarkedForReset()
	if err != nil {
		c.logger.Error("chunk reset scan failed", zap.Error(err))
		return
	}
	var resets int64
	for _, chunk := range marked {
		if err := c.store.ResetChunk(chunk.ChunkX, chunk.ChunkZ); err != nil {
			c.logger.Warn("chunk reset failed",
				zap.Int("x", chunk.ChunkX), zap.Int("z", chunk.ChunkZ), zap.Error(err))
			continue
		}
		resets++
	}

	threshold := time.Duration(c.cfg.ChunkInactiveMinutes) * time.Minute
	inactive, err := c.store.GetInactiveChunks(threshold)
	if err != nil {
		c.logger.Error("inactive chunk scan failed", zap.Error(err))
		return
	}
	var marks int64
	for _, chunk := range inactive {
		if err := c.store.MarkChunkForReset(chunk.ChunkX, chunk.ChunkZ); err != nil {
			c.logger.Warn("chunk mark failed",
				zap.Int("x", chunk.ChunkX), zap.Int("z", chunk.ChunkZ), zap.Error(err))
			continue
		}
		marks++
	}

	c.mu.Lock()
	c.stats.ChunksMarked += marks
	c.stats.ChunksReset += resets
	c.mu.Unlock()

	if marks > 0 || resets > 0 {
		c.logger.Info("chunk cleanup finished",
			zap.Int64("marked", marks), zap.Int64("reset", resets))
	}
}

// RunSessionCleanup closes sessions whose last activity is older than
// the staleness window. Covers crashed clients whose disconnect never
// arrived.
func (c *Coordinator) RunSessionCleanup() {
	staleness := time.Duration(c.cfg.SessionStaleMinutes) * time.Minute
	stale, err := c.store.GetStaleSessions(staleness)
	if err != nil {
		c.logger.Error("stale session scan failed", zap.Error(err))
		return
	}
	var closed int64
	for _, s := range stale {
		if err := c.store.EndSession(s.ID, model.DisconnectReasonTimeout); err != nil {
			c.logger.Warn("stale session close failed", zap.String("session", s.ID), zap.Error(err))
			continue
		}
		closed++
	}
	if closed > 0 {
		c.mu.Lock()
		// drop local mappings for sessions the sweep closed under us
		for ext, id := range c.sessions {
			for _, s := range stale {
				if s.ID == id {
					delete(c.sessions, ext)
					break
				}
			}
		}
		c.stats.SessionsClosedStale += closed
		c.mu.Unlock()
		c.logger.Info("stale sessions closed", zap.Int64("count", closed))
	}
}

// RunMaintenance applies the retention policy: closed sessions and
// closed activity rows past their windows are deleted.
func (c *Coordinator) RunMaintenance() {
	sessions, err := c.store.PurgeSessionsOlderThan(c.cfg.SessionRetentionDays)
	if err != nil {
		c.logger.Error("session retention purge failed", zap.Error(err))
	}
	activity, err := c.store.PurgeActivityOlderThan(c.cfg.ActivityRetentionDays)
	if err != nil {
		c.logger.Error("activity retention purge failed", zap.Error(err))
	}

	c.mu.Lock()
	c.stats.SessionsPurged += sessions
	c.stats.ActivityPurged += activity
	c.stats.LastMaintenanceAt = time.Now()
	c.mu.Unlock()

	if sessions > 0 || activity > 0 {
		c.logger.Info("maintenance finished",
			zap.Int64("sessionsPurged", sessions), zap.Int64("activityPurged", activity))
	}
}

// GetStats returns a copy of the cumulative counters.
func (c *Coordinator) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
