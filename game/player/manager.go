package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ironvalemmo/server/cache"
	"github.com/ironvalemmo/server/config"
	"github.com/ironvalemmo/server/model"
	"github.com/ironvalemmo/server/plugin/hook"
	"github.com/ironvalemmo/server/scheduler"
	"github.com/ironvalemmo/server/store"
	"go.uber.org/zap"
)

// autoSaveTask names the manager's own save sweep on the scheduler.
const autoSaveTask = "player.autosave"

// OnlineSetKey is the cache set holding external ids of online players.
const OnlineSetKey = "players:online"

// SystemChatChannel carries engine-generated broadcast lines.
const SystemChatChannel = "chat:system"

// ErrNotOnline is returned for operations addressing a player who has
// no live state in the manager.
var ErrNotOnline = errors.New("player: not online")

// Manager owns the in-memory state of every online player and drives
// the enter/leave, stat, health, death, and respawn transitions.
// Immediate-persist transitions (stats, equipment, death, respawn) hit
// the store inline; position drift waits for the periodic save.
type Manager struct {
	store  *store.Store
	hooks  *hook.HookCenter
	pubsub cache.PubSub
	cache  cache.Cache
	cfg    config.GameConfig
	logger *zap.Logger

	mu            sync.RWMutex
	players       map[string]*PlayerState
	respawnTimers map[string]*time.Timer
	starterTowns  []Position
}

// NewManager creates a Manager. Starter towns can be registered later
// by the world layer; until then respawns use the configured spawn.
func NewManager(s *store.Store, hooks *hook.HookCenter, ps cache.PubSub, c cache.Cache, cfg config.GameConfig, logger *zap.Logger) *Manager {
	return &Manager{
		store:         s,
		hooks:         hooks,
		pubsub:        ps,
		cache:         c,
		cfg:           cfg,
		logger:        logger,
		players:       make(map[string]*PlayerState),
		respawnTimers: make(map[string]*time.Timer),
	}
}

// RegisterStarterTown adds a respawn point. Respawns pick one at
// random; with none registered the configured spawn is used.
func (m *Manager) RegisterStarterTown(x, y, z float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starterTowns = append(m.starterTowns, Position{X: x, Y: y, Z: z})
}

// HandleEnter brings a player online: hydrates persisted state or
// creates a fresh record with defaults, registers the live state, and
// fires the registration hooks. Entering while already online returns
// the existing state; the session bookkeeping for that case lives in
// the coordinator.
func (m *Manager) HandleEnter(ctx context.Context, externalID, name string) (*PlayerState, error) {
	m.mu.RLock()
	if st, ok := m.players[externalID]; ok {
		defer m.mu.RUnlock()
		return st.clone(), nil
	}
	m.mu.RUnlock()

	record, err := m.store.GetPlayer(externalID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// first login: create with defaults, then read back
		if err := m.store.SavePlayer(externalID, store.PlayerUpdate{Name: &name}); err != nil {
			return nil, err
		}
		if record, err = m.store.GetPlayer(externalID); err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("player: created record for %s not readable", externalID)
		}
		m.logger.Info("new player created",
			zap.String("externalId", externalID), zap.String("name", name))
	}
	equip, err := m.store.GetEquipment(record.ID)
	if err != nil {
		return nil, err
	}

	st := stateFromRecord(record, equip)
	if name != "" && st.Name != name {
		st.Name = name
	}

	m.mu.Lock()
	if existing, ok := m.players[externalID]; ok {
		m.mu.Unlock()
		return existing.clone(), nil
	}
	m.players[externalID] = st
	if !st.Alive {
		// died, disconnected before the respawn fired. The death save
		// recorded the death position; the delay restarts from zero so
		// the player is never stuck dead.
		dp := st.Pos
		st.DeathPos = &dp
		m.scheduleRespawnLocked(externalID)
	}
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.SAdd(ctx, OnlineSetKey, externalID); err != nil {
			m.logger.Warn("online set add failed", zap.Error(err))
		}
	}
	m.trigger(ctx, hook.OnPlayerRegister, st.clone())
	m.trigger(ctx, hook.OnSkillsInit, st.clone())
	m.trigger(ctx, hook.OnInventoryInit, st.clone())
	m.broadcast(ctx, fmt.Sprintf("%s has entered the world", st.Name))

	return st.clone(), nil
}

// HandleLeave takes a player offline: a best-effort final save, any
// pending respawn timer cancelled, live state dropped. The save error
// is logged, not returned; departure must always succeed.
func (m *Manager) HandleLeave(ctx context.Context, externalID string) {
	m.mu.Lock()
	st, ok := m.players[externalID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.players, externalID)
	if timer, ok := m.respawnTimers[externalID]; ok {
		timer.Stop()
		delete(m.respawnTimers, externalID)
	}
	snapshot := st.clone()
	m.mu.Unlock()

	if err := m.store.SavePlayer(externalID, snapshot.toUpdate()); err != nil {
		m.logger.Error("final save on leave failed",
			zap.String("externalId", externalID), zap.Error(err))
	}
	if m.cache != nil {
		if err := m.cache.SRem(ctx, OnlineSetKey, externalID); err != nil {
			m.logger.Warn("online set remove failed", zap.Error(err))
		}
	}
	m.trigger(ctx, hook.OnPlayerUnregister, snapshot)
	m.broadcast(ctx, fmt.Sprintf("%s has left the world", snapshot.Name))
}

// GetState returns a copy of a player's live state.
func (m *Manager) GetState(externalID string) (*PlayerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.players[externalID]
	if !ok {
		return nil, ErrNotOnline
	}
	return st.clone(), nil
}

// Online returns the external ids of all online players.
func (m *Manager) Online() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.players))
	for id := range m.players {
		ids = append(ids, id)
	}
	return ids
}

// UpdateStats sets one skill's level and xp and persists immediately.
// A constitution change recomputes max health, carrying the current
// damage deficit over rather than healing the player.
func (m *Manager) UpdateStats(ctx context.Context, externalID, skill string, level int, xp int64) error {
	m.mu.Lock()
	st, ok := m.players[externalID]
	if !ok {
		m.mu.Unlock()
		return ErrNotOnline
	}
	if _, known := st.Skills[skill]; !known {
		m.mu.Unlock()
		return fmt.Errorf("player: unknown skill %q", skill)
	}
	st.Skills[skill] = SkillState{Level: level, XP: xp}
	upd := store.PlayerUpdate{
		Skills: map[string]store.SkillUpdate{skill: {Level: &level, XP: &xp}},
	}
	if skill == model.SkillConstitution {
		newMax := model.MaxHPForConstitution(level)
		newCur := st.CurrentHP + (newMax - st.MaxHP)
		if newCur > newMax {
			newCur = newMax
		}
		if newCur < 0 {
			newCur = 0
		}
		st.MaxHP = newMax
		st.CurrentHP = newCur
		upd.MaxHP = &newMax
		upd.CurrentHP = &newCur
	}
	m.mu.Unlock()

	return m.store.SavePlayer(externalID, upd)
}

// UpdateEquipment writes one equipment slot and persists immediately.
// itemID zero clears the slot.
func (m *Manager) UpdateEquipment(ctx context.Context, externalID, slot string, itemID int) error {
	m.mu.Lock()
	st, ok := m.players[externalID]
	if !ok {
		m.mu.Unlock()
		return ErrNotOnline
	}
	dbID := st.DBID
	if itemID == 0 {
		delete(st.Equipment, slot)
	} else {
		st.Equipment[slot] = itemID
	}
	m.mu.Unlock()

	if itemID == 0 {
		return m.store.ClearEquipment(dbID, slot)
	}
	return m.store.SaveEquipment(dbID, slot, itemID)
}

// UpdatePosition records movement in memory only. Positions ride along
// with the next periodic save or the final save on leave.
func (m *Manager) UpdatePosition(externalID string, x, y, z float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.players[externalID]
	if !ok {
		return ErrNotOnline
	}
	st.Pos = Position{X: x, Y: y, Z: z}
	return nil
}

// UpdateHealth sets current health outright, clamped to [0, max], and
// persists immediately. Setting zero routes through the death
// transition; a dead player's health can only change via respawn.
func (m *Manager) UpdateHealth(ctx context.Context, externalID string, hp int) error {
	m.mu.Lock()
	st, ok := m.players[externalID]
	if !ok {
		m.mu.Unlock()
		return ErrNotOnline
	}
	if !st.Alive {
		m.mu.Unlock()
		return fmt.Errorf("player: %s is dead", externalID)
	}
	if hp > st.MaxHP {
		hp = st.MaxHP
	}
	if hp <= 0 {
		amount := st.CurrentHP
		m.mu.Unlock()
		_, err := m.Damage(ctx, externalID, amount)
		return err
	}
	st.CurrentHP = hp
	m.mu.Unlock()

	return m.store.SavePlayer(externalID, store.PlayerUpdate{CurrentHP: &hp})
}

// Damage applies damage, clamped at zero health. Crossing zero runs
// the death transition exactly once; further damage to a dead player
// is ignored. Returns whether this call caused the death.
func (m *Manager) Damage(ctx context.Context, externalID string, amount int) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("player: negative damage %d", amount)
	}
	m.mu.Lock()
	st, ok := m.players[externalID]
	if !ok {
		m.mu.Unlock()
		return false, ErrNotOnline
	}
	if !st.Alive {
		m.mu.Unlock()
		return false, nil
	}
	st.CurrentHP -= amount
	if st.CurrentHP > 0 {
		m.mu.Unlock()
		return false, nil
	}
	st.CurrentHP = 0
	st.Alive = false
	dp := st.Pos
	st.DeathPos = &dp
	snapshot := st.clone()
	m.scheduleRespawnLocked(externalID)
	m.mu.Unlock()

	if err := m.store.SavePlayer(externalID, snapshot.toUpdate()); err != nil {
		m.logger.Error("death save failed", zap.String("externalId", externalID), zap.Error(err))
	}
	// the inventory drops at the death position; gameplay listens on
	// the hooks to materialize the headstone and ground items
	if err := m.store.SaveInventory(snapshot.DBID, nil); err != nil {
		m.logger.Error("death inventory drop failed", zap.String("externalId", externalID), zap.Error(err))
	}
	m.trigger(ctx, hook.OnCreateHeadstone, snapshot)
	m.trigger(ctx, hook.OnDropAllInventory, snapshot)
	m.trigger(ctx, hook.OnPlayerDied, snapshot)
	m.broadcast(ctx, fmt.Sprintf("%s has died", snapshot.Name))
	return true, nil
}

// Heal restores health, clamped at max. Returns false without error
// when nothing changed: the player is dead or already at full health.
func (m *Manager) Heal(ctx context.Context, externalID string, amount int) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("player: negative heal %d", amount)
	}
	m.mu.Lock()
	st, ok := m.players[externalID]
	if !ok {
		m.mu.Unlock()
		return false, ErrNotOnline
	}
	if !st.Alive || st.CurrentHP >= st.MaxHP {
		m.mu.Unlock()
		return false, nil
	}
	st.CurrentHP += amount
	if st.CurrentHP > st.MaxHP {
		st.CurrentHP = st.MaxHP
	}
	snapshot := st.clone()
	m.mu.Unlock()

	m.trigger(ctx, hook.OnPlayerHealed, snapshot)
	return true, nil
}

// respawn restores a dead player at a starter town with full health.
// Fires after the configured delay; a no-op if the player left in the
// meantime (the timer is cancelled on leave, this is the backstop).
func (m *Manager) respawn(ctx context.Context, externalID string) {
	m.mu.Lock()
	st, ok := m.players[externalID]
	if !ok || st.Alive {
		m.mu.Unlock()
		return
	}
	delete(m.respawnTimers, externalID)
	st.Alive = true
	st.CurrentHP = st.MaxHP
	st.DeathPos = nil
	st.Pos = m.respawnPointLocked()
	snapshot := st.clone()
	m.mu.Unlock()

	if err := m.store.SavePlayer(externalID, snapshot.toUpdate()); err != nil {
		m.logger.Error("respawn save failed", zap.String("externalId", externalID), zap.Error(err))
	}
	m.trigger(ctx, hook.OnTeleport, snapshot)
	m.trigger(ctx, hook.OnPlayerRespawned, snapshot)
	m.broadcast(ctx, fmt.Sprintf("%s has respawned", snapshot.Name))
}

// scheduleRespawnLocked arms the respawn timer. Caller holds m.mu.
func (m *Manager) scheduleRespawnLocked(externalID string) {
	delay := time.Duration(m.cfg.RespawnDelayS) * time.Second
	m.respawnTimers[externalID] = time.AfterFunc(delay, func() {
		m.respawn(context.Background(), externalID)
	})
}

func (m *Manager) respawnPointLocked() Position {
	if len(m.starterTowns) > 0 {
		return m.starterTowns[rand.Intn(len(m.starterTowns))]
	}
	return Position{X: m.cfg.SpawnX, Y: m.cfg.SpawnY, Z: m.cfg.SpawnZ}
}

// StartAutoSave registers the manager's fixed-interval save sweep.
// The sweep is the manager's own write path, independent of the
// coordinator's jobs and of the immediate persists.
func (m *Manager) StartAutoSave(sched *scheduler.Scheduler, interval time.Duration) {
	sched.AddTicker(autoSaveTask, interval, func() {
		saved, failed := m.SaveAll(context.Background())
		if saved+failed > 0 {
			m.logger.Debug("auto-save finished",
				zap.Int("saved", saved), zap.Int("failed", failed))
		}
	})
}

// StopAutoSave removes the sweep from the scheduler.
func (m *Manager) StopAutoSave(sched *scheduler.Scheduler) {
	sched.Remove(autoSaveTask)
}

// SaveAll persists every online player. Driven by the auto-save
// ticker, the final flush on shutdown, and the admin force-save.
// Per-player failures are logged and counted, not fatal; one bad row
// must not starve the rest.
func (m *Manager) SaveAll(ctx context.Context) (saved, failed int) {
	m.mu.RLock()
	snapshots := make(map[string]*PlayerState, len(m.players))
	for id, st := range m.players {
		snapshots[id] = st.clone()
	}
	m.mu.RUnlock()

	for id, st := range snapshots {
		if err := m.store.SavePlayer(id, st.toUpdate()); err != nil {
			m.logger.Error("periodic save failed", zap.String("externalId", id), zap.Error(err))
			failed++
			continue
		}
		saved++
	}
	return saved, failed
}

func (m *Manager) trigger(ctx context.Context, event string, data interface{}) {
	if m.hooks == nil {
		return
	}
	if _, err := m.hooks.Trigger(ctx, event, data); err != nil && !errors.Is(err, hook.ErrInterrupt) {
		m.logger.Warn("hook failed", zap.String("event", event), zap.Error(err))
	}
}

func (m *Manager) broadcast(ctx context.Context, line string) {
	if m.pubsub == nil {
		return
	}
	if err := m.pubsub.Publish(ctx, SystemChatChannel, line); err != nil {
		m.logger.Warn("system chat publish failed", zap.Error(err))
	}
}
