package player_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ironvalemmo/server/config"
	"github.com/ironvalemmo/server/game/player"
	"github.com/ironvalemmo/server/model"
	"github.com/ironvalemmo/server/plugin/hook"
	"github.com/ironvalemmo/server/scheduler"
	"github.com/ironvalemmo/server/store"
	"github.com/ironvalemmo/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*player.Manager, *store.Store, *hook.HookCenter) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	s := store.New(db, c, zap.NewNop())
	require.NoError(t, s.Init())
	hooks := hook.NewHookCenter()
	cfg := config.GameConfig{
		RespawnDelayS: 1, // short enough to await in tests
		SpawnX:        100, SpawnY: 64, SpawnZ: 100,
	}
	m := player.NewManager(s, hooks, ps, c, cfg, zap.NewNop())
	return m, s, hooks
}

func TestHandleEnter_NewPlayerGetsDefaults(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	st, err := m.HandleEnter(ctx, "p1", "Arden")
	require.NoError(t, err)
	assert.Equal(t, "Arden", st.Name)
	assert.Equal(t, 10, st.Skills[model.SkillConstitution].Level)
	assert.Equal(t, 100, st.CurrentHP)
	assert.Equal(t, 100, st.MaxHP)
	assert.True(t, st.Alive)
	assert.Equal(t, store.DefaultWeaponItemID, st.Equipment[model.EquipSlotWeapon])

	// the record exists in the store immediately, not just in memory
	rec, err := s.GetPlayer("p1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Arden", rec.Name)

	assert.Contains(t, m.Online(), "p1")
}

func TestHandleEnter_RehydratesPersistedState(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.HandleEnter(ctx, "p2", "Brin")
	require.NoError(t, err)
	require.NoError(t, m.UpdateStats(ctx, "p2", model.SkillAttack, 15, 2500))
	m.HandleLeave(ctx, "p2")
	assert.NotContains(t, m.Online(), "p2")

	st, err := m.HandleEnter(ctx, "p2", "Brin")
	require.NoError(t, err)
	assert.Equal(t, 15, st.Skills[model.SkillAttack].Level)
	assert.Equal(t, int64(2500), st.Skills[model.SkillAttack].XP)
}

func TestHandleEnter_Idempotent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.HandleEnter(ctx, "p3", "Cass")
	require.NoError(t, err)
	again, err := m.HandleEnter(ctx, "p3", "Cass")
	require.NoError(t, err)
	assert.Equal(t, first.DBID, again.DBID)
	assert.Len(t, m.Online(), 1)
}

func TestUpdateStats_ConstitutionCarriesDeficit(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.HandleEnter(ctx, "p4", "Dara")
	require.NoError(t, err)

	// 30 damage leaves 70/100
	died, err := m.Damage(ctx, "p4", 30)
	require.NoError(t, err)
	assert.False(t, died)

	// constitution 10 -> 11 raises max to 110; current follows the
	// delta, preserving the 30-point deficit
	require.NoError(t, m.UpdateStats(ctx, "p4", model.SkillConstitution, 11, 1400))
	st, err := m.GetState("p4")
	require.NoError(t, err)
	assert.Equal(t, 110, st.MaxHP)
	assert.Equal(t, 80, st.CurrentHP)

	// stat changes persist immediately
	rec, err := s.GetPlayer("p4")
	require.NoError(t, err)
	assert.Equal(t, 11, rec.ConstitutionLevel)
	assert.Equal(t, 110, rec.MaxHP)
	assert.Equal(t, 80, rec.CurrentHP)
}

func TestUpdateStats_UnknownSkillAndOffline(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	err := m.UpdateStats(ctx, "ghost", model.SkillAttack, 2, 100)
	assert.ErrorIs(t, err, player.ErrNotOnline)

	_, err = m.HandleEnter(ctx, "p5", "Edda")
	require.NoError(t, err)
	err = m.UpdateStats(ctx, "p5", "alchemy", 2, 100)
	assert.Error(t, err)
}

func TestDamage_DeathRunsOnce(t *testing.T) {
	m, s, hooks := newTestManager(t)
	ctx := context.Background()

	var deaths atomic.Int32
	hooks.Register(hook.OnPlayerDied, 10, "test", func(ctx context.Context, event string, data interface{}) (interface{}, error) {
		deaths.Add(1)
		return data, nil
	})

	_, err := m.HandleEnter(ctx, "p6", "Finn")
	require.NoError(t, err)
	require.NoError(t, m.UpdatePosition("p6", 5, 70, -3))
	require.NoError(t, m.UpdateEquipment(ctx, "p6", model.EquipSlotShield, 10))

	died, err := m.Damage(ctx, "p6", 250)
	require.NoError(t, err)
	assert.True(t, died)

	// more damage to a corpse is ignored
	died, err = m.Damage(ctx, "p6", 50)
	require.NoError(t, err)
	assert.False(t, died)
	assert.Equal(t, int32(1), deaths.Load())

	st, err := m.GetState("p6")
	require.NoError(t, err)
	require.NotNil(t, st.DeathPos)
	assert.Equal(t, 5.0, st.DeathPos.X)

	// inventory dropped on death
	rec, err := s.GetPlayer("p6")
	require.NoError(t, err)
	inv, err := s.GetInventory(rec.ID)
	require.NoError(t, err)
	assert.Empty(t, inv)

	assert.Eventually(t, func() bool {
		st, err := m.GetState("p6")
		return err == nil && st.Alive
	}, 3*time.Second, 10*time.Millisecond)

	st, err = m.GetState("p6")
	require.NoError(t, err)
	assert.Equal(t, st.MaxHP, st.CurrentHP)
	assert.Nil(t, st.DeathPos)
	assert.Equal(t, 100.0, st.Pos.X, "fallback spawn when no starter towns registered")
}

func TestRespawn_UsesStarterTown(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	m.RegisterStarterTown(-40, 65, 12)
	_, err := m.HandleEnter(ctx, "p7", "Gale")
	require.NoError(t, err)

	died, err := m.Damage(ctx, "p7", 999)
	require.NoError(t, err)
	require.True(t, died)

	assert.Eventually(t, func() bool {
		st, err := m.GetState("p7")
		return err == nil && st.Alive
	}, 3*time.Second, 10*time.Millisecond)

	st, err := m.GetState("p7")
	require.NoError(t, err)
	assert.Equal(t, -40.0, st.Pos.X)
	assert.Equal(t, 12.0, st.Pos.Z)
}

func TestHandleEnter_DeadPlayerResumesRespawn(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.HandleEnter(ctx, "p11", "Kell")
	require.NoError(t, err)
	require.NoError(t, m.UpdatePosition("p11", 20, 70, -6))

	died, err := m.Damage(ctx, "p11", 999)
	require.NoError(t, err)
	require.True(t, died)

	// disconnecting cancels the pending respawn timer and persists the
	// dead state
	m.HandleLeave(ctx, "p11")

	// reconnecting must not leave the player dead with no way back
	st, err := m.HandleEnter(ctx, "p11", "Kell")
	require.NoError(t, err)
	assert.False(t, st.Alive)
	require.NotNil(t, st.DeathPos, "death position recovered from the persisted record")
	assert.Equal(t, 20.0, st.DeathPos.X)

	assert.Eventually(t, func() bool {
		st, err := m.GetState("p11")
		return err == nil && st.Alive
	}, 3*time.Second, 10*time.Millisecond)

	st, err = m.GetState("p11")
	require.NoError(t, err)
	assert.Equal(t, st.MaxHP, st.CurrentHP)
	assert.Nil(t, st.DeathPos)
}

func TestHeal_Clamps(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.HandleEnter(ctx, "p8", "Hale")
	require.NoError(t, err)

	healed, err := m.Heal(ctx, "p8", 5)
	require.NoError(t, err)
	assert.False(t, healed, "healing at full health is a no-op")

	_, err = m.Damage(ctx, "p8", 40)
	require.NoError(t, err)

	healed, err = m.Heal(ctx, "p8", 100)
	require.NoError(t, err)
	assert.True(t, healed)
	st, err := m.GetState("p8")
	require.NoError(t, err)
	assert.Equal(t, st.MaxHP, st.CurrentHP)
}

func TestUpdateHealth_SetAndClamp(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.HandleEnter(ctx, "p10", "Jory")
	require.NoError(t, err)

	require.NoError(t, m.UpdateHealth(ctx, "p10", 42))
	rec, err := s.GetPlayer("p10")
	require.NoError(t, err)
	assert.Equal(t, 42, rec.CurrentHP, "health writes through immediately")

	require.NoError(t, m.UpdateHealth(ctx, "p10", 500))
	st, err := m.GetState("p10")
	require.NoError(t, err)
	assert.Equal(t, 100, st.CurrentHP, "clamped at max")

	// zero routes through the death transition
	require.NoError(t, m.UpdateHealth(ctx, "p10", 0))
	st, err = m.GetState("p10")
	require.NoError(t, err)
	assert.False(t, st.Alive)

	err = m.UpdateHealth(ctx, "p10", 50)
	assert.Error(t, err, "dead players only recover via respawn")
}

func TestHandleLeave_PersistsPosition(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.HandleEnter(ctx, "p9", "Iris")
	require.NoError(t, err)
	require.NoError(t, m.UpdatePosition("p9", 33.5, 70, -8))

	// position changes are memory-only until a save runs
	rec, err := s.GetPlayer("p9")
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.X)

	m.HandleLeave(ctx, "p9")
	rec, err = s.GetPlayer("p9")
	require.NoError(t, err)
	assert.Equal(t, 33.5, rec.X)
	assert.Equal(t, -8.0, rec.Z)

	// leaving twice is harmless
	m.HandleLeave(ctx, "p9")
}

func TestSaveAll(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.HandleEnter(ctx, id, "Player "+id)
		require.NoError(t, err)
		require.NoError(t, m.UpdatePosition(id, 7, 64, 7))
	}

	saved, failed := m.SaveAll(ctx)
	assert.Equal(t, 3, saved)
	assert.Equal(t, 0, failed)

	rec, err := s.GetPlayer("b")
	require.NoError(t, err)
	assert.Equal(t, 7.0, rec.X)
}

func TestStartAutoSave_PersistsOnTick(t *testing.T) {
	m, s, _ := newTestManager(t)
	ctx := context.Background()
	sched := scheduler.New(zap.NewNop())
	defer sched.Stop()

	_, err := m.HandleEnter(ctx, "p12", "Lona")
	require.NoError(t, err)
	require.NoError(t, m.UpdatePosition("p12", 55, 64, 9))

	m.StartAutoSave(sched, 50*time.Millisecond)
	assert.Contains(t, sched.ListTickers(), "player.autosave")

	// memory-only position drift reaches the store without any
	// coordinator involvement
	assert.Eventually(t, func() bool {
		rec, err := s.GetPlayer("p12")
		return err == nil && rec != nil && rec.X == 55
	}, 3*time.Second, 10*time.Millisecond)

	m.StopAutoSave(sched)
	assert.NotContains(t, sched.ListTickers(), "player.autosave")
}
