package store_test

import (
	"testing"
	"time"

	"github.com/ironvalemmo/server/model"
	"github.com/ironvalemmo/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateSession(1, "tok-abc", 30)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	active, err := s.GetActiveSessions()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].PlayerID)
	assert.Equal(t, 30, active[0].SaveIntervalS)
	assert.Nil(t, active[0].EndedAt)

	now := time.Now()
	require.NoError(t, s.UpdateSession(id, store.SessionUpdate{LastSave: &now}))

	require.NoError(t, s.EndSession(id, model.DisconnectReasonDisconnect))
	active, err = s.GetActiveSessions()
	require.NoError(t, err)
	assert.Empty(t, active)

	// updates after close do not resurrect the session
	later := time.Now()
	require.NoError(t, s.UpdateSession(id, store.SessionUpdate{LastActivity: &later}))
	active, err = s.GetActiveSessions()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSession_PerPlayerLookup(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateSession(1, "a", 30)
	require.NoError(t, err)
	_, err = s.CreateSession(2, "b", 30)
	require.NoError(t, err)

	mine, err := s.GetActiveSessionsForPlayer(1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "a", mine[0].Token)
}

func TestSession_StaleScan(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateSession(1, "a", 30)
	require.NoError(t, err)

	stale, err := s.GetStaleSessions(5 * time.Minute)
	require.NoError(t, err)
	assert.Empty(t, stale)

	past := time.Now().Add(-10 * time.Minute)
	require.NoError(t, s.UpdateSession(id, store.SessionUpdate{LastActivity: &past}))

	stale, err = s.GetStaleSessions(5 * time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, id, stale[0].ID)
}

func TestSession_RetentionPurge(t *testing.T) {
	s := newTestStore(t)
	db := s.DB()

	oldClosed, err := s.CreateSession(1, "old", 30)
	require.NoError(t, err)
	require.NoError(t, s.EndSession(oldClosed, model.DisconnectReasonTimeout))
	oldOpen, err := s.CreateSession(2, "open", 30)
	require.NoError(t, err)

	// age both past the retention window
	ancient := time.Now().AddDate(0, 0, -10)
	require.NoError(t, db.Model(&model.PlayerSession{}).
		Where("id IN ?", []string{oldClosed, oldOpen}).
		Update("started_at", ancient).Error)

	purged, err := s.PurgeSessionsOlderThan(7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged, "only closed sessions are reaped by age")

	active, err := s.GetActiveSessions()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, oldOpen, active[0].ID)
}
