package store_test

import (
	"testing"
	"time"

	"github.com/ironvalemmo/server/model"
	"github.com/ironvalemmo/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivity_EntryExitDrivesOccupancy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChunk(&model.WorldChunk{ChunkX: 3, ChunkZ: 3}))

	a1, err := s.RecordChunkEntry(3, 3, 1)
	require.NoError(t, err)
	a2, err := s.RecordChunkEntry(3, 3, 2)
	require.NoError(t, err)

	chunk, err := s.GetChunk(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, chunk.OccupantCount)

	require.NoError(t, s.RecordChunkExit(a1))
	chunk, err = s.GetChunk(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, chunk.OccupantCount)

	require.NoError(t, s.RecordChunkExit(a2))
	chunk, err = s.GetChunk(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, chunk.OccupantCount)
}

func TestActivity_DoubleExitRejected(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChunk(&model.WorldChunk{ChunkX: 4, ChunkZ: 4}))

	id, err := s.RecordChunkEntry(4, 4, 9)
	require.NoError(t, err)
	require.NoError(t, s.RecordChunkExit(id))

	err = s.RecordChunkExit(id)
	assert.Error(t, err, "closing a closed row signals a double-exit")

	err = s.RecordChunkExit(424242)
	assert.Error(t, err)
}

func TestActivity_OpenLookup(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChunk(&model.WorldChunk{ChunkX: 6, ChunkZ: 6}))

	none, err := s.OpenActivity(6, 6, 5)
	require.NoError(t, err)
	assert.Nil(t, none)

	id, err := s.RecordChunkEntry(6, 6, 5)
	require.NoError(t, err)

	open, err := s.OpenActivity(6, 6, 5)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, id, open.ID)
	assert.Nil(t, open.LeftAt)
}

func TestActivity_RetentionPurge(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChunk(&model.WorldChunk{ChunkX: 8, ChunkZ: 8}))

	closed, err := s.RecordChunkEntry(8, 8, 1)
	require.NoError(t, err)
	require.NoError(t, s.RecordChunkExit(closed))
	_, err = s.RecordChunkEntry(8, 8, 2)
	require.NoError(t, err)

	ancient := time.Now().AddDate(0, 0, -60)
	require.NoError(t, s.DB().Model(&model.ChunkActivity{}).
		Where("chunk_x = ?", 8).
		Update("entered_at", ancient).Error)

	purged, err := s.PurgeActivityOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged, "open rows survive retention regardless of age")
}

func TestStats_Counts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SavePlayer("ext-stats", store.PlayerUpdate{}))
	_, err := s.CreateSession(1, "tok", 30)
	require.NoError(t, err)
	require.NoError(t, s.SaveChunk(&model.WorldChunk{ChunkX: 1, ChunkZ: 1}))
	require.NoError(t, s.SaveChunk(&model.WorldChunk{ChunkX: 2, ChunkZ: 2, OccupantCount: 1}))
	_, err = s.RecordChunkEntry(2, 2, 1)
	require.NoError(t, err)

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PlayerCount)
	assert.Equal(t, int64(1), stats.ActiveSessionCount)
	assert.Equal(t, int64(2), stats.ChunkCount)
	assert.Equal(t, int64(1), stats.ActiveChunkCount)
	assert.Equal(t, int64(1), stats.ActivityRecordCount)
}
