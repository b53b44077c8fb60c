package store

import (
	"fmt"

	"github.com/ironvalemmo/server/model"
)

// Stats is a snapshot of table-level counts for the admin surface.
type Stats struct {
	PlayerCount         int64 `json:"playerCount"`
	ActiveSessionCount  int64 `json:"activeSessionCount"`
	ChunkCount          int64 `json:"chunkCount"`
	ActiveChunkCount    int64 `json:"activeChunkCount"`
	ActivityRecordCount int64 `json:"activityRecordCount"`
}

// GetStats counts the principal tables in one pass. The counts are not
// taken in a single transaction; they are monitoring data, not a
// consistent snapshot.
func (s *Store) GetStats() (*Stats, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var stats Stats
	counts := []struct {
		model interface{}
		query string
		args  []interface{}
		dest  *int64
	}{
		{&model.Player{}, "", nil, &stats.PlayerCount},
		{&model.PlayerSession{}, "active = ?", []interface{}{true}, &stats.ActiveSessionCount},
		{&model.WorldChunk{}, "", nil, &stats.ChunkCount},
		{&model.WorldChunk{}, "occupant_count > 0", nil, &stats.ActiveChunkCount},
		{&model.ChunkActivity{}, "", nil, &stats.ActivityRecordCount},
	}
	for _, c := range counts {
		q := s.db.Model(c.model)
		if c.query != "" {
			q = q.Where(c.query, c.args...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
	}
	return &stats, nil
}
