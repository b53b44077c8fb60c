package model

import "time"

// ChunkActivity is an append-only dwell record: one row per player per
// chunk visit. Open rows (left_at null) are the authoritative source of
// chunk occupant counts. Never updated after left_at is set, except by
// bulk retention cleanup.
type ChunkActivity struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChunkX    int        `gorm:"index:idx_activity_chunk;not null" json:"chunk_x"`
	ChunkZ    int        `gorm:"index:idx_activity_chunk;not null" json:"chunk_z"`
	PlayerID  int64      `gorm:"index:idx_activity_player;not null" json:"player_id"`
	EnteredAt time.Time  `gorm:"autoCreateTime" json:"entered_at"`
	LeftAt    *time.Time `json:"left_at"`
	DurationS int        `gorm:"default:0" json:"duration_s"`
}

func (ChunkActivity) TableName() string { return "chunk_activities" }
