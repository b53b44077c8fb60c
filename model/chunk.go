package model

import (
	"time"

	"gorm.io/datatypes"
)

// WorldChunk is one fixed-size tile of the world, keyed by integer
// chunk coordinates. Heightmap and the three state blobs are opaque to
// the persistence engine; the environment layer serializes them.
type WorldChunk struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ChunkX        int            `gorm:"uniqueIndex:idx_chunk_coords;not null" json:"chunk_x"`
	ChunkZ        int            `gorm:"uniqueIndex:idx_chunk_coords;not null" json:"chunk_z"`
	Biome         string         `gorm:"size:32" json:"biome"`
	Heightmap     string         `gorm:"type:text" json:"heightmap"`
	ResourceState datatypes.JSON `json:"resource_state"`
	MobState      datatypes.JSON `json:"mob_state"`
	ModState      datatypes.JSON `json:"mod_state"`
	Seed          int64          `json:"seed"`
	LastActive    time.Time      `gorm:"index" json:"last_active"`
	OccupantCount int            `gorm:"default:0" json:"occupant_count"`
	NeedsReset    bool           `gorm:"default:false" json:"needs_reset"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WorldChunk) TableName() string { return "world_chunks" }
