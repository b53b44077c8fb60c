package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/ironvalemmo/server/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetChunk returns the chunk at (x, z), or (nil, nil) if it has never
// been persisted (it will be generated procedurally on demand).
func (s *Store) GetChunk(x, z int) (*model.WorldChunk, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var chunk model.WorldChunk
	err := s.db.Where("chunk_x = ? AND chunk_z = ?", x, z).First(&chunk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get chunk (%d,%d): %w", x, z, err)
	}
	return &chunk, nil
}

// SaveChunk upserts a chunk keyed by its coordinates. The blob columns
// are written as-is; the engine never interprets them.
func (s *Store) SaveChunk(chunk *model.WorldChunk) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if chunk.LastActive.IsZero() {
		chunk.LastActive = time.Now()
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chunk_x"}, {Name: "chunk_z"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"biome", "heightmap", "resource_state", "mob_state", "mod_state",
			"seed", "last_active", "occupant_count", "needs_reset",
		}),
	}).Create(chunk).Error
	if err != nil {
		return fmt.Errorf("store: save chunk (%d,%d): %w", chunk.ChunkX, chunk.ChunkZ, err)
	}
	return nil
}

// GetInactiveChunks returns chunks with zero occupants whose
// last-active timestamp is older than the threshold and which are not
// already marked for reset.
func (s *Store) GetInactiveChunks(threshold time.Duration) ([]model.WorldChunk, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-threshold)
	var chunks []model.WorldChunk
	err := s.db.
		Where("last_active < ? AND occupant_count = 0 AND needs_reset = ?", cutoff, false).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("store: get inactive chunks: %w", err)
	}
	return chunks, nil
}

// GetChunksMarkedForReset returns chunks awaiting the second cleanup
// pass, still with zero occupants.
func (s *Store) GetChunksMarkedForReset() ([]model.WorldChunk, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var chunks []model.WorldChunk
	err := s.db.Where("needs_reset = ? AND occupant_count = 0", true).Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("store: get chunks marked for reset: %w", err)
	}
	return chunks, nil
}

// MarkChunkForReset flags a chunk as reset-eligible. The actual delete
// happens on a later cleanup pass, giving returning players a window.
func (s *Store) MarkChunkForReset(x, z int) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	err := s.db.Model(&model.WorldChunk{}).
		Where("chunk_x = ? AND chunk_z = ?", x, z).
		Update("needs_reset", true).Error
	if err != nil {
		return fmt.Errorf("store: mark chunk (%d,%d) for reset: %w", x, z, err)
	}
	return nil
}

// ResetChunk hard-deletes a chunk row and its activity log. The chunk
// regenerates procedurally on next demand. A chunk with occupants is
// never reset.
func (s *Store) ResetChunk(x, z int) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var chunk model.WorldChunk
		err := tx.Where("chunk_x = ? AND chunk_z = ?", x, z).First(&chunk).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: reset chunk (%d,%d): %w", x, z, err)
		}
		if chunk.OccupantCount > 0 {
			return fmt.Errorf("store: refusing to reset occupied chunk (%d,%d)", x, z)
		}
		if err := tx.Where("chunk_x = ? AND chunk_z = ?", x, z).Delete(&model.ChunkActivity{}).Error; err != nil {
			return fmt.Errorf("store: reset chunk (%d,%d) activity: %w", x, z, err)
		}
		if err := tx.Delete(&model.WorldChunk{}, chunk.ID).Error; err != nil {
			return fmt.Errorf("store: reset chunk (%d,%d) row: %w", x, z, err)
		}
		return nil
	})
}

// UpdateChunkOccupancy writes a chunk's occupant count and bumps its
// last-active timestamp. Missing chunks are ignored; occupancy is only
// meaningful for persisted chunks.
func (s *Store) UpdateChunkOccupancy(x, z, count int) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("store: negative occupancy %d for chunk (%d,%d)", count, x, z)
	}
	err := s.db.Model(&model.WorldChunk{}).
		Where("chunk_x = ? AND chunk_z = ?", x, z).
		Updates(map[string]interface{}{
			"occupant_count": count,
			"last_active":    time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("store: update chunk (%d,%d) occupancy: %w", x, z, err)
	}
	return nil
}
