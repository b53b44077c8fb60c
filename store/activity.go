package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/ironvalemmo/server/model"
	"gorm.io/gorm"
)

// RecordChunkEntry opens an activity row for a player entering a chunk
// and recomputes the chunk's occupancy from open rows. Returns the
// activity id for the matching exit call.
func (s *Store) RecordChunkEntry(x, z int, playerID int64) (int64, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	activity := &model.ChunkActivity{
		ChunkX:    x,
		ChunkZ:    z,
		PlayerID:  playerID,
		EnteredAt: time.Now(),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(activity).Error; err != nil {
			return fmt.Errorf("store: record chunk entry (%d,%d) player %d: %w", x, z, playerID, err)
		}
		return syncOccupancy(tx, x, z)
	})
	if err != nil {
		return 0, err
	}
	return activity.ID, nil
}

// RecordChunkExit closes an activity row, computes its duration, and
// recomputes the chunk's occupancy. Closing an already-closed row is an
// error; it indicates a double-exit upstream.
func (s *Store) RecordChunkExit(activityID int64) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var activity model.ChunkActivity
		if err := tx.First(&activity, activityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("store: chunk activity %d not found", activityID)
			}
			return fmt.Errorf("store: record chunk exit %d: %w", activityID, err)
		}
		if activity.LeftAt != nil {
			return fmt.Errorf("store: chunk activity %d already closed", activityID)
		}
		now := time.Now()
		err := tx.Model(&activity).Updates(map[string]interface{}{
			"left_at":    now,
			"duration_s": int(now.Sub(activity.EnteredAt).Seconds()),
		}).Error
		if err != nil {
			return fmt.Errorf("store: record chunk exit %d: %w", activityID, err)
		}
		return syncOccupancy(tx, activity.ChunkX, activity.ChunkZ)
	})
}

// OpenActivity returns the player's open activity row in a chunk, or
// (nil, nil) if none is open.
func (s *Store) OpenActivity(x, z int, playerID int64) (*model.ChunkActivity, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var activity model.ChunkActivity
	err := s.db.Where("chunk_x = ? AND chunk_z = ? AND player_id = ? AND left_at IS NULL", x, z, playerID).
		Order("entered_at DESC").First(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: open activity (%d,%d) player %d: %w", x, z, playerID, err)
	}
	return &activity, nil
}

// PurgeActivityOlderThan deletes closed activity rows older than the
// given number of days. Open rows are left alone regardless of age.
func (s *Store) PurgeActivityOlderThan(days int) (int64, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	result := s.db.Where("left_at IS NOT NULL AND entered_at < ?", cutoff).
		Delete(&model.ChunkActivity{})
	if result.Error != nil {
		return 0, fmt.Errorf("store: purge chunk activity: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// syncOccupancy derives a chunk's occupant count from its open activity
// rows. The activity log is authoritative; the count column is a
// denormalized read path for the cleanup queries.
func syncOccupancy(tx *gorm.DB, x, z int) error {
	var open int64
	err := tx.Model(&model.ChunkActivity{}).
		Where("chunk_x = ? AND chunk_z = ? AND left_at IS NULL", x, z).
		Count(&open).Error
	if err != nil {
		return fmt.Errorf("store: count open activity (%d,%d): %w", x, z, err)
	}
	err = tx.Model(&model.WorldChunk{}).
		Where("chunk_x = ? AND chunk_z = ?", x, z).
		Updates(map[string]interface{}{
			"occupant_count": open,
			"last_active":    time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("store: sync occupancy (%d,%d): %w", x, z, err)
	}
	return nil
}
