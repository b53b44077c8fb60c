package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ironvalemmo/server/model"
)

// SessionUpdate is a partial session update; nil fields are untouched.
// End-of-life fields (active, ended_at, disconnect_reason) go through
// EndSession, not here.
type SessionUpdate struct {
	LastActivity *time.Time
	LastSave     *time.Time
}

// CreateSession opens a session row for a player and returns its id.
// The token is stored opaquely; this engine never inspects it.
func (s *Store) CreateSession(playerID int64, token string, saveIntervalS int) (string, error) {
	if err := s.checkReady(); err != nil {
		return "", err
	}
	now := time.Now()
	sess := &model.PlayerSession{
		ID:            uuid.New().String(),
		PlayerID:      playerID,
		Token:         token,
		StartedAt:     now,
		LastActivity:  now,
		LastSave:      now,
		SaveIntervalS: saveIntervalS,
		Active:        true,
	}
	if err := s.db.Create(sess).Error; err != nil {
		return "", fmt.Errorf("store: create session for player %d: %w", playerID, err)
	}
	return sess.ID, nil
}

// UpdateSession applies a partial update to an active session.
func (s *Store) UpdateSession(id string, upd SessionUpdate) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	cols := make(map[string]interface{})
	if upd.LastActivity != nil {
		cols["last_activity"] = *upd.LastActivity
	}
	if upd.LastSave != nil {
		cols["last_save"] = *upd.LastSave
	}
	if len(cols) == 0 {
		return nil
	}
	err := s.db.Model(&model.PlayerSession{}).
		Where("id = ? AND active = ?", id, true).
		Updates(cols).Error
	if err != nil {
		return fmt.Errorf("store: update session %s: %w", id, err)
	}
	return nil
}

// GetActiveSessions returns all currently open sessions.
func (s *Store) GetActiveSessions() ([]model.PlayerSession, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var sessions []model.PlayerSession
	if err := s.db.Where("active = ?", true).Order("started_at").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("store: get active sessions: %w", err)
	}
	return sessions, nil
}

// GetActiveSessionsForPlayer returns a player's open sessions. More
// than one indicates a racing entry/exit; the coordinator closes
// extras explicitly.
func (s *Store) GetActiveSessionsForPlayer(playerID int64) ([]model.PlayerSession, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var sessions []model.PlayerSession
	err := s.db.Where("player_id = ? AND active = ?", playerID, true).
		Order("started_at").Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("store: get active sessions for player %d: %w", playerID, err)
	}
	return sessions, nil
}

// GetStaleSessions returns open sessions whose last activity is older
// than the staleness window.
func (s *Store) GetStaleSessions(staleness time.Duration) ([]model.PlayerSession, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-staleness)
	var sessions []model.PlayerSession
	err := s.db.Where("active = ? AND last_activity < ?", true, cutoff).Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("store: get stale sessions: %w", err)
	}
	return sessions, nil
}

// EndSession closes a session: active=false, end time set, reason
// recorded. A closed session is immutable afterwards except for bulk
// retention cleanup.
func (s *Store) EndSession(id, reason string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	now := time.Now()
	err := s.db.Model(&model.PlayerSession{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"active":            false,
			"ended_at":          now,
			"last_activity":     now,
			"disconnect_reason": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("store: end session %s: %w", id, err)
	}
	return nil
}

// PurgeSessionsOlderThan deletes closed sessions that started more than
// the given number of days ago. Open sessions are never reaped by age.
func (s *Store) PurgeSessionsOlderThan(days int) (int64, error) {
	if err := s.checkReady(); err != nil {
		return 0, err
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	result := s.db.Where("active = ? AND started_at < ?", false, cutoff).
		Delete(&model.PlayerSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("store: purge sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
