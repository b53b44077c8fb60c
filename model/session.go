package model

import "time"

// Disconnect reasons recorded when a session is closed.
const (
	DisconnectReasonDisconnect = "disconnect"
	DisconnectReasonTimeout    = "timeout"
	DisconnectReasonSuperseded = "superseded"
)

// PlayerSession is one connected-player lifetime. Once closed
// (active=false, ended_at set) a session is immutable except for bulk
// retention cleanup. The client token is opaque to this engine.
type PlayerSession struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	PlayerID         int64      `gorm:"index:idx_session_player;not null" json:"player_id"`
	Token            string     `gorm:"size:512" json:"token"`
	StartedAt        time.Time  `gorm:"autoCreateTime" json:"started_at"`
	EndedAt          *time.Time `json:"ended_at"`
	LastActivity     time.Time  `json:"last_activity"`
	LastSave         time.Time  `json:"last_save"`
	SaveIntervalS    int        `gorm:"default:30" json:"save_interval_s"`
	Active           bool       `gorm:"default:true;index" json:"active"`
	DisconnectReason string     `gorm:"size:32" json:"disconnect_reason"`
}

func (PlayerSession) TableName() string { return "player_sessions" }
