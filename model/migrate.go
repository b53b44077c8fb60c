package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SchemaMigration is the ledger of applied migrations.
type SchemaMigration struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	AppliedAt time.Time `gorm:"autoCreateTime" json:"applied_at"`
}

func (SchemaMigration) TableName() string { return "schema_migrations" }

// Migration is one named, ordered, idempotent schema change.
// AutoMigrate creates tables if-not-exists, so a migration interrupted
// between apply and ledger write is safe to re-run.
type Migration struct {
	Name string
	Run  func(db *gorm.DB) error
}

// Migrations is the ordered migration set. Append only; never reorder
// or rename an entry that has shipped.
var Migrations = []Migration{
	{
		Name: "001_players",
		Run: func(db *gorm.DB) error {
			return db.AutoMigrate(&Player{}, &InventorySlot{}, &EquipmentSlot{})
		},
	},
	{
		Name: "002_item_catalog",
		Run: func(db *gorm.DB) error {
			return db.AutoMigrate(&Item{})
		},
	},
	{
		Name: "003_world_chunks",
		Run: func(db *gorm.DB) error {
			return db.AutoMigrate(&WorldChunk{}, &ChunkActivity{})
		},
	},
	{
		Name: "004_sessions",
		Run: func(db *gorm.DB) error {
			return db.AutoMigrate(&PlayerSession{})
		},
	},
}

// Migrate applies, in order, every migration not yet recorded in the
// ledger, then records it. A failure aborts immediately; callers treat
// that as fatal at startup.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("migrate: create ledger: %w", err)
	}
	for _, m := range Migrations {
		var count int64
		if err := db.Model(&SchemaMigration{}).Where("name = ?", m.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("migrate: check ledger for %s: %w", m.Name, err)
		}
		if count > 0 {
			continue
		}
		if err := m.Run(db); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", m.Name, err)
		}
		if err := db.Create(&SchemaMigration{Name: m.Name}).Error; err != nil {
			return fmt.Errorf("migrate: record %s: %w", m.Name, err)
		}
	}
	return nil
}
