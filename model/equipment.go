package model

import "time"

// Named equipment slots. At most one item per slot per player.
const (
	EquipSlotWeapon = "weapon"
	EquipSlotShield = "shield"
	EquipSlotHelmet = "helmet"
	EquipSlotBody   = "body"
	EquipSlotLegs   = "legs"
	EquipSlotAmmo   = "ammo"
)

// EquipSlotNames lists the fixed slot enumeration.
var EquipSlotNames = []string{
	EquipSlotWeapon, EquipSlotShield, EquipSlotHelmet,
	EquipSlotBody, EquipSlotLegs, EquipSlotAmmo,
}

// EquipmentSlot is one equipped item. Writes are per-slot upserts keyed
// by (player_id, slot).
type EquipmentSlot struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID  int64     `gorm:"uniqueIndex:idx_player_equip;not null" json:"player_id"`
	Slot      string    `gorm:"uniqueIndex:idx_player_equip;size:16;not null" json:"slot"`
	ItemID    int       `gorm:"not null" json:"item_id"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EquipmentSlot) TableName() string { return "equipment_slots" }
