package model

import (
	"time"

	"gorm.io/datatypes"
)

// InventoryCapacity is the fixed number of inventory slots per player.
const InventoryCapacity = 28

// InventorySlot is one occupied bag slot. Zero-quantity slots are
// deleted, never stored. Inventory is replaced wholesale on each save.
type InventorySlot struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID     int64          `gorm:"uniqueIndex:idx_player_slot;not null" json:"player_id"`
	SlotIndex    int            `gorm:"uniqueIndex:idx_player_slot;not null" json:"slot_index"`
	ItemID       int            `gorm:"not null" json:"item_id"`
	Quantity     int            `gorm:"default:1" json:"quantity"`
	InstanceData datatypes.JSON `json:"instance_data"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (InventorySlot) TableName() string { return "inventory_slots" }
