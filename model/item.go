package model

import "gorm.io/datatypes"

// Item categories in the static catalog.
const (
	ItemCategoryWeapon     = "weapon"
	ItemCategoryArmor      = "armor"
	ItemCategoryTool       = "tool"
	ItemCategoryFood       = "food"
	ItemCategoryResource   = "resource"
	ItemCategoryAmmunition = "ammunition"
)

// Item is a static catalog entry. Seeded once at first boot and
// read-only afterwards from this engine's perspective.
type Item struct {
	ID           int            `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:64;not null" json:"name"`
	Category     string         `gorm:"size:16;not null" json:"category"`
	Tier         int            `gorm:"default:1" json:"tier"`
	Stackable    bool           `gorm:"default:false" json:"stackable"`
	Requirements datatypes.JSON `json:"requirements"` // skill name → required level
	Bonuses      datatypes.JSON `json:"bonuses"`      // combat bonus name → value
	HealAmount   int            `gorm:"default:0" json:"heal_amount"`
}

func (Item) TableName() string { return "items" }
