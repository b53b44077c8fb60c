package store

import (
	"errors"
	"fmt"

	"github.com/ironvalemmo/server/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultWeaponItemID is the weapon provisioned for brand-new players.
const DefaultWeaponItemID = 1

// SkillUpdate carries a partial update for one skill pair.
type SkillUpdate struct {
	Level *int
	XP    *int64
}

// PlayerUpdate is a field-level merge: only non-nil fields (and skills
// present in the map) are written. Absent fields are left untouched.
type PlayerUpdate struct {
	Name      *string
	Skills    map[string]SkillUpdate
	CurrentHP *int
	MaxHP     *int
	X         *float64
	Y         *float64
	Z         *float64
	Alive     *bool
}

// skillColumns maps skill names to their (level, xp) column pair.
var skillColumns = map[string][2]string{
	model.SkillAttack:       {"attack_level", "attack_xp"},
	model.SkillStrength:     {"strength_level", "strength_xp"},
	model.SkillDefence:      {"defence_level", "defence_xp"},
	model.SkillConstitution: {"constitution_level", "constitution_xp"},
	model.SkillRanged:       {"ranged_level", "ranged_xp"},
	model.SkillMagic:        {"magic_level", "magic_xp"},
	model.SkillWoodcutting:  {"woodcutting_level", "woodcutting_xp"},
	model.SkillMining:       {"mining_level", "mining_xp"},
	model.SkillFishing:      {"fishing_level", "fishing_xp"},
}

func (u PlayerUpdate) columns() (map[string]interface{}, error) {
	cols := make(map[string]interface{})
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	for skill, su := range u.Skills {
		pair, ok := skillColumns[skill]
		if !ok {
			return nil, fmt.Errorf("store: unknown skill %q", skill)
		}
		if su.Level != nil {
			cols[pair[0]] = *su.Level
		}
		if su.XP != nil {
			cols[pair[1]] = *su.XP
		}
	}
	if u.CurrentHP != nil {
		cols["current_hp"] = *u.CurrentHP
	}
	if u.MaxHP != nil {
		cols["max_hp"] = *u.MaxHP
	}
	if u.X != nil {
		cols["x"] = *u.X
	}
	if u.Y != nil {
		cols["y"] = *u.Y
	}
	if u.Z != nil {
		cols["z"] = *u.Z
	}
	if u.Alive != nil {
		cols["alive"] = *u.Alive
	}
	return cols, nil
}

// apply merges the update into a fresh record before first insert.
// Rejects unknown skill names the same way columns does; the insert
// path must not be laxer than the update path.
func (u PlayerUpdate) apply(p *model.Player) error {
	if u.Name != nil {
		p.Name = *u.Name
	}
	for skill, su := range u.Skills {
		lvl, xp := skillPtrs(p, skill)
		if lvl == nil {
			return fmt.Errorf("store: unknown skill %q", skill)
		}
		if su.Level != nil {
			*lvl = *su.Level
		}
		if su.XP != nil {
			*xp = *su.XP
		}
	}
	if u.CurrentHP != nil {
		p.CurrentHP = *u.CurrentHP
	}
	if u.MaxHP != nil {
		p.MaxHP = *u.MaxHP
	}
	if u.X != nil {
		p.X = *u.X
	}
	if u.Y != nil {
		p.Y = *u.Y
	}
	if u.Z != nil {
		p.Z = *u.Z
	}
	if u.Alive != nil {
		p.Alive = *u.Alive
	}
	return nil
}

// GetPlayer returns the persisted record for an external id, or
// (nil, nil) when no record exists. Absence is the normal new-player
// signal, not an error.
func (s *Store) GetPlayer(externalID string) (*model.Player, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var p model.Player
	err := s.db.Where("external_id = ?", externalID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get player %s: %w", externalID, err)
	}
	return &p, nil
}

// SavePlayer upserts a player by external id. When no record exists,
// the supplied fields are merged over column defaults and the default
// starting weapon is provisioned as equipment. When a record exists,
// only the supplied fields are updated.
func (s *Store) SavePlayer(externalID string, upd PlayerUpdate) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.Player
		err := tx.Where("external_id = ?", externalID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record := defaultPlayer(externalID)
			if err := upd.apply(record); err != nil {
				return err
			}
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("store: create player %s: %w", externalID, err)
			}
			return upsertEquipment(tx, record.ID, model.EquipSlotWeapon, DefaultWeaponItemID)
		case err != nil:
			return fmt.Errorf("store: save player %s: %w", externalID, err)
		}

		cols, err := upd.columns()
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}
		if err := tx.Model(&model.Player{}).Where("id = ?", existing.ID).Updates(cols).Error; err != nil {
			return fmt.Errorf("store: update player %s: %w", externalID, err)
		}
		return nil
	})
}

// defaultPlayer builds a new-player record: all skills at level 1
// except constitution at 10, health 100/100, alive, at origin spawn.
func defaultPlayer(externalID string) *model.Player {
	maxHP := model.MaxHPForConstitution(10)
	return &model.Player{
		ExternalID:        externalID,
		AttackLevel:       1,
		StrengthLevel:     1,
		DefenceLevel:      1,
		ConstitutionLevel: 10,
		ConstitutionXP:    model.DefaultConstitutionXP,
		RangedLevel:       1,
		MagicLevel:        1,
		WoodcuttingLevel:  1,
		MiningLevel:       1,
		FishingLevel:      1,
		CurrentHP:         maxHP,
		MaxHP:             maxHP,
		Y:                 64,
		Alive:             true,
	}
}

// GetInventory returns a player's occupied slots ordered by slot index.
func (s *Store) GetInventory(playerID int64) ([]model.InventorySlot, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var slots []model.InventorySlot
	if err := s.db.Where("player_id = ?", playerID).Order("slot_index").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("store: get inventory %d: %w", playerID, err)
	}
	return slots, nil
}

// SaveInventory replaces a player's inventory wholesale: inventory is a
// value snapshot, not an append log. The delete-then-insert runs in one
// transaction so a reader never observes a half-written inventory.
// Zero-quantity slots are rejected, as is exceeding capacity.
func (s *Store) SaveInventory(playerID int64, slots []model.InventorySlot) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if len(slots) > model.InventoryCapacity {
		return fmt.Errorf("store: inventory for %d exceeds capacity: %d > %d",
			playerID, len(slots), model.InventoryCapacity)
	}
	for _, slot := range slots {
		if slot.Quantity <= 0 {
			return fmt.Errorf("store: inventory slot %d for %d has non-positive quantity %d",
				slot.SlotIndex, playerID, slot.Quantity)
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("player_id = ?", playerID).Delete(&model.InventorySlot{}).Error; err != nil {
			return fmt.Errorf("store: clear inventory %d: %w", playerID, err)
		}
		for i := range slots {
			slots[i].ID = 0
			slots[i].PlayerID = playerID
		}
		if len(slots) == 0 {
			return nil
		}
		if err := tx.Create(&slots).Error; err != nil {
			return fmt.Errorf("store: write inventory %d: %w", playerID, err)
		}
		return nil
	})
}

// GetEquipment returns all occupied equipment slots for a player.
func (s *Store) GetEquipment(playerID int64) ([]model.EquipmentSlot, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var slots []model.EquipmentSlot
	if err := s.db.Where("player_id = ?", playerID).Order("slot").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("store: get equipment %d: %w", playerID, err)
	}
	return slots, nil
}

// SaveEquipment upserts one named slot, overwriting any prior occupant.
func (s *Store) SaveEquipment(playerID int64, slot string, itemID int) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if !validEquipSlot(slot) {
		return fmt.Errorf("store: unknown equipment slot %q", slot)
	}
	return upsertEquipment(s.db, playerID, slot, itemID)
}

// ClearEquipment empties one named slot. Clearing an already-empty slot
// is a no-op.
func (s *Store) ClearEquipment(playerID int64, slot string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if !validEquipSlot(slot) {
		return fmt.Errorf("store: unknown equipment slot %q", slot)
	}
	if err := s.db.Where("player_id = ? AND slot = ?", playerID, slot).
		Delete(&model.EquipmentSlot{}).Error; err != nil {
		return fmt.Errorf("store: clear equipment %d/%s: %w", playerID, slot, err)
	}
	return nil
}

func upsertEquipment(tx *gorm.DB, playerID int64, slot string, itemID int) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}, {Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"item_id"}),
	}).Create(&model.EquipmentSlot{PlayerID: playerID, Slot: slot, ItemID: itemID}).Error
	if err != nil {
		return fmt.Errorf("store: save equipment %d/%s: %w", playerID, slot, err)
	}
	return nil
}

// skillPtrs returns pointers to the (level, xp) fields for a skill, or
// (nil, nil) for an unknown skill name.
func skillPtrs(p *model.Player, skill string) (*int, *int64) {
	switch skill {
	case model.SkillAttack:
		return &p.AttackLevel, &p.AttackXP
	case model.SkillStrength:
		return &p.StrengthLevel, &p.StrengthXP
	case model.SkillDefence:
		return &p.DefenceLevel, &p.DefenceXP
	case model.SkillConstitution:
		return &p.ConstitutionLevel, &p.ConstitutionXP
	case model.SkillRanged:
		return &p.RangedLevel, &p.RangedXP
	case model.SkillMagic:
		return &p.MagicLevel, &p.MagicXP
	case model.SkillWoodcutting:
		return &p.WoodcuttingLevel, &p.WoodcuttingXP
	case model.SkillMining:
		return &p.MiningLevel, &p.MiningXP
	case model.SkillFishing:
		return &p.FishingLevel, &p.FishingXP
	}
	return nil, nil
}

func validEquipSlot(slot string) bool {
	for _, s := range model.EquipSlotNames {
		if s == slot {
			return true
		}
	}
	return false
}
