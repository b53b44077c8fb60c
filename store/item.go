package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ironvalemmo/server/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const itemCacheTTL = time.Hour

// seedCatalog is the static item catalog written at first boot.
var seedCatalog = []model.Item{
	{ID: 1, Name: "Bronze sword", Category: model.ItemCategoryWeapon, Tier: 1,
		Requirements: mustJSON(map[string]int{model.SkillAttack: 1}),
		Bonuses:      mustJSON(map[string]int{"slash": 4, "strength": 3})},
	{ID: 2, Name: "Iron sword", Category: model.ItemCategoryWeapon, Tier: 2,
		Requirements: mustJSON(map[string]int{model.SkillAttack: 10}),
		Bonuses:      mustJSON(map[string]int{"slash": 8, "strength": 6})},
	{ID: 3, Name: "Steel sword", Category: model.ItemCategoryWeapon, Tier: 3,
		Requirements: mustJSON(map[string]int{model.SkillAttack: 20}),
		Bonuses:      mustJSON(map[string]int{"slash": 14, "strength": 10})},
	{ID: 4, Name: "Oak shortbow", Category: model.ItemCategoryWeapon, Tier: 2,
		Requirements: mustJSON(map[string]int{model.SkillRanged: 5}),
		Bonuses:      mustJSON(map[string]int{"ranged": 8})},
	{ID: 10, Name: "Wooden shield", Category: model.ItemCategoryArmor, Tier: 1,
		Bonuses: mustJSON(map[string]int{"defence": 3})},
	{ID: 11, Name: "Bronze helmet", Category: model.ItemCategoryArmor, Tier: 1,
		Bonuses: mustJSON(map[string]int{"defence": 2})},
	{ID: 12, Name: "Bronze platebody", Category: model.ItemCategoryArmor, Tier: 1,
		Requirements: mustJSON(map[string]int{model.SkillDefence: 1}),
		Bonuses:      mustJSON(map[string]int{"defence": 7})},
	{ID: 13, Name: "Bronze platelegs", Category: model.ItemCategoryArmor, Tier: 1,
		Bonuses: mustJSON(map[string]int{"defence": 5})},
	{ID: 20, Name: "Bronze arrow", Category: model.ItemCategoryAmmunition, Tier: 1, Stackable: true,
		Bonuses: mustJSON(map[string]int{"ranged": 1})},
	{ID: 30, Name: "Bronze hatchet", Category: model.ItemCategoryTool, Tier: 1,
		Requirements: mustJSON(map[string]int{model.SkillWoodcutting: 1})},
	{ID: 31, Name: "Bronze pickaxe", Category: model.ItemCategoryTool, Tier: 1,
		Requirements: mustJSON(map[string]int{model.SkillMining: 1})},
	{ID: 32, Name: "Fishing rod", Category: model.ItemCategoryTool, Tier: 1,
		Requirements: mustJSON(map[string]int{model.SkillFishing: 1})},
	{ID: 40, Name: "Shrimp", Category: model.ItemCategoryFood, Tier: 1, Stackable: true, HealAmount: 3},
	{ID: 41, Name: "Trout", Category: model.ItemCategoryFood, Tier: 2, Stackable: true, HealAmount: 7},
	{ID: 42, Name: "Bread", Category: model.ItemCategoryFood, Tier: 1, Stackable: true, HealAmount: 5},
	{ID: 50, Name: "Logs", Category: model.ItemCategoryResource, Tier: 1, Stackable: true},
	{ID: 51, Name: "Copper ore", Category: model.ItemCategoryResource, Tier: 1, Stackable: true},
	{ID: 52, Name: "Tin ore", Category: model.ItemCategoryResource, Tier: 1, Stackable: true},
}

func mustJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}

// seedItems writes the catalog once. Any existing rows mean a previous
// boot already seeded, so the whole step is skipped; that keeps seeding
// idempotent and safe to call on every startup.
func (s *Store) seedItems() error {
	var count int64
	if err := s.db.Model(&model.Item{}).Count(&count).Error; err != nil {
		return fmt.Errorf("store: count items: %w", err)
	}
	if count > 0 {
		return nil
	}
	items := make([]model.Item, len(seedCatalog))
	copy(items, seedCatalog)
	if err := s.db.Create(&items).Error; err != nil {
		return fmt.Errorf("store: seed items: %w", err)
	}
	return nil
}

// GetItem returns one catalog entry, or (nil, nil) if the id is
// unknown. Reads go through the cache; the catalog is immutable after
// seeding so a long TTL is safe.
func (s *Store) GetItem(id int) (*model.Item, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	ctx := context.Background()
	key := fmt.Sprintf("item:%d", id)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var item model.Item
			if err := json.Unmarshal([]byte(raw), &item); err == nil {
				return &item, nil
			}
		}
	}

	var item model.Item
	err := s.db.First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get item %d: %w", id, err)
	}
	if s.cache != nil {
		if raw, err := json.Marshal(&item); err == nil {
			_ = s.cache.Set(ctx, key, string(raw), itemCacheTTL)
		}
	}
	return &item, nil
}

// GetAllItems returns the full catalog ordered by id.
func (s *Store) GetAllItems() ([]model.Item, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var items []model.Item
	if err := s.db.Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("store: get all items: %w", err)
	}
	return items, nil
}
