package model

import "time"

// Skill names. Each skill is a (level, experience) pair stored as two
// columns on the players table.
const (
	SkillAttack       = "attack"
	SkillStrength     = "strength"
	SkillDefence      = "defence"
	SkillConstitution = "constitution"
	SkillRanged       = "ranged"
	SkillMagic        = "magic"
	SkillWoodcutting  = "woodcutting"
	SkillMining       = "mining"
	SkillFishing      = "fishing"
)

// SkillNames lists all nine skills in display order.
var SkillNames = []string{
	SkillAttack, SkillStrength, SkillDefence, SkillConstitution,
	SkillRanged, SkillMagic, SkillWoodcutting, SkillMining, SkillFishing,
}

// New players start with constitution at level 10; this is the
// experience floor for that level.
const DefaultConstitutionXP int64 = 1154

// MaxHPForConstitution derives maximum hitpoints from the constitution
// skill level. Must be recomputed whenever constitution changes.
func MaxHPForConstitution(level int) int {
	return level * 10
}

// Player is one persistent player identity, distinct from any live
// connection. Exactly one row per external id.
type Player struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ExternalID string `gorm:"uniqueIndex;size:64;not null" json:"external_id"`
	Name       string `gorm:"size:32" json:"name"`

	AttackLevel       int   `gorm:"default:1" json:"attack_level"`
	AttackXP          int64 `gorm:"default:0" json:"attack_xp"`
	StrengthLevel     int   `gorm:"default:1" json:"strength_level"`
	StrengthXP        int64 `gorm:"default:0" json:"strength_xp"`
	DefenceLevel      int   `gorm:"default:1" json:"defence_level"`
	DefenceXP         int64 `gorm:"default:0" json:"defence_xp"`
	ConstitutionLevel int   `gorm:"default:10" json:"constitution_level"`
	ConstitutionXP    int64 `gorm:"default:1154" json:"constitution_xp"`
	RangedLevel       int   `gorm:"default:1" json:"ranged_level"`
	RangedXP          int64 `gorm:"default:0" json:"ranged_xp"`
	MagicLevel        int   `gorm:"default:1" json:"magic_level"`
	MagicXP           int64 `gorm:"default:0" json:"magic_xp"`
	WoodcuttingLevel  int   `gorm:"default:1" json:"woodcutting_level"`
	WoodcuttingXP     int64 `gorm:"default:0" json:"woodcutting_xp"`
	MiningLevel       int   `gorm:"default:1" json:"mining_level"`
	MiningXP          int64 `gorm:"default:0" json:"mining_xp"`
	FishingLevel      int   `gorm:"default:1" json:"fishing_level"`
	FishingXP         int64 `gorm:"default:0" json:"fishing_xp"`

	CurrentHP int `gorm:"default:100" json:"current_hp"`
	MaxHP     int `gorm:"default:100" json:"max_hp"`

	X float64 `gorm:"default:0" json:"x"`
	Y float64 `gorm:"default:64" json:"y"`
	Z float64 `gorm:"default:0" json:"z"`

	Alive     bool      `gorm:"default:true" json:"alive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Player) TableName() string { return "players" }
