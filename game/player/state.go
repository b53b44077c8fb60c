package player

import (
	"github.com/ironvalemmo/server/model"
	"github.com/ironvalemmo/server/store"
)

// SkillState is one skill's in-memory level and experience.
type SkillState struct {
	Level int   `json:"level"`
	XP    int64 `json:"xp"`
}

// Position is a world-space point.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlayerState is the authoritative in-memory state for one online
// player. The manager owns all mutation; callers get copies.
type PlayerState struct {
	ExternalID string                `json:"externalId"`
	DBID       int64                 `json:"-"`
	Name       string                `json:"name"`
	Skills     map[string]SkillState `json:"skills"`
	CurrentHP  int                   `json:"currentHp"`
	MaxHP      int                   `json:"maxHp"`
	Pos        Position              `json:"pos"`
	Alive      bool                  `json:"alive"`
	DeathPos   *Position             `json:"deathPos,omitempty"`
	Equipment  map[string]int        `json:"equipment"`
}

// stateFromRecord hydrates in-memory state from a persisted row.
func stateFromRecord(p *model.Player, equip []model.EquipmentSlot) *PlayerState {
	st := &PlayerState{
		ExternalID: p.ExternalID,
		DBID:       p.ID,
		Name:       p.Name,
		Skills:     make(map[string]SkillState, len(model.SkillNames)),
		CurrentHP:  p.CurrentHP,
		MaxHP:      p.MaxHP,
		Pos:        Position{X: p.X, Y: p.Y, Z: p.Z},
		Alive:      p.Alive,
		Equipment:  make(map[string]int, len(equip)),
	}
	st.Skills[model.SkillAttack] = SkillState{p.AttackLevel, p.AttackXP}
	st.Skills[model.SkillStrength] = SkillState{p.StrengthLevel, p.StrengthXP}
	st.Skills[model.SkillDefence] = SkillState{p.DefenceLevel, p.DefenceXP}
	st.Skills[model.SkillConstitution] = SkillState{p.ConstitutionLevel, p.ConstitutionXP}
	st.Skills[model.SkillRanged] = SkillState{p.RangedLevel, p.RangedXP}
	st.Skills[model.SkillMagic] = SkillState{p.MagicLevel, p.MagicXP}
	st.Skills[model.SkillWoodcutting] = SkillState{p.WoodcuttingLevel, p.WoodcuttingXP}
	st.Skills[model.SkillMining] = SkillState{p.MiningLevel, p.MiningXP}
	st.Skills[model.SkillFishing] = SkillState{p.FishingLevel, p.FishingXP}
	for _, e := range equip {
		st.Equipment[e.Slot] = e.ItemID
	}
	return st
}

// toUpdate renders the full state as a merge update. Used by the
// periodic and exit-path saves, which write everything they hold.
func (st *PlayerState) toUpdate() store.PlayerUpdate {
	skills := make(map[string]store.SkillUpdate, len(st.Skills))
	for name, sk := range st.Skills {
		lvl, xp := sk.Level, sk.XP
		skills[name] = store.SkillUpdate{Level: &lvl, XP: &xp}
	}
	name := st.Name
	cur, max := st.CurrentHP, st.MaxHP
	x, y, z := st.Pos.X, st.Pos.Y, st.Pos.Z
	alive := st.Alive
	return store.PlayerUpdate{
		Name:      &name,
		Skills:    skills,
		CurrentHP: &cur,
		MaxHP:     &max,
		X:         &x,
		Y:         &y,
		Z:         &z,
		Alive:     &alive,
	}
}

// clone returns a deep copy safe to hand outside the manager's lock.
func (st *PlayerState) clone() *PlayerState {
	cp := *st
	cp.Skills = make(map[string]SkillState, len(st.Skills))
	for k, v := range st.Skills {
		cp.Skills[k] = v
	}
	cp.Equipment = make(map[string]int, len(st.Equipment))
	for k, v := range st.Equipment {
		cp.Equipment[k] = v
	}
	if st.DeathPos != nil {
		dp := *st.DeathPos
		cp.DeathPos = &dp
	}
	return &cp
}
