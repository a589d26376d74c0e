package model

import "math"

// PlayerProgress is the slice of player state the simulation reads and writes.
type PlayerProgress struct {
	Credits      float64            `json:"credits"`
	HackingSkill int                `json:"hackingSkill"`
	Exp          float64            `json:"exp"`
	Programs     []string           `json:"programs"`
	Factions     []string           `json:"factions"`
	Reputation   map[string]float64 `json:"reputation"`
	HomeCity     string             `json:"homeCity"`
}

// NewPlayerProgress returns a level-1 player with no credits.
func NewPlayerProgress(homeCity string) PlayerProgress {
	return PlayerProgress{
		HackingSkill: SkillForExp(0),
		Programs:     []string{},
		Factions:     []string{},
		Reputation:   map[string]float64{},
		HomeCity:     homeCity,
	}
}

// SkillForExp derives hacking skill from accumulated experience.
func SkillForExp(exp float64) int {
	if exp < 0 {
		exp = 0
	}
	return int(math.Floor(math.Sqrt(exp/100))) + 1
}

// HasFaction reports faction membership.
func (p PlayerProgress) HasFaction(name string) bool {
	for _, f := range p.Factions {
		if f == name {
			return true
		}
	}
	return false
}

// HasProgram reports whether the named program is owned.
func (p PlayerProgress) HasProgram(name string) bool {
	for _, prog := range p.Programs {
		if prog == name {
			return true
		}
	}
	return false
}

// Clone returns a copy with independent slices and maps.
func (p PlayerProgress) Clone() PlayerProgress {
	p.Programs = append([]string{}, p.Programs...)
	p.Factions = append([]string{}, p.Factions...)
	rep := make(map[string]float64, len(p.Reputation))
	for k, v := range p.Reputation {
		rep[k] = v
	}
	p.Reputation = rep
	return p
}
