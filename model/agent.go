package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Strategy is a rival agent's fixed personality.
type Strategy int

const (
	StrategyAggressive Strategy = iota
	StrategyStealth
	StrategyExplorer
)

var strategyNames = [...]string{
	StrategyAggressive: "AGGRESSIVE",
	StrategyStealth:    "STEALTH",
	StrategyExplorer:   "EXPLORER",
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

func (s Strategy) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(strategyNames) {
		return nil, fmt.Errorf("unknown strategy %d", int(s))
	}
	return []byte(strategyNames[s]), nil
}

func (s *Strategy) UnmarshalText(b []byte) error {
	for i, name := range strategyNames {
		if strings.EqualFold(name, string(b)) {
			*s = Strategy(i)
			return nil
		}
	}
	return fmt.Errorf("unknown strategy %q", string(b))
}

// ActionState is the agent's position in its finite-state machine.
type ActionState int

const (
	StateIdle ActionState = iota
	StateMoving
	StateHacking
	StateAnalyzing
)

var actionStateNames = [...]string{
	StateIdle:      "IDLE",
	StateMoving:    "MOVING",
	StateHacking:   "HACKING",
	StateAnalyzing: "ANALYZING",
}

func (a ActionState) String() string {
	if a < 0 || int(a) >= len(actionStateNames) {
		return fmt.Sprintf("ActionState(%d)", int(a))
	}
	return actionStateNames[a]
}

func (a ActionState) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(actionStateNames) {
		return nil, fmt.Errorf("unknown action state %d", int(a))
	}
	return []byte(actionStateNames[a]), nil
}

func (a *ActionState) UnmarshalText(b []byte) error {
	for i, name := range actionStateNames {
		if strings.EqualFold(name, string(b)) {
			*a = ActionState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown action state %q", string(b))
}

// HostSet is an insertion-ordered set of hostnames. It only grows.
type HostSet struct {
	order []string
	index map[string]struct{}
}

// NewHostSet builds a set from hosts, dropping duplicates.
func NewHostSet(hosts ...string) HostSet {
	var s HostSet
	for _, h := range hosts {
		s.Add(h)
	}
	return s
}

// Add inserts host and reports whether it was new.
func (s *HostSet) Add(host string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[host]; ok {
		return false
	}
	s.index[host] = struct{}{}
	s.order = append(s.order, host)
	return true
}

// Has reports membership.
func (s HostSet) Has(host string) bool {
	_, ok := s.index[host]
	return ok
}

// Len is the number of hosts in the set.
func (s HostSet) Len() int { return len(s.order) }

// Items returns the hosts in insertion order. Callers must not modify the slice.
func (s HostSet) Items() []string { return s.order }

// Clone returns an independent copy.
func (s HostSet) Clone() HostSet {
	return NewHostSet(s.order...)
}

func (s HostSet) MarshalJSON() ([]byte, error) {
	if s.order == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.order)
}

func (s *HostSet) UnmarshalJSON(b []byte) error {
	var hosts []string
	if err := json.Unmarshal(b, &hosts); err != nil {
		return err
	}
	*s = NewHostSet(hosts...)
	return nil
}

// RivalAgent is an autonomous, locally simulated competitor.
type RivalAgent struct {
	Name     string   `json:"name"`
	Faction  string   `json:"faction"`
	Strategy Strategy `json:"strategy"`

	Reputation   float64 `json:"reputation"`
	HackingSkill float64 `json:"hackingSkill"`
	IsOnline     bool    `json:"isOnline"`

	CurrentHost string      `json:"currentHost"`
	TargetHost  string      `json:"targetHost,omitempty"`
	ActionState ActionState `json:"actionState"`
	ActionTimer int         `json:"actionTimer"`

	KnowledgeBase HostSet `json:"knowledgeBase"`
	VisitedNodes  HostSet `json:"visitedNodes"`
}

// Clone returns a copy that shares no mutable state with a.
func (a RivalAgent) Clone() RivalAgent {
	a.KnowledgeBase = a.KnowledgeBase.Clone()
	a.VisitedNodes = a.VisitedNodes.Clone()
	return a
}

// ResetPlan drops any in-flight plan and returns the agent to IDLE.
func (a *RivalAgent) ResetPlan() {
	a.ActionState = StateIdle
	a.ActionTimer = 0
	a.TargetHost = ""
}
