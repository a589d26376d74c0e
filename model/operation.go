package model

import (
	"fmt"
	"strings"
	"time"
)

// OperationKind is the effect a running script applies to its target.
type OperationKind int

const (
	OpGrow OperationKind = iota
	OpWeaken
	OpSiphon
)

var operationKindNames = [...]string{
	OpGrow:   "GROW",
	OpWeaken: "WEAKEN",
	OpSiphon: "SIPHON",
}

func (k OperationKind) String() string {
	if k < 0 || int(k) >= len(operationKindNames) {
		return fmt.Sprintf("OperationKind(%d)", int(k))
	}
	return operationKindNames[k]
}

func (k OperationKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(operationKindNames) {
		return nil, fmt.Errorf("unknown operation kind %d", int(k))
	}
	return []byte(operationKindNames[k]), nil
}

func (k *OperationKind) UnmarshalText(b []byte) error {
	for i, name := range operationKindNames {
		if strings.EqualFold(name, string(b)) {
			*k = OperationKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown operation kind %q", string(b))
}

// RunningOperation is a player-launched script looping against a target.
// Progress runs 0..100 and resets to 0 each time the effect resolves.
type RunningOperation struct {
	PID       int           `json:"pid"`
	Filename  string        `json:"filename"`
	Target    string        `json:"target"`
	Kind      OperationKind `json:"operation"`
	StartedAt time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	RAMCost   float64       `json:"ramCost"`
	Progress  float64       `json:"progress"`
}
