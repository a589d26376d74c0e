package core

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/signalsfoundry/netexpanse/model"
)

// ErrNotExecutable is returned for scripts that name no known operation.
var ErrNotExecutable = errors.New("script contains no valid operations")

const (
	scriptBaseRAM    = 1.5
	scriptKeywordRAM = 1.0

	baseOperationTime = 2000 * time.Millisecond
	minOperationTime  = 1000 * time.Millisecond
)

// Keywords are checked in this order; the first hit decides the kind.
var scriptKeywords = []struct {
	word string
	kind model.OperationKind
}{
	{"grow", model.OpGrow},
	{"weaken", model.OpWeaken},
	{"siphon", model.OpSiphon},
}

// ClassifyScript decides which operation a script performs.
func ClassifyScript(content string) (model.OperationKind, error) {
	lower := strings.ToLower(content)
	for _, kw := range scriptKeywords {
		if strings.Contains(lower, kw.word) {
			return kw.kind, nil
		}
	}
	return 0, ErrNotExecutable
}

// ScriptRAMCost is the home RAM a script reserves while it runs.
func ScriptRAMCost(content string) float64 {
	lower := strings.ToLower(content)
	cost := scriptBaseRAM
	for _, kw := range scriptKeywords {
		if strings.Contains(lower, kw.word) {
			cost += scriptKeywordRAM
		}
	}
	return cost
}

// OperationDuration is the time one loop of an operation takes, fixed at
// launch from the player's skill and the target's security.
func OperationDuration(kind model.OperationKind, skill int, security float64) time.Duration {
	ms := float64(baseOperationTime.Milliseconds()) + security*200 - float64(skill)*50
	d := max(minOperationTime, time.Duration(math.Round(ms))*time.Millisecond)

	switch kind {
	case model.OpGrow:
		return time.Duration(float64(d) * 1.2)
	case model.OpWeaken:
		return time.Duration(float64(d) * 1.5)
	case model.OpSiphon:
		return d
	}
	return d
}
