package core

import (
	"time"

	"github.com/signalsfoundry/netexpanse/model"
)

// MetricsRecorder receives engine measurements. The Prometheus collector in
// internal/observability implements it.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	OperationResolved(kind model.OperationKind)
	OperationDropped()
	CreditsStolen(actor string, amount float64)
	RivalHack(strategy model.Strategy)
	SetWorldCounts(servers, operations int, rivals []model.RivalAgent)
}

// Actor labels for CreditsStolen.
const (
	ActorPlayer = "player"
	ActorRival  = "rival"
)

type noopRecorder struct{}

func (noopRecorder) ObserveTick(time.Duration)                   {}
func (noopRecorder) OperationResolved(model.OperationKind)       {}
func (noopRecorder) OperationDropped()                           {}
func (noopRecorder) CreditsStolen(string, float64)               {}
func (noopRecorder) RivalHack(model.Strategy)                    {}
func (noopRecorder) SetWorldCounts(int, int, []model.RivalAgent) {}
