package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/netexpanse/model"
)

// SimCollector bundles the simulation's Prometheus metrics. It satisfies
// core.MetricsRecorder and state.MetricsRecorder, and instruments the gRPC
// server through UnaryServerInterceptor.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TickDuration prometheus.Histogram
	Ticks        prometheus.Counter

	Servers        prometheus.Gauge
	OperationsLive prometheus.Gauge
	RivalsOnline   prometheus.Gauge
	RivalStates    *prometheus.GaugeVec

	OperationsResolved *prometheus.CounterVec
	OperationsDropped  prometheus.Counter
	RivalHacks         *prometheus.CounterVec
	CreditsStolenTotal *prometheus.CounterVec
	WorldExpansions    *prometheus.CounterVec

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SimCollector{gatherer: gatherer}
	var err error

	if c.TickDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "netexpanse_tick_duration_seconds",
		Help:    "Wall-clock time spent computing one simulation tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "netexpanse_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netexpanse_ticks_total",
		Help: "Number of simulation ticks computed.",
	}), "netexpanse_ticks_total"); err != nil {
		return nil, err
	}

	if c.Servers, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netexpanse_servers",
		Help: "Current number of servers in the world graph.",
	}), "netexpanse_servers"); err != nil {
		return nil, err
	}
	if c.OperationsLive, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netexpanse_operations_live",
		Help: "Current number of running player operations.",
	}), "netexpanse_operations_live"); err != nil {
		return nil, err
	}
	if c.RivalsOnline, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netexpanse_rivals_online",
		Help: "Current number of online rival agents.",
	}), "netexpanse_rivals_online"); err != nil {
		return nil, err
	}
	if c.RivalStates, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netexpanse_rival_states",
		Help: "Online rival agents per action state.",
	}, []string{"state"}), "netexpanse_rival_states"); err != nil {
		return nil, err
	}

	if c.OperationsResolved, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netexpanse_operations_resolved_total",
		Help: "Operation loops that completed and applied their effect, labeled by kind.",
	}, []string{"kind"}), "netexpanse_operations_resolved_total"); err != nil {
		return nil, err
	}
	if c.OperationsDropped, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netexpanse_operations_dropped_total",
		Help: "Operations removed because their target no longer exists.",
	}), "netexpanse_operations_dropped_total"); err != nil {
		return nil, err
	}
	if c.RivalHacks, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netexpanse_rival_hacks_total",
		Help: "Completed rival hacks, labeled by strategy.",
	}, []string{"strategy"}), "netexpanse_rival_hacks_total"); err != nil {
		return nil, err
	}
	if c.CreditsStolenTotal, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netexpanse_credits_stolen_total",
		Help: "Credits taken from servers, labeled by actor (player or rival).",
	}, []string{"actor"}), "netexpanse_credits_stolen_total"); err != nil {
		return nil, err
	}
	if c.WorldExpansions, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netexpanse_world_expansions_total",
		Help: "World graph expansions, labeled by trigger.",
	}, []string{"trigger"}), "netexpanse_world_expansions_total"); err != nil {
		return nil, err
	}

	if c.RPCRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netexpanse_grpc_requests_total",
		Help: "Total number of handled gRPC calls, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "netexpanse_grpc_requests_total"); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netexpanse_grpc_request_duration_seconds",
		Help:    "gRPC call latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method"}), "netexpanse_grpc_request_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *SimCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
	c.Ticks.Inc()
}

func (c *SimCollector) OperationResolved(kind model.OperationKind) {
	if c == nil {
		return
	}
	c.OperationsResolved.WithLabelValues(kind.String()).Inc()
}

func (c *SimCollector) OperationDropped() {
	if c == nil {
		return
	}
	c.OperationsDropped.Inc()
}

// CreditsStolen ignores non-positive amounts; counters only go up.
func (c *SimCollector) CreditsStolen(actor string, amount float64) {
	if c == nil || amount <= 0 {
		return
	}
	c.CreditsStolenTotal.WithLabelValues(actor).Add(amount)
}

func (c *SimCollector) RivalHack(strategy model.Strategy) {
	if c == nil {
		return
	}
	c.RivalHacks.WithLabelValues(strategy.String()).Inc()
}

// SetWorldCounts refreshes the world gauges after a tick. Every action
// state is written, so states nobody is in read zero.
func (c *SimCollector) SetWorldCounts(servers, operations int, rivals []model.RivalAgent) {
	if c == nil {
		return
	}
	c.Servers.Set(float64(servers))
	c.OperationsLive.Set(float64(operations))

	states := map[model.ActionState]int{}
	online := 0
	for _, r := range rivals {
		if !r.IsOnline {
			continue
		}
		online++
		states[r.ActionState]++
	}
	c.RivalsOnline.Set(float64(online))
	for _, s := range []model.ActionState{model.StateIdle, model.StateMoving, model.StateHacking, model.StateAnalyzing} {
		c.RivalStates.WithLabelValues(s.String()).Set(float64(states[s]))
	}
}

func (c *SimCollector) WorldExpanded(trigger string) {
	if c == nil {
		return
	}
	c.WorldExpansions.WithLabelValues(trigger).Inc()
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *SimCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
