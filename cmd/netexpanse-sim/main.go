// Command netexpanse-sim runs the NetExpanse world simulation headless:
// it loads or creates a world, ticks it at a fixed rate, autosaves, and
// exposes Prometheus metrics and a gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/netexpanse/core"
	"github.com/signalsfoundry/netexpanse/internal/config"
	"github.com/signalsfoundry/netexpanse/internal/eventlog"
	"github.com/signalsfoundry/netexpanse/internal/logging"
	"github.com/signalsfoundry/netexpanse/internal/observability"
	"github.com/signalsfoundry/netexpanse/internal/sim/persist"
	"github.com/signalsfoundry/netexpanse/internal/sim/state"
	"github.com/signalsfoundry/netexpanse/internal/simrand"
	"github.com/signalsfoundry/netexpanse/model"
	"github.com/signalsfoundry/netexpanse/timectrl"
)

// HealthService is the service name reported alongside the overall status.
const HealthService = "netexpanse.Simulator"

// grpcStopTimeout bounds how long in-flight RPCs may delay shutdown.
const grpcStopTimeout = 5 * time.Second

type options struct {
	configPath  string
	ticks       uint64
	accelerated bool
	fresh       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "netexpanse.yaml", "Path to the YAML config file (missing file uses defaults)")
	flag.Uint64Var(&opts.ticks, "ticks", 0, "Stop after this many ticks; 0 runs until interrupted")
	flag.BoolVar(&opts.accelerated, "accelerated", false, "Run ticks back to back instead of at the tick interval")
	flag.BoolVar(&opts.fresh, "fresh", false, "Ignore any existing save and start a new game")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "netexpanse-sim: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		Writer:      out,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	simMetrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	schedMetrics, err := observability.NewSchedulerCollector(reg)
	if err != nil {
		return fmt.Errorf("init scheduler metrics: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := simrand.New(seed)

	mode := timectrl.RealTime
	if opts.accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now(), cfg.TickInterval, mode)
	tc.SetMetricsRecorder(schedMetrics)
	events := eventlog.NewFactory(simrand.NewReader(seed), tc.Now)

	store := persist.NewStore(cfg.SavePath, log)
	world, history := loadWorld(ctx, store, rng, opts.fresh, log)

	st := state.NewWorldState(world, log,
		state.WithRand(rng),
		state.WithEventFactory(events),
		state.WithClock(tc.Now),
		state.WithMaxLogs(cfg.MaxLogs),
		state.WithHistory(history),
		state.WithMetricsRecorder(simMetrics),
	)
	st.Subscribe(mirrorEvents(log))

	engine := core.NewEngine(rng,
		core.WithTickInterval(cfg.TickInterval),
		core.WithEventFactory(events),
		core.WithMetrics(simMetrics),
	)
	engine.RegisterTickListener(func(ctx context.Context, w core.World, evs []model.LogEvent) {
		log.Debug(ctx, "tick committed",
			logging.Any("tick", w.Tick),
			logging.Int("servers", w.Servers.Len()),
			logging.Int("operations", len(w.Operations)),
			logging.Int("events", len(evs)),
		)
	})

	metricsSrv, err := serveMetrics(cfg.MetricsAddr, simMetrics, log)
	if err != nil {
		return err
	}
	defer shutdownHTTP(metricsSrv)

	grpcSrv, healthSrv, _, err := serveGRPC(cfg.GRPCAddr, simMetrics, log)
	if err != nil {
		return err
	}
	defer stopGRPC(grpcSrv, healthSrv, grpcStopTimeout)

	saver := &autosaver{store: store, state: st, metrics: schedMetrics, log: log}

	tc.AddListener(func(ctx context.Context, _ uint64, _ time.Time) {
		next := st.Tick() + 1
		st.RunTick(logging.ContextWithTick(ctx, next), engine)
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var wg sync.WaitGroup
	if cfg.AutosaveInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saver.loop(runCtx, cfg.AutosaveInterval)
		}()
	}

	setServing(healthSrv, healthpb.HealthCheckResponse_SERVING)
	log.Info(ctx, "simulation started",
		logging.Any("seed", seed),
		logging.String("tick_interval", cfg.TickInterval.String()),
		logging.Bool("accelerated", opts.accelerated),
		logging.Any("start_tick", st.Tick()),
	)

	<-tc.Start(runCtx, opts.ticks)
	cancelRun()
	wg.Wait()

	setServing(healthSrv, healthpb.HealthCheckResponse_NOT_SERVING)
	log.Info(ctx, "simulation stopped", logging.Any("tick", st.Tick()))

	return saver.save(context.Background())
}

// loadWorld resumes from the save unless fresh is set. A missing or
// unreadable save starts a new game.
func loadWorld(ctx context.Context, store *persist.Store, rng simrand.Rand, fresh bool, log logging.Logger) (core.World, []model.LogEvent) {
	if fresh {
		log.Info(ctx, "starting new game", logging.String("reason", "fresh flag"))
		return state.FreshWorld(rng), nil
	}
	loaded, err := store.Load(ctx, rng)
	switch {
	case err == nil:
		return loaded.World, loaded.Logs
	case errors.Is(err, persist.ErrNoSave):
		log.Info(ctx, "starting new game", logging.String("reason", "no save"), logging.String("path", store.Path()))
	default:
		log.Warn(ctx, "save unreadable, starting new game", logging.String("path", store.Path()), logging.String("error", err.Error()))
	}
	return state.FreshWorld(rng), nil
}

// mirrorEvents copies committed game log events into the process log.
// Chat is chatty, so it only shows at debug level.
func mirrorEvents(log logging.Logger) func([]model.LogEvent) {
	return func(evs []model.LogEvent) {
		ctx := context.Background()
		for _, ev := range evs {
			fields := []logging.Field{
				logging.String("kind", ev.Kind.String()),
				logging.Any("tick", ev.Tick),
			}
			if ev.Sender != "" {
				fields = append(fields, logging.String("sender", ev.Sender))
			}
			if ev.Kind == model.LogChat {
				log.Debug(ctx, ev.Message, fields...)
				continue
			}
			log.Info(ctx, ev.Message, fields...)
		}
	}
}

type autosaver struct {
	store   *persist.Store
	state   *state.WorldState
	metrics *observability.SchedulerCollector
	log     logging.Logger
}

func (a *autosaver) loop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.save(ctx); err != nil {
				a.log.Warn(ctx, "autosave failed", logging.String("error", err.Error()))
			}
		}
	}
}

func (a *autosaver) save(ctx context.Context) error {
	start := time.Now()
	err := a.store.Save(ctx, a.state.Snapshot(), a.state.Logs(0))
	a.metrics.ObserveSave(time.Since(start), err)
	return err
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) (*http.Server, error) {
	if addr == "" || collector == nil {
		return nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", lis.Addr().String()))
	return srv, nil
}

func shutdownHTTP(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// serveGRPC starts the health service. It returns nil servers when addr is
// empty, and the bound address otherwise.
func serveGRPC(addr string, collector *observability.SimCollector, log logging.Logger) (*grpc.Server, *health.Server, net.Addr, error) {
	if addr == "" {
		return nil, nil, nil, nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("listen for gRPC on %s: %w", addr, err)
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(collector.UnaryServerInterceptor()),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(server, healthSrv)
	setServing(healthSrv, healthpb.HealthCheckResponse_NOT_SERVING)

	log.Info(context.Background(), "starting gRPC health server", logging.String("addr", lis.Addr().String()))
	go func() {
		if err := server.Serve(lis); err != nil {
			log.Error(context.Background(), "gRPC server exited", logging.String("error", err.Error()))
		}
	}()
	return server, healthSrv, lis.Addr(), nil
}

// stopGRPC drains the server, force-closing whatever is still open after
// timeout. Health Watch streams never finish on their own.
func stopGRPC(srv *grpc.Server, healthSrv *health.Server, timeout time.Duration) {
	if srv == nil {
		return
	}
	if healthSrv != nil {
		healthSrv.Shutdown()
	}
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		srv.Stop()
		<-done
	}
}

func setServing(srv *health.Server, status healthpb.HealthCheckResponse_ServingStatus) {
	if srv == nil {
		return
	}
	srv.SetServingStatus("", status)
	srv.SetServingStatus(HealthService, status)
}
