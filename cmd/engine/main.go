package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/config"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/engine/routingalgorithm"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/kv"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/logger"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/network"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server/rest"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server/rest/service"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/storage/postgres"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/traffic"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/weather"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	cfg        *config.Config
	log        *zap.Logger

	planHeuristic string
)

var rootCmd = &cobra.Command{
	Use:   "lats-engine",
	Short: "low altitude route planning and traffic engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		log, err = logger.New(cfg.Logging.Level, cfg.Logging.JSON)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the http api",
	RunE:  serve,
}

var planCmd = &cobra.Command{
	Use:   "plan <start> <goal>",
	Short: "Plan one route on the configured road network and print it as json",
	Args:  cobra.ExactArgs(2),
	RunE:  plan,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config file")
	planCmd.Flags().StringVar(&planHeuristic, "heuristic", "", "haversine, euclidean, none or dijkstra (default from config)")
	rootCmd.AddCommand(serveCmd, planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type closableStore interface {
	service.RouteStore
	Close() error
}

func openStore(ctx context.Context) (closableStore, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool)
		if err := store.CreateSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		db, err := kv.OpenBadger(cfg.Storage.BadgerDir, cfg.Storage.InMemory)
		if err != nil {
			return nil, err
		}
		return kv.NewRouteStore(db, log), nil
	}
}

func planningConfig() (service.PlanningConfig, error) {
	mode, err := routingalgorithm.ParseHeuristicMode(cfg.Network.Heuristic)
	if err != nil {
		return service.PlanningConfig{}, err
	}
	return service.PlanningConfig{
		Heuristic:       mode,
		HeuristicWeight: cfg.Network.HeuristicWeight,
		BatchWorkers:    cfg.Network.BatchWorkers,
		MaxBatchSize:    cfg.Network.MaxBatchSize,
		CacheCapacity:   cfg.Cache.RouteCapacity,
		CacheTTL:        cfg.GetRouteTTL(),
	}, nil
}

type app struct {
	networks *network.Provider
	store    closableStore
	weather  *weather.Service
	planning *service.PlanningService
}

func (a *app) Close() {
	if a.planning != nil {
		a.planning.Close()
	}
	if a.weather != nil {
		a.weather.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn("closing route store", zap.Error(err))
		}
	}
}

func newApp(ctx context.Context, opts ...service.PlanningOption) (*app, error) {
	a := &app{networks: network.NewProvider(network.NewLoader(log), cfg.Network.File, log)}
	if _, err := a.networks.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load road network: %w", err)
	}

	var err error
	a.store, err = openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open route store: %w", err)
	}

	a.weather, err = weather.NewService(weather.NewSyntheticProvider(cfg.Weather.Seed), cfg.GetWeatherCacheTTL(), log)
	if err != nil {
		a.Close()
		return nil, err
	}

	pc, err := planningConfig()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.planning, err = service.NewPlanningService(a.networks, a.store, a.weather, pc, log, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := rest.NewMetrics(reg)

	a, err := newApp(ctx, service.WithPlanObserver(metrics))
	if err != nil {
		return err
	}
	defer a.Close()

	manager := traffic.NewManager(traffic.Config{
		SafeDistance:     cfg.Traffic.SafeDistanceMeters,
		PredictionWindow: cfg.GetPredictionWindow(),
		DefaultSpeed:     cfg.Traffic.DefaultSpeed,
	}, log)

	r := rest.NewRouter(rest.Services{
		Planning: a.planning,
		Traffic:  service.NewTrafficService(manager, a.planning, log),
		Weather:  a.weather,
	}, reg, metrics, rest.RouterConfig{EnableProfiler: cfg.Server.EnableProfiler}, log)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      r,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server started", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func plan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.planning.Plan(ctx, args[0], args[1], planHeuristic)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rest.RenderPlanResponse(res))
}
