package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fieldtrack-go/internal/capture"
	"fieldtrack-go/internal/clients"
	"fieldtrack-go/internal/cloudsync"
	"fieldtrack-go/internal/config"
	"fieldtrack-go/internal/directions"
	"fieldtrack-go/internal/connectivity"
	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/geofence"
	"fieldtrack-go/internal/handlers"
	"fieldtrack-go/internal/httpserver"
	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/queue"
	"fieldtrack-go/internal/route"
	"fieldtrack-go/internal/state"
)

type alertLog struct{ log *logging.Logger }

func (a alertLog) Notify(al geofence.Alert) {
	a.log.Infof("near %s %s (%dm)", al.Target.Tag, al.Target.Date, al.DistanceMeters)
}

func main() {
	_ = godotenv.Load(".env.local")
	cfg, err := config.Load()
	if err != nil {
		logging.New("error").Errorf("%v", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	st := state.NewAppState(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q := queue.New(cfg.QueuePath, logger.Named("queue"))
	if err := q.Init(ctx); err != nil {
		logger.Errorf("pending queue unavailable: %v", err)
		os.Exit(1)
	}
	defer q.Close()

	remote := cloudsync.NewClient(clients.NewHTTPClient(cfg), cfg.Remote.BaseURL, cfg.Remote.Token, cfg.DeviceID)
	if !remote.IsConfigured() {
		logger.Warnf("remote base_url is empty, captures will stay queued")
	}

	var prober connectivity.Prober
	if remote.IsConfigured() {
		prober = remote
	}
	monitor := connectivity.NewMonitor(connectivity.Options{
		Prober:   prober,
		Interval: cfg.ProbeInterval(),
		Logger:   logger.Named("connectivity"),
	})
	monitor.OnChange(st.SetOnline)

	positions := geo.NewSource(geo.SourceOptions{Freshness: cfg.Freshness(), Logger: logger.Named("gps")})
	sampler := route.NewSampler(route.Options{
		MinStepMeters: cfg.Route.MinStepMeters,
		Saver:         remote,
		Logger:        logger.Named("route"),
	})
	fence := geofence.NewEngine(geofence.Options{
		RadiusMeters: cfg.Geofence.RadiusMeters,
		Cooldown:     cfg.GeofenceCooldown(),
		Refresh:      cfg.GeofenceRefresh(),
		Fetcher:      remote,
		Notifier:     alertLog{log: logger.Named("geofence")},
		Logger:       logger.Named("geofence"),
	})
	positions.Subscribe("route", sampler.OnPosition)
	positions.Subscribe("geofence", fence.OnPosition)

	ctrl := capture.NewController(capture.Options{
		Positions:       positions,
		Remote:          remote,
		Queue:           q,
		Connectivity:    monitor,
		Wake:            monitor,
		Targets:         fence,
		Logger:          logger.Named("capture"),
		PositionTimeout: cfg.PositionTimeout(),
		MaxPhotoEdge:    cfg.Photo.MaxEdgePx,
	})

	sm := cloudsync.NewSyncManager(st, q, remote, cloudsync.Options{
		MaxAttempts: cfg.Sync.MaxAttempts,
		Interval:    cfg.SyncInterval(),
		Logger:      logger.Named("sync"),
	})
	sm.OnSynced(ctrl.Synced)

	deps := &handlers.Deps{
		State:        st,
		Positions:    positions,
		Capture:      ctrl,
		Queue:        q,
		Geofence:     fence,
		Route:        sampler,
		Sync:         sm,
		Connectivity: monitor,
		Remote:       remote,
		Logger:       logger.Named("http"),
	}
	if geocoder := directions.NewGeocoder(cfg.Planner.GeocoderURL, cfg.Planner.CountryCodes, cfg.PlannerTimeout()); geocoder != nil {
		deps.Geocoder = geocoder
	}
	if rt := directions.NewRouter(cfg.Planner.RouterURL, cfg.PlannerTimeout()); rt != nil {
		deps.Router = rt
	}
	router := httpserver.NewRouter(deps)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return fence.Run(gctx) })
	g.Go(func() error {
		return sm.Run(gctx, cloudsync.Triggers{Reconnected: monitor.Reconnected(), Wake: monitor.WakeSignals()})
	})
	g.Go(func() error {
		if _, err := ctrl.LoadRemote(gctx); err != nil {
			logger.Warnf("initial location load failed: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("fieldtrack listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if _, _, err := sampler.Stop(context.Background()); err != nil {
			logger.Warnf("route on shutdown: %v", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("fieldtrack stopped: %v", err)
		os.Exit(1)
	}
}
