// Command posd runs the StockPoint offline core: the durable mutation queue,
// connectivity monitor, sync engine, and live change feed that back the
// point-of-sale dashboard.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stockpoint-app/backend/internal/auth"
	"github.com/stockpoint-app/backend/internal/config"
	"github.com/stockpoint-app/backend/internal/connectivity"
	"github.com/stockpoint-app/backend/internal/db"
	"github.com/stockpoint-app/backend/internal/logging"
	"github.com/stockpoint-app/backend/internal/remote"
	syncpkg "github.com/stockpoint-app/backend/internal/sync"
	"github.com/stockpoint-app/backend/internal/sync/scheduler"
)

func main() {
	configPath := flag.String("config", "stockpoint.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("failed to load configuration", err, nil)
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logging.Init(os.Stdout, level)

	if err := run(cfg); err != nil {
		logging.Error("posd exited with error", err, nil)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		return err
	}

	store := db.NewStore(database.DB, cfg.Sync.QueueCap)
	defer store.Close()

	httpClient := &http.Client{Timeout: cfg.Remote.Timeout.Std()}

	identity := auth.NewHTTPIdentity(cfg.Remote.BaseURL, httpClient, deviceToken)
	authSvc := auth.NewService(identity, store)

	docs := remote.NewHTTPStore(cfg.Remote.BaseURL, httpClient, authSvc.Token)

	monitor := connectivity.NewMonitor(
		connectivity.HTTPProbe(cfg.Remote.HealthURL, cfg.Remote.Timeout.Std()),
		cfg.Sync.ProbeInterval.Std(),
		cfg.Sync.StabilityWindow.Std(),
	)

	engine := syncpkg.NewEngine(store, docs, monitor.Online, syncpkg.Options{
		OpTimeout:   cfg.Sync.OpTimeout.Std(),
		BackoffBase: cfg.Sync.BackoffBase.Std(),
		BackoffCap:  cfg.Sync.BackoffCap.Std(),
	})

	engine.OnStatusChange(func(st syncpkg.Status) {
		logging.Debug("status changed", map[string]interface{}{
			"online":  st.IsOnline,
			"syncing": st.IsSyncing,
			"pending": st.PendingCount,
			"failed":  st.FailedCount,
		})
	})
	monitor.Subscribe(func(bool) { engine.NotifyOnlineChanged() })

	sched := scheduler.NewScheduler(engine, monitor, &scheduler.Config{
		RetryTick: cfg.Sync.RetryTick.Std(),
	})

	feed := remote.NewFeed(cfg.Remote.FeedURL, authSvc.Token)
	go feed.Run(ctx)

	monitor.Start(ctx)
	defer monitor.Stop()
	sched.Start(ctx)
	defer sched.Stop()

	// Warm the profile cache so a later offline launch still knows who is
	// signed in.
	warmCtx, warmCancel := context.WithTimeout(ctx, cfg.Remote.Timeout.Std())
	if profile, err := authSvc.Profile(warmCtx); err != nil {
		logging.Warn("no signed-in profile available", map[string]interface{}{"error": err.Error()})
	} else {
		logging.Info("signed in", map[string]interface{}{
			"user_id": profile.ID,
			"role":    profile.Role,
		})
	}
	warmCancel()

	logging.Info("posd running", map[string]interface{}{"data_dir": cfg.DataDir})
	<-ctx.Done()

	// Give an in-progress drain a moment to finish the current operation.
	time.Sleep(100 * time.Millisecond)
	logging.Info("posd shutting down", nil)
	return nil
}

// deviceToken reads the long-lived device credential issued at pairing time.
func deviceToken() string {
	return os.Getenv("STOCKPOINT_DEVICE_TOKEN")
}
