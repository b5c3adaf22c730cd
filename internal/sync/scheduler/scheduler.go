// Package scheduler wires connectivity transitions and retry timers to the
// sync engine's drain.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/stockpoint-app/backend/internal/logging"
	syncpkg "github.com/stockpoint-app/backend/internal/sync"
)

// ConnectivitySource is the monitor surface the scheduler consumes.
type ConnectivitySource interface {
	Online() bool
	Subscribe(fn func(online bool)) int
	Unsubscribe(id int)
}

// Config holds scheduler configuration.
type Config struct {
	RetryTick time.Duration // how often to re-check backed-off work (default: 1 minute)
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{RetryTick: time.Minute}
}

// Scheduler triggers drains on offline→online transitions and re-triggers on
// a ticker while backed-off work remains. The engine's own single-flight
// guard makes overlapping triggers coalesce, so the scheduler can fire
// freely.
type Scheduler struct {
	engine    syncpkg.EngineInterface
	monitor   ConnectivitySource
	retryTick time.Duration

	mu        sync.Mutex
	isRunning bool
	subID     int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(engine syncpkg.EngineInterface, monitor ConnectivitySource, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		engine:    engine,
		monitor:   monitor,
		retryTick: config.RetryTick,
		stopCh:    make(chan struct{}),
	}
}

// Start subscribes to connectivity transitions and begins the retry ticker.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.subID = s.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		// Connectivity restored: drain whatever accumulated while offline.
		go s.runDrain(ctx, "connectivity restored")
	})

	s.wg.Add(1)
	go s.retryLoop(ctx)

	logging.Info("sync scheduler started", nil)
}

// Stop unsubscribes and halts the retry ticker.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	s.monitor.Unsubscribe(s.subID)
	close(s.stopCh)
	s.wg.Wait()

	logging.Info("sync scheduler stopped", nil)
}

// retryLoop re-triggers drains while pending work exists, picking up
// operations whose backoff gate has elapsed.
func (s *Scheduler) retryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.retryTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.monitor.Online() {
				continue
			}
			if s.engine.Status().PendingCount == 0 {
				continue
			}
			s.runDrain(ctx, "retry tick")
		}
	}
}

func (s *Scheduler) runDrain(ctx context.Context, reason string) {
	result, err := s.engine.Drain(ctx)
	if err != nil {
		logging.Warn("drain ended with deferred work", map[string]interface{}{
			"reason": reason,
			"error":  err.Error(),
		})
		return
	}
	if result != nil && (result.Applied > 0 || result.Failed > 0) {
		logging.Info("drain completed", map[string]interface{}{
			"reason":    reason,
			"applied":   result.Applied,
			"failed":    result.Failed,
			"remaining": result.Remaining,
		})
	}
}

// SyncNow serves the manual "Sync Now" affordance: it drains immediately,
// ignoring backoff gates, and waits for the pass to finish.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	_, err := s.engine.TriggerSync(ctx)
	return err
}

// IsRunning reports whether the scheduler is started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
