// Package trigger drives the ingestion pipeline from three independent event
// sources: foreground refresh, a periodic tick, and location changes. The
// scheduler never serializes triggers against each other; overlapping
// firings are safe because feed writes are serialized per subscriber in the
// store.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saviour-labs/alertfeed/internal/config"
	"github.com/saviour-labs/alertfeed/internal/location"
	"github.com/saviour-labs/alertfeed/internal/models"
	"github.com/saviour-labs/alertfeed/internal/observability"
	"github.com/saviour-labs/alertfeed/internal/session"
	"github.com/saviour-labs/alertfeed/internal/source"
	"github.com/saviour-labs/alertfeed/internal/worker"
)

const (
	TriggerForeground = "foreground"
	TriggerPeriodic   = "periodic"
	TriggerLocation   = "location"
)

// Submitter hands a fetched batch to the ingestion workers.
type Submitter interface {
	Submit(batch worker.Batch)
}

type Scheduler struct {
	cfg           config.TriggerConfig
	sourceTimeout time.Duration
	source        source.Adapter
	session       session.Provider
	location      location.Provider
	pool          Submitter
	metrics       *observability.Metrics
	clock         clockwork.Clock
	logger        *slog.Logger
	wg            sync.WaitGroup

	mu       sync.Mutex
	lastFire time.Time
	lastPos  models.Coordinates
	hasLast  bool
}

func NewScheduler(cfg config.TriggerConfig, sourceTimeout time.Duration, src source.Adapter,
	sess session.Provider, loc location.Provider, pool Submitter,
	metrics *observability.Metrics, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:           cfg,
		sourceTimeout: sourceTimeout,
		source:        src,
		session:       sess,
		location:      loc,
		pool:          pool,
		metrics:       metrics,
		clock:         clock,
		logger:        logger,
	}
}

// Start launches the periodic and location trigger loops. Foreground firings
// arrive through Refresh.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.runPeriodic(ctx)

	s.wg.Add(1)
	go s.runLocation(ctx)
}

// Stop waits for the trigger loops to exit after ctx cancellation.
func (s *Scheduler) Stop() {
	s.wg.Wait()
	s.logger.Info("trigger scheduler stopped")
}

// Refresh is the foreground trigger: the app just became visible, sync now
// using the most recent known location.
func (s *Scheduler) Refresh(ctx context.Context) error {
	return s.fire(ctx, TriggerForeground)
}

func (s *Scheduler) runPeriodic(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("starting periodic trigger", "interval", s.cfg.PollInterval)

	ticker := s.clock.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("periodic trigger shutting down")
			return
		case <-ticker.Chan():
			if err := s.fire(ctx, TriggerPeriodic); err != nil {
				s.logger.Error("periodic trigger failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) runLocation(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("starting location trigger",
		"distance_km", s.cfg.DistanceKm, "max_dwell", s.cfg.MaxDwell)

	updates := s.location.Watch()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("location trigger shutting down")
			return
		case coords, ok := <-updates:
			if !ok {
				return
			}
			if !s.shouldFireForMove(coords) {
				s.metrics.TriggerRuns.WithLabelValues(TriggerLocation, "noop").Inc()
				continue
			}
			if err := s.fire(ctx, TriggerLocation); err != nil {
				s.logger.Error("location trigger failed", "error", err)
			}
		}
	}
}

// shouldFireForMove applies the distance-or-dwell rule: fire when the device
// moved past the distance threshold since the last firing, or when the dwell
// interval elapsed, whichever comes first.
func (s *Scheduler) shouldFireForMove(coords models.Coordinates) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasLast {
		return true
	}
	if location.DistanceKm(s.lastPos, coords) > s.cfg.DistanceKm {
		return true
	}
	return s.clock.Since(s.lastFire) >= s.cfg.MaxDwell
}

// fire runs one trigger invocation end to end: resolve subscriber, resolve
// location, fetch from the source under its own timeout, submit the batch.
// Missing subscriber or location is a no-op; a fetch failure aborts only
// this invocation, nothing was ingested.
func (s *Scheduler) fire(ctx context.Context, trigger string) error {
	subscriberID, ok := s.session.CurrentSubscriber()
	if !ok {
		s.logger.Debug("no subscriber signed in, trigger skipped", "trigger", trigger)
		s.metrics.TriggerRuns.WithLabelValues(trigger, "noop").Inc()
		return nil
	}

	coords, err := s.location.Current(ctx)
	if err != nil {
		s.logger.Debug("location unavailable, trigger skipped", "trigger", trigger, "error", err)
		s.metrics.TriggerRuns.WithLabelValues(trigger, "noop").Inc()
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
	defer cancel()

	raws, err := s.source.FetchAlerts(fetchCtx, coords.Latitude, coords.Longitude)
	if err != nil {
		s.metrics.TriggerRuns.WithLabelValues(trigger, "error").Inc()
		return fmt.Errorf("trigger %s: %w", trigger, err)
	}

	s.mu.Lock()
	s.lastFire = s.clock.Now()
	s.lastPos = coords
	s.hasLast = true
	s.mu.Unlock()

	s.metrics.TriggerRuns.WithLabelValues(trigger, "ok").Inc()

	if len(raws) == 0 {
		s.logger.Debug("no active alerts", "trigger", trigger)
		return nil
	}

	s.pool.Submit(worker.Batch{
		SubscriberID: subscriberID,
		Trigger:      trigger,
		Raws:         raws,
	})
	s.logger.Info("trigger submitted batch", "trigger", trigger, "count", len(raws))
	return nil
}
