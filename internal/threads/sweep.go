package threads

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"rental_portal_backend/internal/directory"
	"rental_portal_backend/internal/events"
	"rental_portal_backend/platform/logger"
)

// autoCloseConfidence is the closure confidence recorded by the inactivity
// sweep. Manual closes record 1.0.
const autoCloseConfidence = 0.8

// sweepConcurrency bounds how many properties are swept in parallel.
const sweepConcurrency = 4

type propertyLister interface {
	ListProperties(ctx context.Context) ([]directory.Property, error)
}

// SweepStats reports one sweep run.
type SweepStats struct {
	Processed int
	Closed    int
	Skipped   bool
}

// Sweeper runs the periodic auto-closure sweep. A run never overlaps with
// itself: if a tick fires while the previous run is still going, the tick is
// dropped.
type Sweeper struct {
	service               *Service
	properties            propertyLister
	bus                   events.Bus
	log                   *logger.Logger
	interval              time.Duration
	defaultThresholdHours int
	running               atomic.Bool
}

// NewSweeper creates the auto-closure sweeper.
func NewSweeper(service *Service, properties propertyLister, bus events.Bus, log *logger.Logger, interval time.Duration, defaultThresholdHours int) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if defaultThresholdHours <= 0 {
		defaultThresholdHours = 72
	}
	return &Sweeper{
		service:               service,
		properties:            properties,
		bus:                   bus,
		log:                   log,
		interval:              interval,
		defaultThresholdHours: defaultThresholdHours,
	}
}

// Run loops until the context is cancelled, sweeping on every tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("auto-closure sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("auto-closure sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("auto-closure sweep failed", "error", err)
			}
		}
	}
}

// Sweep closes every inactive active/closing thread across all properties.
// Safe to call concurrently; overlapping calls are skipped, and re-running a
// completed sweep closes nothing further because closed threads no longer
// match the candidate filter.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("auto-closure sweep still running, skipping tick")
		return SweepStats{Skipped: true}, nil
	}
	defer s.running.Store(false)

	start := time.Now()
	properties, err := s.properties.ListProperties(ctx)
	if err != nil {
		return SweepStats{}, err
	}

	var processed, closed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, property := range properties {
		property := property
		g.Go(func() error {
			p, c, err := s.sweepProperty(gctx, property)
			processed.Add(int64(p))
			closed.Add(int64(c))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return SweepStats{}, err
	}

	stats := SweepStats{Processed: int(processed.Load()), Closed: int(closed.Load())}
	s.log.SweepRun("auto_closure", stats.Processed, stats.Closed, float64(time.Since(start).Milliseconds()))
	return stats, nil
}

func (s *Sweeper) sweepProperty(ctx context.Context, property directory.Property) (processed, closed int, err error) {
	thresholdHours := property.InactivityThresholdHours
	if thresholdHours <= 0 {
		thresholdHours = s.defaultThresholdHours
	}

	now := time.Now()
	cutoff := now.Add(-time.Duration(thresholdHours) * time.Hour)

	candidates, err := s.service.repo.ListSweepCandidates(ctx, property.ID, cutoff)
	if err != nil {
		return 0, 0, err
	}

	for _, thread := range candidates {
		processed++
		hoursInactive := now.Sub(thread.LastActivityAt).Hours()
		factors := map[string]any{
			"hours_inactive": hoursInactive,
			"threshold":      thresholdHours,
		}

		didClose, err := s.service.repo.AutoClose(ctx, thread.ID, thread.TenantID, autoCloseConfidence, factors)
		if err != nil {
			s.log.DatabaseError("threads.auto_close", err)
			continue
		}
		if !didClose {
			continue
		}
		closed++

		if s.bus != nil {
			s.bus.Publish(ctx, events.ThreadAutoClosed{
				BaseEvent:     events.NewBaseEvent(),
				ThreadID:      thread.ID,
				TenantID:      thread.TenantID,
				HoursInactive: hoursInactive,
				ThresholdHrs:  thresholdHours,
			})
		}
	}
	return processed, closed, nil
}
