// Package aggregator summarizes the local measurement history per hour and
// prunes raw rows once they are covered by an aggregate.
package aggregator

import (
	"context"
	"errors"
	"time"

	"github.com/NotCoffee418/energy_bridge/pkg/meterdb"
	"github.com/sirupsen/logrus"
)

type Aggregator struct {
	store     Store
	retention time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

func New(store Store, retention time.Duration, log *logrus.Entry) *Aggregator {
	return &Aggregator{
		store:     store,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// getHourEnd returns the Unix timestamp of the last second of the hour (next hour start - 1)
func getHourEnd(hourStart int64) int64 {
	return time.Unix(hourStart, 0).Add(time.Hour).Unix() - 1
}

// untilNextHour is the wait before the first run, a few seconds past the hour.
func untilNextHour(now time.Time) time.Duration {
	next := time.Unix(roundToHourStart(now), 0).Add(time.Hour + 5*time.Second)
	return next.Sub(now)
}

// AggregateAndCleanup aggregates the previous hour (the current one is
// still ongoing) and removes raw rows past the retention.
func (a *Aggregator) AggregateAndCleanup(ctx context.Context) error {
	now := a.now().UTC()
	hourStart := roundToHourStart(now.Add(-time.Hour))

	a.log.WithField("hour", time.Unix(hourStart, 0).UTC().Format(time.RFC3339)).Info("aggregating hour")

	ok, err := a.store.AggregateHour(ctx, hourStart, getHourEnd(hourStart))
	if err != nil {
		return err
	}
	if !ok {
		a.log.Debug("no measurements in hour")
	}

	return a.cleanupOldData(ctx, now)
}

// cleanupOldData removes raw data older than the retention if we have aggregated it
func (a *Aggregator) cleanupOldData(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-a.retention).Unix()

	lastAggregateHour, err := a.store.LastAggregatedHour(ctx)
	if errors.Is(err, meterdb.ErrNotAggregated) {
		return nil
	}
	if err != nil {
		return err
	}

	// Only clean up if we have aggregated data up to the cutoff point
	if lastAggregateHour < cutoff {
		return nil
	}

	deleted, err := a.store.DeleteMeasurementsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		a.log.WithField("rows", deleted).Infof("cleaned up data older than %s",
			time.Unix(cutoff, 0).UTC().Format(time.RFC3339))
	}
	return nil
}

// Run aggregates shortly after every full hour until ctx is done.
// A failed run is logged and retried on the next hour.
func (a *Aggregator) Run(ctx context.Context) error {
	timer := time.NewTimer(untilNextHour(a.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if err := a.AggregateAndCleanup(ctx); err != nil {
				a.log.WithError(err).Error("aggregation failed")
			}
			timer.Reset(untilNextHour(a.now()))
		}
	}
}
