package aggregator

import "context"

// Store is the part of meterdb.Store the aggregator needs.
type Store interface {
	AggregateHour(ctx context.Context, hourStart, hourEnd int64) (bool, error)
	LastAggregatedHour(ctx context.Context) (int64, error)
	DeleteMeasurementsBefore(ctx context.Context, cutoff int64) (int64, error)
}
