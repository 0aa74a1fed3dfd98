package meterdb

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) InsertMeasurement(ctx context.Context, row *MeasurementRow) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO measurements "+
			"(timestamp, production_w, usage_w, lifetime_usage_wh, import_w, export_w, fields) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		row.Timestamp,
		row.ProductionW,
		row.UsageW,
		row.LifetimeUsageWh,
		row.ImportW,
		row.ExportW,
		row.Fields,
	)
	return err
}

// AggregateHour summarizes the measurements of [hourStart, hourEnd] into
// aggregate_hourly. Returns false when the hour has no samples.
func (s *Store) AggregateHour(ctx context.Context, hourStart, hourEnd int64) (bool, error) {
	var (
		agg   AggregateHourly
		count uint32
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(production_w), 0),
			COALESCE(AVG(usage_w), 0),
			COALESCE(AVG(import_w), 0),
			COALESCE(AVG(export_w), 0)
		FROM measurements
		WHERE timestamp >= ? AND timestamp <= ?
	`, hourStart, hourEnd).Scan(&count, &agg.AvgProductionW, &agg.AvgUsageW, &agg.AvgImportW, &agg.AvgExportW)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}

	// Last known lifetime counter of the hour
	err = s.db.QueryRowContext(ctx, `
		SELECT lifetime_usage_wh
		FROM measurements
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, hourStart, hourEnd).Scan(&agg.LifetimeUsageWh)
	if err != nil {
		return false, err
	}

	agg.HourStart = hourStart
	agg.SampleCount = count
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO aggregate_hourly
		(hour_start, avg_production_w, avg_usage_w, avg_import_w, avg_export_w, lifetime_usage_wh, sample_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, agg.HourStart, agg.AvgProductionW, agg.AvgUsageW, agg.AvgImportW, agg.AvgExportW, agg.LifetimeUsageWh, agg.SampleCount)
	return err == nil, err
}

func (s *Store) GetAggregateHourly(ctx context.Context, hourStart int64) (AggregateHourly, error) {
	var agg AggregateHourly
	err := s.db.QueryRowContext(ctx, `
		SELECT hour_start, avg_production_w, avg_usage_w, avg_import_w, avg_export_w, lifetime_usage_wh, sample_count
		FROM aggregate_hourly
		WHERE hour_start = ?
	`, hourStart).Scan(&agg.HourStart, &agg.AvgProductionW, &agg.AvgUsageW, &agg.AvgImportW, &agg.AvgExportW, &agg.LifetimeUsageWh, &agg.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return AggregateHourly{}, ErrNotAggregated
	}
	return agg, err
}

// LastAggregatedHour returns the newest aggregated hour start,
// or ErrNotAggregated when nothing has been aggregated yet.
func (s *Store) LastAggregatedHour(ctx context.Context) (int64, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(hour_start) FROM aggregate_hourly").Scan(&last); err != nil {
		return 0, err
	}
	if !last.Valid {
		return 0, ErrNotAggregated
	}
	return last.Int64, nil
}

// DeleteMeasurementsBefore removes raw rows older than cutoff.
func (s *Store) DeleteMeasurementsBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM measurements WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountMeasurements(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM measurements").Scan(&n)
	return n, err
}
