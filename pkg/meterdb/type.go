package meterdb

import "errors"

var ErrNotAggregated = errors.New("no aggregated data")

// MeasurementRow is one stored bridge measurement. Power in W, energy in Wh.
type MeasurementRow struct {
	Timestamp       int64  `db:"timestamp"`
	ProductionW     int64  `db:"production_w"`
	UsageW          int64  `db:"usage_w"`
	LifetimeUsageWh int64  `db:"lifetime_usage_wh"`
	ImportW         int64  `db:"import_w"`
	ExportW         int64  `db:"export_w"`
	Fields          string `db:"fields"`
}

// AggregateHourly is the per-hour summary kept after raw rows are removed.
type AggregateHourly struct {
	HourStart       int64   `db:"hour_start"`
	AvgProductionW  float64 `db:"avg_production_w"`
	AvgUsageW       float64 `db:"avg_usage_w"`
	AvgImportW      float64 `db:"avg_import_w"`
	AvgExportW      float64 `db:"avg_export_w"`
	LifetimeUsageWh int64   `db:"lifetime_usage_wh"`
	SampleCount     uint32  `db:"sample_count"`
}
