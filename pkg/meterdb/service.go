// Package meterdb keeps a local SQLite history of bridge measurements.
// It is written by the bridge and its aggregator only.
package meterdb

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/NotCoffee418/energy_bridge/pkg/accounting"
	"github.com/NotCoffee418/energy_bridge/pkg/esmutils"
	"github.com/NotCoffee418/energy_bridge/pkg/measurement"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)

	return &Store{db: db}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Bridge workers and the aggregator share the file, sqlite allows one writer.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Submit stores m. It makes the store a measurement.Sink.
func (s *Store) Submit(ctx context.Context, m measurement.Measurement) error {
	row, err := RowFromMeasurement(m)
	if err != nil {
		return err
	}
	return s.InsertMeasurement(ctx, &row)
}

// RowFromMeasurement flattens a bridge measurement into its table row.
// The full field set is kept as JSON next to the derived columns.
func RowFromMeasurement(m measurement.Measurement) (MeasurementRow, error) {
	fields, err := json.Marshal(m.Fields)
	if err != nil {
		return MeasurementRow{}, err
	}

	return MeasurementRow{
		Timestamp:       m.Time.Unix(),
		ProductionW:     intField(m.Fields, "production"),
		UsageW:          intField(m.Fields, "usage"),
		LifetimeUsageWh: intField(m.Fields, "lifetime_usage"),
		ImportW:         kwField(m.Fields, accounting.CodeImport),
		ExportW:         kwField(m.Fields, accounting.CodeExport),
		Fields:          string(fields),
	}, nil
}

func intField(fields map[string]any, name string) int64 {
	switch v := fields[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func kwField(fields map[string]any, code string) int64 {
	if v, ok := fields[code].(float64); ok {
		return esmutils.KwToW(v)
	}
	return 0
}
