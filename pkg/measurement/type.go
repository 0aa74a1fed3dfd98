package measurement

import (
	"context"
	"errors"
	"time"
)

// Name of the measurement every bridge pass produces.
const EnergyMeasurement = "energy"

var (
	ErrMeasurementBuild = errors.New("failed to build measurement")
	ErrSinkSubmit       = errors.New("failed to submit measurement")
)

// Measurement is one timestamped set of numeric fields.
// Values are float64 for telegram records and int64 for derived figures.
type Measurement struct {
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields"`
	Time   time.Time      `json:"time"`
}

// Sink accepts finished measurements.
type Sink interface {
	Submit(ctx context.Context, m Measurement) error
}
