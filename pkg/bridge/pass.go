package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/NotCoffee418/energy_bridge/pkg/accounting"
	"github.com/NotCoffee418/energy_bridge/pkg/measurement"
	"github.com/NotCoffee418/energy_bridge/pkg/telegram"
	"github.com/sirupsen/logrus"
)

// BuildMeasurement turns one accounting result into the energy measurement:
// every telegram record as a float field plus the derived integer fields.
func BuildMeasurement(u accounting.Usage, t time.Time) (measurement.Measurement, error) {
	b := measurement.NewBuilder(measurement.EnergyMeasurement, t)
	for _, v := range u.Values {
		b.Field(v.Code, v.Value)
	}
	return b.
		Field(FieldProduction, u.Production).
		Field(FieldUsage, u.Usage).
		Field(FieldLifetimeUsage, u.LifetimeUsage).
		Build()
}

// pass runs one extraction pass over the current telegram text.
// Bus and numeric failures are returned and end the connection worker.
// A measurement that cannot be built is logged and the pass abandoned.
// Sink failures are logged by the emitter and otherwise ignored.
func (s *Server) pass(ctx context.Context, log *logrus.Entry, text string) error {
	power, err := s.bus.ReadInstantaneousPower(ctx)
	if err != nil {
		return err
	}
	lifetime, err := s.bus.ReadLifetimeProduction(ctx)
	if err != nil {
		return err
	}

	fields := telegram.Extract(text)
	for _, f := range fields {
		log.WithFields(logrus.Fields{"obis_code": f.Code, "value": f.Value, "unit": f.Unit}).Trace("record")
	}

	usage, err := accounting.Compute(fields, power.Production(), lifetime.Lifetime())
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"production":     usage.Production,
		"usage":          usage.Usage,
		"lifetime_usage": usage.LifetimeUsage,
	}).Debug("computed usage")

	m, err := BuildMeasurement(usage, s.now())
	if errors.Is(err, measurement.ErrMeasurementBuild) {
		log.WithError(err).Error("failed to build data point")
		return nil
	}
	if err != nil {
		return err
	}

	log.Debug("attempting to write measurement")
	// Sink errors are already logged per sink.
	_ = s.emitter.Emit(ctx, m)
	return nil
}
