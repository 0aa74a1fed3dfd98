package bridge

import (
	"context"

	"github.com/NotCoffee418/energy_bridge/pkg/measurement"
	"github.com/NotCoffee418/energy_bridge/pkg/solarinverter"
)

// FieldBus is the inverter side of a pass, implemented by solarinverter.Bus.
type FieldBus interface {
	ReadInstantaneousPower(ctx context.Context) (solarinverter.ScaledRegisterValue, error)
	ReadLifetimeProduction(ctx context.Context) (solarinverter.ScaledRegisterValue, error)
}

// Emitter is implemented by measurement.Emitter.
type Emitter interface {
	Emit(ctx context.Context, m measurement.Measurement) error
}

// Derived fields added to every measurement next to the telegram records.
const (
	FieldProduction    = "production"
	FieldUsage         = "usage"
	FieldLifetimeUsage = "lifetime_usage"
)
