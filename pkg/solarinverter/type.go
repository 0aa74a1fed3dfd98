package solarinverter

import (
	"errors"
	"math"

	"github.com/NotCoffee418/energy_bridge/pkg/esmutils"
)

var (
	ErrBusRead             = errors.New("modbus read failed")
	ErrModbusNotConnected  = errors.New("modbus not connected")
	ErrInverterUnreachable = errors.New("inverter unreachable")
)

// Holding register layout of the inverter.
const (
	PowerRegister         uint16 = 83
	PowerRegisterCount    uint16 = 2
	LifetimeRegister      uint16 = 93
	LifetimeRegisterCount uint16 = 2
	LifetimeScaleRegister uint16 = 95
)

// ScaledRegisterValue is a fixed-point register value with its decimal exponent.
type ScaledRegisterValue struct {
	Raw   uint32
	Scale int16
}

// Watts is Raw * 10^Scale.
func (v ScaledRegisterValue) Watts() float64 {
	return esmutils.ApplyScale(v.Raw, v.Scale)
}

// Production is Watts truncated toward negative infinity.
func (v ScaledRegisterValue) Production() int64 {
	return int64(math.Floor(v.Watts()))
}

// Lifetime decodes a lifetime counter: Raw * floor(10^Scale).
func (v ScaledRegisterValue) Lifetime() int64 {
	return esmutils.ApplyFlooredScale(v.Raw, v.Scale)
}
