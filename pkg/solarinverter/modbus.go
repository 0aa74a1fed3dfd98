package solarinverter

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/NotCoffee418/energy_bridge/pkg/config"
	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"
)

// ModbusTransport is a Modbus TCP connection to the inverter.
type ModbusTransport struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

func DialModbus(address string, slaveID uint8, timeout time.Duration) (*ModbusTransport, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.Timeout = timeout
	handler.SlaveId = slaveID

	if err := handler.Connect(); err != nil {
		handler.Close()
		return nil, err
	}

	return &ModbusTransport{
		handler: handler,
		client:  modbus.NewClient(handler),
	}, nil
}

func (t *ModbusTransport) ReadHoldingRegisters(address, quantity uint16) ([]uint16, error) {
	raw, err := t.client.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	return decodeRegisters(raw)
}

func (t *ModbusTransport) Close() error {
	return t.handler.Close()
}

// Registers are big-endian on the wire.
func decodeRegisters(raw []byte) ([]uint16, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("odd register payload length %d", len(raw))
	}
	regs := make([]uint16, len(raw)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return regs, nil
}

// NewDialer builds the Dialer used by the Bus from the inverter config.
// With probe_before_connect set the inverter is pinged first.
func NewDialer(cfg config.InverterConfig, probe Prober) Dialer {
	log := logrus.WithField("component", "solarinverter")

	return func(ctx context.Context) (Transport, error) {
		if cfg.ProbeBeforeConnect && probe != nil {
			host, _, err := net.SplitHostPort(cfg.Host)
			if err != nil {
				return nil, err
			}
			if err := probe(ctx, host); err != nil {
				return nil, err
			}
		}

		log.WithField("address", cfg.Host).Info("connecting to modbus client")
		t, err := DialModbus(cfg.Host, cfg.SlaveID, cfg.Timeout())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModbusNotConnected, err)
		}
		return t, nil
	}
}
