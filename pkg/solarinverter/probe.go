package solarinverter

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Prober checks that a host answers before a Modbus connection is attempted.
type Prober func(ctx context.Context, host string) error

// Ping sends a single unprivileged (UDP) echo to host.
func Ping(ctx context.Context, host string) error {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return err
	}

	pinger.Count = 1
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(false)

	if err := pinger.RunWithContext(ctx); err != nil {
		return err
	}

	if stats := pinger.Statistics(); stats.PacketsRecv == 0 {
		return fmt.Errorf("%w: no response from %s", ErrInverterUnreachable, host)
	}
	return nil
}
