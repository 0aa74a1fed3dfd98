// Package relay reads telegrams from the meter's P1 serial port and
// forwards them to the bridge over TCP, one write per telegram.
package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/NotCoffee418/energy_bridge/pkg/config"
	"github.com/NotCoffee418/energy_bridge/pkg/telegram"
	"github.com/cenkalti/backoff/v4"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

type Relay struct {
	cfg        config.RelayConfig
	openSource func() (io.ReadCloser, error)
	dial       func(ctx context.Context) (net.Conn, error)
	log        *logrus.Entry
}

func New(cfg config.RelayConfig, log *logrus.Entry) *Relay {
	r := &Relay{cfg: cfg, log: log}
	r.openSource = r.openSerial
	r.dial = func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: 10 * time.Second}
		return d.DialContext(ctx, "tcp", cfg.BridgeHost)
	}
	return r
}

// Open the connection to the P1 port.
func (r *Relay) openSerial() (io.ReadCloser, error) {
	options := serial.OpenOptions{
		PortName:        r.cfg.SerialDevice,
		BaudRate:        r.cfg.Baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	r.log.WithField("device", r.cfg.SerialDevice).Info("connected to P1 port")
	return port, nil
}

// Run relays until ctx is done. Any failure on either side closes both and
// starts over after an exponential backoff.
func (r *Relay) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	op := func() error {
		src, err := r.openSource()
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := r.dial(ctx)
		if err != nil {
			return err
		}
		defer dst.Close()
		r.log.WithField("bridge", dst.RemoteAddr().String()).Info("connected to bridge")

		stop := context.AfterFunc(ctx, func() {
			src.Close()
			dst.Close()
		})
		defer stop()

		err = Forward(src, dst, r.cfg.BufferSize, func() { b.Reset() })
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.log.WithError(err).Warnf("relay interrupted, retrying in %v", wait)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Forward copies complete telegrams from src to dst. Data before the first
// start marker is discarded. Each telegram is written with a single Write so
// it arrives at the bridge starting with the start marker.
// sent, if not nil, is called after every forwarded telegram.
func Forward(src io.Reader, dst io.Writer, maxSize int, sent func()) error {
	if maxSize <= 0 {
		maxSize = telegram.DefaultMaxBuffer
	}
	reader := bufio.NewReader(src)

	var (
		buffer     strings.Builder
		inTelegram bool
	)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		switch {
		case strings.HasPrefix(line, telegram.StartMarker):
			// Start of telegram
			buffer.Reset()
			buffer.WriteString(line)
			inTelegram = true
		case inTelegram:
			buffer.WriteString(line)
		default:
			continue
		}

		if buffer.Len() > maxSize {
			buffer.Reset()
			inTelegram = false
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), "!") {
			// End of telegram
			if _, err := io.WriteString(dst, buffer.String()); err != nil {
				return err
			}
			buffer.Reset()
			inTelegram = false
			if sent != nil {
				sent()
			}
		}
	}
}
