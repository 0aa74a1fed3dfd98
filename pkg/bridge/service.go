// Package bridge accepts meter telegram streams and turns every extraction
// pass into an energy measurement.
package bridge

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/NotCoffee418/energy_bridge/pkg/config"
	"github.com/NotCoffee418/energy_bridge/pkg/telegram"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Server struct {
	bus     FieldBus
	emitter Emitter

	readBufferSize int
	maxBuffer      int
	emitMode       string

	now func() time.Time
	log *logrus.Entry
	wg  sync.WaitGroup
}

func NewServer(cfg *config.Config, bus FieldBus, emitter Emitter, log *logrus.Entry) *Server {
	return &Server{
		bus:            bus,
		emitter:        emitter,
		readBufferSize: cfg.Listen.ReadBufferSize,
		maxBuffer:      cfg.Telegram.MaxBufferBytes,
		emitMode:       cfg.Telegram.EmitMode,
		now:            time.Now,
		log:            log,
	}
}

// Serve accepts connections on ln until ctx is done, handling each one in
// its own goroutine. It closes ln and waits for the workers before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.log.WithField("address", ln.Addr().String()).Info("starting server")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Error("failed to accept socket")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.HandleConnection(ctx, conn)
		}()
	}
}

// HandleConnection reads telegram chunks from conn until it closes or a
// pass fails fatally. It returns the error that ended the worker, nil when
// the peer closed the connection or ctx was cancelled.
func (s *Server) HandleConnection(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	log := s.log.WithFields(logrus.Fields{
		"conn_id": uuid.NewString(),
		"address": conn.RemoteAddr().String(),
	})
	log.Info("accepted new connection")

	err := s.readLoop(ctx, conn, log)
	switch {
	case err == nil || ctx.Err() != nil:
		log.Warn("connection closed")
		return nil
	default:
		log.WithError(err).Error("connection worker stopped")
		return err
	}
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn, log *logrus.Entry) error {
	asm := telegram.NewAssembler(s.maxBuffer)
	defer asm.Reset()

	// Packets are larger than the TCP buffer, read in chunks and combine them
	buf := make([]byte, s.readBufferSize)
	for {
		n, readErr := conn.Read(buf)
		log.WithField("n", n).Trace("read bytes")

		if n > 0 {
			if err := s.handleChunk(ctx, log, asm, buf[:n]); err != nil {
				return err
			}
		}

		switch {
		case errors.Is(readErr, io.EOF):
			return nil
		case readErr != nil:
			return readErr
		case n == 0:
			return nil
		}
	}
}

func (s *Server) handleChunk(ctx context.Context, log *logrus.Entry, asm *telegram.Assembler, chunk []byte) error {
	text, err := asm.Feed(chunk)
	if errors.Is(err, telegram.ErrTelegramDecode) {
		log.WithError(err).Error("failed to parse buffer")
		return nil
	}
	if err != nil {
		return err
	}

	if s.emitMode != config.EmitPerTelegram {
		return s.pass(ctx, log, text)
	}

	// One chunk can finish a telegram, hold whole ones and start the next.
	for {
		raw, ok := asm.NextTelegram()
		if !ok {
			return nil
		}
		if err := telegram.ValidateCRC(raw); err != nil {
			log.WithError(err).Warn("dropping telegram")
			continue
		}
		if err := s.pass(ctx, log, strings.ReplaceAll(raw, "\r\n", "")); err != nil {
			return err
		}
	}
}
