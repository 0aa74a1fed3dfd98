package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/energy_bridge/pkg/aggregator"
	"github.com/NotCoffee418/energy_bridge/pkg/bridge"
	"github.com/NotCoffee418/energy_bridge/pkg/influxsink"
	"github.com/NotCoffee418/energy_bridge/pkg/livefeed"
	"github.com/NotCoffee418/energy_bridge/pkg/logging"
	"github.com/NotCoffee418/energy_bridge/pkg/measurement"
	"github.com/NotCoffee418/energy_bridge/pkg/meterdb"
	"github.com/NotCoffee418/energy_bridge/pkg/solarinverter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.Component("serve")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the modbus client
	bus, err := solarinverter.NewBus(ctx,
		solarinverter.NewDialer(cfg.Inverter, solarinverter.Ping),
		logging.Component("solarinverter"))
	if err != nil {
		return err
	}
	defer bus.Close()

	emitter := measurement.NewEmitter(logging.Component("emitter"))
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Influx.Enabled {
		sink := influxsink.New(cfg.Influx, logging.Component("influxsink"))
		defer sink.Close()
		emitter.Add("influxdb", sink)
	}

	if cfg.Store.Enabled {
		store, err := meterdb.Open(cfg.StorePath())
		if err != nil {
			return err
		}
		defer store.Close()
		emitter.Add("meterdb", store)

		agg := aggregator.New(store, cfg.Retention(), logging.Component("aggregator"))
		g.Go(func() error { return agg.Run(ctx) })
	}

	if cfg.LiveFeed.Enabled {
		hub := livefeed.NewHub(logging.Component("livefeed"))
		emitter.Add("livefeed", hub)

		srv := &http.Server{
			Addr:              cfg.LiveFeedAddr(),
			Handler:           hub.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.WithField("address", srv.Addr).Info("starting live feed")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if emitter.Len() == 0 {
		log.Warn("no sinks enabled, measurements are only logged")
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return err
	}
	server := bridge.NewServer(cfg, bus, emitter, logging.Component("bridge"))
	g.Go(func() error { return server.Serve(ctx, ln) })

	err = g.Wait()
	log.Info("stopped")
	return err
}
