// P1 relay reads telegrams from the smart meter's P1 serial port and
// forwards them to the energy bridge. Runs on the device wired to the meter.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/energy_bridge/pkg/config"
	"github.com/NotCoffee418/energy_bridge/pkg/logging"
	"github.com/NotCoffee418/energy_bridge/pkg/relay"
	"github.com/spf13/cobra"
)

var (
	configPath string
	device     string
	baudRate   uint
	bridgeHost string
)

var rootCmd = &cobra.Command{
	Use:   "p1_relay",
	Short: "Forward P1 telegrams from a serial port to the energy bridge",
	Long: `P1 relay - reads DSMR telegrams from the meter's P1 port (8N1) and
sends each complete telegram to the bridge's TCP listener. Serial and TCP
failures are retried with exponential backoff.

Flags override the [relay] section of the config file.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (.toml, .yaml)")
	rootCmd.Flags().StringVarP(&device, "port", "p", "", "Serial port device")
	rootCmd.Flags().UintVarP(&baudRate, "baud", "b", 0, "Baud rate")
	rootCmd.Flags().StringVar(&bridgeHost, "bridge", "", "Bridge host:port")
}

func run(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return err
	}

	if device != "" {
		cfg.Relay.SerialDevice = device
	}
	if baudRate != 0 {
		cfg.Relay.Baudrate = baudRate
	}
	if bridgeHost != "" {
		cfg.Relay.BridgeHost = bridgeHost
	}

	if err := cfg.ValidateRelay(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return relay.New(cfg.Relay, logging.Component("relay")).Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
