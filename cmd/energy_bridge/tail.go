package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/energy_bridge/pkg/config"
	"github.com/NotCoffee418/energy_bridge/pkg/livefeed"
	"github.com/NotCoffee418/energy_bridge/pkg/logging"
	"github.com/NotCoffee418/energy_bridge/pkg/measurement"
	"github.com/spf13/cobra"
)

var tailHost string

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print measurements from a running bridge's live feed",
	Long: `Subscribe to the live feed of a running bridge and print every
measurement as a JSON line. Reconnects with backoff when the bridge goes away.`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)
	tailCmd.Flags().StringVar(&tailHost, "host", "", "Live feed host:port (default from config)")
}

func runTail(cmd *cobra.Command, args []string) error {
	host, err := tailAddr(configPath, tailHost)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(cmd.OutOrStdout())
	return livefeed.Listen(ctx, host, logging.Component("tail"), func(m measurement.Measurement) {
		if err := enc.Encode(m); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})
}

// tailAddr resolves the live feed address. Only the log and live feed
// sections of the config matter to a subscriber, so it is read unvalidated.
func tailAddr(path, host string) (string, error) {
	if host != "" {
		return host, nil
	}
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Read(path)
	if err != nil {
		return "", err
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return "", err
	}
	return cfg.LiveFeedAddr(), nil
}
