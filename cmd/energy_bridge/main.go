// Energy bridge accepts P1 telegram streams, joins them with the solar
// inverter's production and writes the resulting usage figures to InfluxDB.
package main

import (
	"os"

	"github.com/NotCoffee418/energy_bridge/pkg/config"
	"github.com/NotCoffee418/energy_bridge/pkg/logging"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "energy_bridge",
	Short: "P1 smart meter to InfluxDB bridge",
	Long: `Energy bridge - receives DSMR telegrams relayed from the meter's P1 port,
reads production from the solar inverter over Modbus TCP and records
production, usage and lifetime usage per telegram.

The config file defaults to /etc/energy_bridge/energy_bridge.toml and is
created with defaults when missing. INFLUX_HOST, INFLUX_TOKEN and
INVERTER_HOST override the file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.toml, .yaml)")
}

// loadConfig loads the config and sets up logging from it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, err
	}

	if err := logging.Setup(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
