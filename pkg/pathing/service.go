package pathing

import (
	"os"
	"path/filepath"
)

func GetMeterDbPath() string {
	return filepath.Join(GetDataDir(), "energy-bridge.db")
}

// ENERGY_BRIDGE_DATA_DIR overrides the data directory.
func GetDataDir() string {
	if dir := os.Getenv("ENERGY_BRIDGE_DATA_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/energy_bridge"
}

// ENERGY_BRIDGE_CONFIG_DIR overrides the config directory.
func GetConfigDir() string {
	if dir := os.Getenv("ENERGY_BRIDGE_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/energy_bridge"
}
