package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/energy_bridge/pkg/pathing"
	"gopkg.in/yaml.v3"
)

const DefaultFileName = "energy_bridge.toml"

var ErrInvalidConfig = errors.New("invalid config")

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Address:        "0.0.0.0",
			Port:           36082,
			ReadBufferSize: 2048 * 8,
		},
		Inverter: InverterConfig{
			Host:      "localhost:1502",
			SlaveID:   1,
			TimeoutMs: 10000,
		},
		Influx: InfluxConfig{
			Enabled: true,
			Host:    "localhost:8086",
			Org:     "home",
			Bucket:  "electricity",
		},
		Store: StoreConfig{
			Enabled:       false,
			RetentionDays: 90,
		},
		LiveFeed: LiveFeedConfig{
			Enabled:       true,
			ListenAddress: "0.0.0.0",
			ListenPort:    9039,
		},
		Telegram: TelegramConfig{
			EmitMode:       EmitPerChunk,
			MaxBufferBytes: 64 * 1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Relay: RelayConfig{
			SerialDevice: "/dev/ttyUSB0",
			Baudrate:     115200,
			BridgeHost:   "localhost:36082",
			BufferSize:   1024 * 8,
		},
	}
}

func DefaultPath() string {
	return filepath.Join(pathing.GetConfigDir(), DefaultFileName)
}

// LoadDefault loads the bridge config from the standard config directory.
func LoadDefault() (*Config, error) {
	return Load(DefaultPath())
}

// Load reads the config at path and validates it for running the bridge.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads the config at path, creating it with defaults if it does not exist.
// .yaml/.yml files are decoded as YAML, anything else as TOML.
// Environment overrides are applied after decoding. Nothing is validated.
func Read(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	} else {
		if err := decodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if isYaml(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, cfg)
	}
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func writeDefault(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	cfgFile, err := os.Create(path)
	if err != nil {
		return err
	}
	defer cfgFile.Close()

	if isYaml(path) {
		enc := yaml.NewEncoder(cfgFile)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(cfgFile).Encode(cfg)
}

func isYaml(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyEnv applies the INFLUX_HOST, INFLUX_TOKEN and INVERTER_HOST overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("INFLUX_HOST"); v != "" {
		cfg.Influx.Host = v
	}
	if v := os.Getenv("INFLUX_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv("INVERTER_HOST"); v != "" {
		cfg.Inverter.Host = v
	}
}

// Validate checks the config without mutating it.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		errs = append(errs, fmt.Errorf("listen.port %d out of range", c.Listen.Port))
	}
	if c.Listen.ReadBufferSize <= 0 {
		errs = append(errs, errors.New("listen.read_buffer_size must be > 0"))
	}

	if _, _, err := net.SplitHostPort(c.Inverter.Host); err != nil {
		errs = append(errs, fmt.Errorf("inverter.host %q: %w", c.Inverter.Host, err))
	}
	if c.Inverter.TimeoutMs <= 0 {
		errs = append(errs, errors.New("inverter.timeout_ms must be > 0"))
	}

	if c.Influx.Enabled {
		if c.Influx.Host == "" {
			errs = append(errs, errors.New("influx.host required"))
		}
		if c.Influx.Token == "" {
			errs = append(errs, errors.New("influx.token required (or INFLUX_TOKEN)"))
		}
		if c.Influx.Org == "" || c.Influx.Bucket == "" {
			errs = append(errs, errors.New("influx.org and influx.bucket required"))
		}
	}

	if c.Store.Enabled && c.Store.RetentionDays <= 0 {
		errs = append(errs, errors.New("store.retention_days must be > 0"))
	}

	if c.LiveFeed.Enabled && (c.LiveFeed.ListenPort <= 0 || c.LiveFeed.ListenPort > 65535) {
		errs = append(errs, fmt.Errorf("live_feed.listen_port %d out of range", c.LiveFeed.ListenPort))
	}

	switch c.Telegram.EmitMode {
	case EmitPerChunk, EmitPerTelegram:
	default:
		errs = append(errs, fmt.Errorf("telegram.emit_mode %q: expected %s or %s",
			c.Telegram.EmitMode, EmitPerChunk, EmitPerTelegram))
	}
	if c.Telegram.MaxBufferBytes < c.Listen.ReadBufferSize {
		errs = append(errs, errors.New("telegram.max_buffer_bytes must be >= listen.read_buffer_size"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateRelay checks only the sections p1_relay uses.
func (c *Config) ValidateRelay() error {
	var errs []error
	if c.Relay.SerialDevice == "" {
		errs = append(errs, errors.New("relay.serial_device required"))
	}
	if c.Relay.Baudrate == 0 {
		errs = append(errs, errors.New("relay.baudrate must be > 0"))
	}
	if _, _, err := net.SplitHostPort(c.Relay.BridgeHost); err != nil {
		errs = append(errs, fmt.Errorf("relay.bridge_host %q: %w", c.Relay.BridgeHost, err))
	}
	if c.Relay.BufferSize < 0 {
		errs = append(errs, errors.New("relay.buffer_size must be >= 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Listen.Address, fmt.Sprint(c.Listen.Port))
}

func (c *Config) LiveFeedAddr() string {
	return net.JoinHostPort(c.LiveFeed.ListenAddress, fmt.Sprint(c.LiveFeed.ListenPort))
}

// Timeout bounds a single Modbus connect or request.
func (c InverterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return pathing.GetMeterDbPath()
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Store.RetentionDays) * 24 * time.Hour
}
