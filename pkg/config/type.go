package config

// Config is loaded once at startup and handed to each component constructor.
type Config struct {
	Listen   ListenConfig   `toml:"listen" yaml:"listen"`
	Inverter InverterConfig `toml:"inverter" yaml:"inverter"`
	Influx   InfluxConfig   `toml:"influx" yaml:"influx"`
	Store    StoreConfig    `toml:"store" yaml:"store"`
	LiveFeed LiveFeedConfig `toml:"live_feed" yaml:"live_feed"`
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Relay    RelayConfig    `toml:"relay" yaml:"relay"`
}

// Where the meter relay connects to.
type ListenConfig struct {
	Address string `toml:"address" yaml:"address"`
	Port    int    `toml:"port" yaml:"port"`
	// Bytes requested per socket read
	ReadBufferSize int `toml:"read_buffer_size" yaml:"read_buffer_size"`
}

type InverterConfig struct {
	// host:port of the Modbus TCP endpoint. Overridden by INVERTER_HOST.
	Host      string `toml:"host" yaml:"host"`
	SlaveID   uint8  `toml:"slave_id" yaml:"slave_id"`
	TimeoutMs int    `toml:"timeout_ms" yaml:"timeout_ms"`
	// Ping the inverter before dialing so a dead WiFi link fails fast.
	ProbeBeforeConnect bool `toml:"probe_before_connect" yaml:"probe_before_connect"`
}

type InfluxConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// Overridden by INFLUX_HOST and INFLUX_TOKEN.
	Host   string `toml:"host" yaml:"host"`
	Token  string `toml:"token" yaml:"token"`
	Org    string `toml:"org" yaml:"org"`
	Bucket string `toml:"bucket" yaml:"bucket"`
}

type StoreConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// Empty means pathing.GetMeterDbPath()
	Path          string `toml:"path" yaml:"path"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

type LiveFeedConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	ListenAddress string `toml:"listen_address" yaml:"listen_address"`
	ListenPort    int    `toml:"listen_port" yaml:"listen_port"`
}

const (
	EmitPerChunk    = "per_chunk"
	EmitPerTelegram = "per_telegram"
)

type TelegramConfig struct {
	// per_chunk re-emits on every received chunk, per_telegram waits for a
	// CRC-valid trailer and emits once.
	EmitMode       string `toml:"emit_mode" yaml:"emit_mode"`
	MaxBufferBytes int    `toml:"max_buffer_bytes" yaml:"max_buffer_bytes"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Used by p1_relay only.
type RelayConfig struct {
	SerialDevice string `toml:"serial_device" yaml:"serial_device"`
	Baudrate     uint   `toml:"baudrate" yaml:"baudrate"`
	BridgeHost   string `toml:"bridge_host" yaml:"bridge_host"`
	BufferSize   int    `toml:"buffer_size" yaml:"buffer_size"`
}
