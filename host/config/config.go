// Package config loads shdrv-host settings.
//
// Precedence is command line flags, then SHDRV_* environment variables, then
// the TOML file, then built-in defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"

	"shdrv/core"
	"shdrv/host/serial"
)

// Config is the complete host configuration
type Config struct {
	// Backend selects the register block: "sim" or "mem"
	Backend string `toml:"backend"`

	// MemDevice is the physical memory device for the mem backend
	MemDevice string `toml:"mem_device"`

	// IRQ is the timer interrupt line number
	IRQ int `toml:"irq"`

	// CallerSignal accepts caller supplied notification codes
	CallerSignal bool `toml:"caller_signal"`

	// PollInterval is how often the mem backend samples TCR.UNF
	PollInterval string `toml:"poll_interval"`

	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"`

	Serial SerialConfig `toml:"serial"`
}

// SerialConfig is the [serial] table
type SerialConfig struct {
	Device        string `toml:"device"`
	Baud          int    `toml:"baud"`
	ReadTimeoutMS int    `toml:"read_timeout_ms"`
}

// Default returns the built-in configuration
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// applyDefaults fills in missing values
func applyDefaults(c *Config) {
	if c.Backend == "" {
		c.Backend = "sim"
	}
	if c.MemDevice == "" {
		c.MemDevice = "/dev/mem"
	}
	if c.IRQ == 0 {
		c.IRQ = core.TimerIRQ
	}
	if c.PollInterval == "" {
		c.PollInterval = "1ms"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	def := serial.DefaultConfig("")
	if c.Serial.Device == "" {
		c.Serial.Device = "/dev/ttyUSB0"
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Baud
	}
	if c.Serial.ReadTimeoutMS == 0 {
		c.Serial.ReadTimeoutMS = def.ReadTimeout
	}
}

// Parse decodes TOML data and applies defaults
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	applyDefaults(c)
	return c, c.Validate()
}

// Load reads the file at path (a missing file is not an error), then
// applies environment overrides and every flag in fs that was set on the
// command line. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}
	applyDefaults(c)

	for _, key := range keys {
		env := "SHDRV_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if v := os.Getenv(env); v != "" {
			if err := c.Set(key, v); err != nil {
				return nil, fmt.Errorf("%s: %w", env, err)
			}
		}
	}

	if fs != nil {
		var flagErr error
		fs.Visit(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || flagErr != nil {
				return
			}
			flagErr = c.Set(key, f.Value.String())
		})
		if flagErr != nil {
			return nil, flagErr
		}
	}

	return c, c.Validate()
}

// keys lists every settable key in file order
var keys = []string{
	"backend", "mem_device", "irq", "caller_signal", "poll_interval",
	"log_level", "metrics_addr",
	"serial.device", "serial.baud", "serial.read_timeout_ms",
}

// flagKeys maps command line flag names to keys
var flagKeys = map[string]string{
	"backend":       "backend",
	"mem-device":    "mem_device",
	"irq":           "irq",
	"caller-signal": "caller_signal",
	"poll-interval": "poll_interval",
	"log-level":     "log_level",
	"metrics-addr":  "metrics_addr",
	"device":        "serial.device",
	"baud":          "serial.baud",
	"read-timeout":  "serial.read_timeout_ms",
}

// BindFlags defines the command line flags understood by Load
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("backend", d.Backend, "register backend (sim, mem)")
	fs.String("mem-device", d.MemDevice, "physical memory device for the mem backend")
	fs.Int("irq", d.IRQ, "timer interrupt line")
	fs.Bool("caller-signal", d.CallerSignal, "accept caller supplied signal numbers")
	fs.String("poll-interval", d.PollInterval, "UNF poll interval for the mem backend")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address")
	fs.StringP("device", "d", d.Serial.Device, "serial device")
	fs.Int("baud", d.Serial.Baud, "serial baud rate")
	fs.Int("read-timeout", d.Serial.ReadTimeoutMS, "serial read timeout in milliseconds")
}

// Set assigns one key from its string form
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "backend":
		c.Backend = value
	case "mem_device":
		c.MemDevice = value
	case "irq":
		c.IRQ, err = strconv.Atoi(value)
	case "caller_signal":
		c.CallerSignal, err = strconv.ParseBool(value)
	case "poll_interval":
		c.PollInterval = value
	case "log_level":
		c.LogLevel = value
	case "metrics_addr":
		c.MetricsAddr = value
	case "serial.device":
		c.Serial.Device = value
	case "serial.baud":
		c.Serial.Baud, err = strconv.Atoi(value)
	case "serial.read_timeout_ms":
		c.Serial.ReadTimeoutMS, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("config key %s: %w", key, err)
	}
	return nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Backend {
	case "sim", "mem":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.IRQ <= 0 {
		return fmt.Errorf("invalid irq %d", c.IRQ)
	}
	if _, err := c.Poll(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Poll returns the parsed poll interval
func (c *Config) Poll() (time.Duration, error) {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid poll_interval %s", c.PollInterval)
	}
	return d, nil
}

// Level returns the parsed log level
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level: %w", err)
	}
	return l, nil
}

// SerialPort returns the settings for serial.Open
func (c *Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeoutMS,
	}
}

// Driver returns the driver options
func (c *Config) Driver(log *slog.Logger, events *core.EventBus) core.Config {
	return core.Config{
		IRQ:          c.IRQ,
		CallerSignal: c.CallerSignal,
		Logger:       log,
		Events:       events,
	}
}
