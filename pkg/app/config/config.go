package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"dali/pkg/manchester"
	"dali/pkg/raspberry"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// Config holds the application configuration.
// Config defines the struct of global config and the struct of the configuration file.
// Durations are configured as integers and converted by LoadConfig.
type Config struct {
	Driver     string          `yaml:"driver"`
	Chip       string          `yaml:"chip"`
	Rx         int             `yaml:"rx"`
	Tx         int             `yaml:"tx"`
	Terminator string          `yaml:"terminator"`
	InvertRx   bool            `yaml:"invertrx"`
	InvertTx   bool            `yaml:"inverttx"`
	Timing     TimingConfig    `yaml:"timing"`
	Flag       FlagConfig      `yaml:"-"`
	Debug      DebugConfig     `yaml:"debug"`
	Webserver  WebserverConfig `yaml:"webserver"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	LogLevel   string
	ConfigFile string
}

// TimingConfig defines the bus timing in nanoseconds.
type TimingConfig struct {
	HalfBitInt      int               `yaml:"halfbit"`
	FullBitInt      int               `yaml:"fullbit"`
	ShortLongInt    int               `yaml:"shortlong"`
	StopInt         int               `yaml:"stop"`
	BackwardStopInt int               `yaml:"backwardstop"`
	Params          manchester.Params `yaml:"-"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

// NewConfig returns the default configuration: a DALI bus on gpiochip0,
// rx on BCM 17, tx on BCM 27.
func NewConfig() *Config {
	return &Config{
		Driver:     raspberry.DriverGPIOD,
		Chip:       "gpiochip0",
		Rx:         17,
		Tx:         27,
		Terminator: "none",
		Timing: TimingConfig{
			HalfBitInt:      int(manchester.DALI.HalfBit),
			FullBitInt:      int(manchester.DALI.FullBit),
			ShortLongInt:    int(manchester.DALI.ShortLong),
			StopInt:         int(manchester.DALI.Stop),
			BackwardStopInt: int(manchester.DALI.BackwardStop),
			Params:          manchester.DALI,
		},
		Flag: FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version":  true,
				"health":   true,
				"frame":    true,
				"transfer": true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "",
			Topic:      "dali",
		},
	}
}

// LoadConfig reads the configuration file, applies the command line flags
// and validates the bus timing.
func (c *Config) LoadConfig() error {
	if c.Flag.ConfigFile != "" {
		if err := c.readConfigFile(); err != nil {
			return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
		}
	}

	if c.Flag.LogLevel != "" {
		c.Debug.FlagString = c.Flag.LogLevel
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.Timing.Params = manchester.Params{
		HalfBit:      time.Duration(c.Timing.HalfBitInt) * time.Nanosecond,
		FullBit:      time.Duration(c.Timing.FullBitInt) * time.Nanosecond,
		ShortLong:    time.Duration(c.Timing.ShortLongInt) * time.Nanosecond,
		Stop:         time.Duration(c.Timing.StopInt) * time.Nanosecond,
		BackwardStop: time.Duration(c.Timing.BackwardStopInt) * time.Nanosecond,
	}
	if err := c.Timing.Params.Validate(); err != nil {
		return err
	}

	return nil
}

// Bus returns the gpio line configuration.
func (c *Config) Bus() raspberry.Config {
	return raspberry.Config{
		Driver:     c.Driver,
		Chip:       c.Chip,
		Rx:         c.Rx,
		Tx:         c.Tx,
		Terminator: c.Terminator,
		InvertRx:   c.InvertRx,
		InvertTx:   c.InvertTx,
	}
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	default:
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
