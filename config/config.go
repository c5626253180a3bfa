// Package config loads the configuration of the sim900 tools from a TOML
// file.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/warthog618/sim900/sim900"
)

const (
	DefaultDevice = "/dev/ttyUSB0"
	DefaultBaud   = 9600
	DefaultAPN    = "www.apn.com"
	DefaultURL    = "0.0.0.0:0000/api"
)

// Config is the content of the configuration file.
type Config struct {
	Modem           ModemConfig  `toml:"modem"`
	HTTP            HTTPConfig   `toml:"http"`
	TimingOverrides TimingConfig `toml:"timing,omitempty"`
}

type ModemConfig struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

type HTTPConfig struct {
	APN string `toml:"apn"`
	URL string `toml:"url"`
}

// TimingConfig overrides sim900.DefaultTiming.
//
// Unset fields keep their defaults.
type TimingConfig struct {
	Settle     Duration `toml:"settle,omitempty"`
	Step       Duration `toml:"step,omitempty"`
	PostAction Duration `toml:"post_action,omitempty"`
	GetAction  Duration `toml:"get_action,omitempty"`
	GetRead    Duration `toml:"get_read,omitempty"`
	HTTPData   Duration `toml:"http_data,omitempty"`
	Retries    int      `toml:"retries,omitempty"`
}

// Duration is a time.Duration written in the form accepted by
// time.ParseDuration, such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Modem: ModemConfig{Device: DefaultDevice, Baud: DefaultBaud},
		HTTP:  HTTPConfig{APN: DefaultAPN, URL: DefaultURL},
	}
}

// Load reads the configuration file at path.
//
// Settings absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := Default()
	d := toml.NewDecoder(f)
	d.DisallowUnknownFields()
	if err := d.Decode(c); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if err := c.Verify(); err != nil {
		return nil, errors.Wrapf(err, "verify %s", path)
	}
	return c, nil
}

// Verify checks the configuration is usable.
func (c *Config) Verify() error {
	switch {
	case c.Modem.Device == "":
		return errors.New("modem device not set")
	case c.Modem.Baud <= 0:
		return errors.Errorf("invalid baud rate %d", c.Modem.Baud)
	case c.TimingOverrides.Retries < 0:
		return errors.Errorf("invalid retries %d", c.TimingOverrides.Retries)
	}
	return nil
}

// Timing returns sim900.DefaultTiming with the configured overrides applied.
func (c *Config) Timing() sim900.Timing {
	t := sim900.DefaultTiming()
	ct := c.TimingOverrides
	override := func(dst *time.Duration, src Duration) {
		if src.Duration > 0 {
			*dst = src.Duration
		}
	}
	override(&t.Settle, ct.Settle)
	override(&t.Step, ct.Step)
	override(&t.PostAction, ct.PostAction)
	override(&t.GetAction, ct.GetAction)
	override(&t.GetRead, ct.GetRead)
	override(&t.HTTPData, ct.HTTPData)
	if ct.Retries > 0 {
		t.Retries = ct.Retries
	}
	return t
}
