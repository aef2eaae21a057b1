// Package config loads client settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dhole/client-urpc-test/codec"
)

type Config struct {
	Serial     string        `yaml:"serial"`     // Default device path
	Baud       int           `yaml:"baud"`       // Default serial baud rate
	Timeout    time.Duration `yaml:"timeout"`    // Per-call deadline, 0 for none
	SendBufLen int           `yaml:"sendBufLen"` // Largest request frame
	RecvBufLen int           `yaml:"recvBufLen"` // Largest reply frame
	ByteOrder  string        `yaml:"byteOrder"`  // "little" or "big", for fixed payloads
	PoolSize   int           `yaml:"poolSize"`   // Links per address
	Balancer   string        `yaml:"balancer"`   // "roundrobin", "weighted" or "hash"

	Etcd      []string            `yaml:"etcd"`    // Registry endpoints; static devices are used when empty
	Devices   map[string][]Device `yaml:"devices"` // Device name → instances
	RateLimit *RateLimit          `yaml:"rateLimit"`
}

type Device struct {
	Addr    string `yaml:"addr"`
	Weight  int    `yaml:"weight"`
	Version string `yaml:"version"`
}

type RateLimit struct {
	Rate  float64 `yaml:"rate"` // Calls per second
	Burst int     `yaml:"burst"`
}

func Default() *Config {
	return &Config{
		Serial:     "/dev/ttyACM0",
		Baud:       9600,
		Timeout:    16 * time.Second,
		SendBufLen: 32,
		RecvBufLen: 32,
		ByteOrder:  "little",
		PoolSize:   1,
		Balancer:   "roundrobin",
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud must be positive, got %d", c.Baud))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.SendBufLen <= 0 || c.RecvBufLen <= 0 {
		errs = append(errs, fmt.Errorf("buffer lengths must be positive, got send=%d recv=%d", c.SendBufLen, c.RecvBufLen))
	}
	if c.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("poolSize must be positive, got %d", c.PoolSize))
	}
	switch strings.ToLower(c.ByteOrder) {
	case "little", "big":
	default:
		errs = append(errs, fmt.Errorf("byteOrder must be little or big, got %q", c.ByteOrder))
	}
	for name, insts := range c.Devices {
		for _, inst := range insts {
			if inst.Addr == "" {
				errs = append(errs, fmt.Errorf("device %s has an instance without addr", name))
			}
		}
	}
	if c.RateLimit != nil && (c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, fmt.Errorf("rateLimit needs a positive rate and burst"))
	}
	return errors.Join(errs...)
}

// Codec returns the fixed payload codec for ByteOrder.
func (c *Config) Codec() codec.Codec {
	if strings.EqualFold(c.ByteOrder, "big") {
		return codec.GetCodec(codec.CodecTypeBigEndian)
	}
	return codec.GetCodec(codec.CodecTypeLittleEndian)
}

// SerialAddr is the dial address of the default serial device.
func (c *Config) SerialAddr() string {
	return fmt.Sprintf("serial://%s?baud=%d", c.Serial, c.Baud)
}
