package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sdp-stack/sdp-go/pkg/database"
)

// Defaults applied by Config.applyDefaults.
const (
	DefaultMTU               = 672
	DefaultMaxConnections    = 4
	DefaultMaxSearchRecords  = database.DefaultMaxRecords
	DefaultInactivityTimeout = 30 * time.Second
)

// Response header space reserved out of the MTU per request type.
const (
	searchRspHeaderLen = 12
	attrRspHeaderLen   = 10
)

// minMTU is the smallest MTU the stack accepts; below this the reserved
// response headers leave no room for payload.
const minMTU = 48

// Config tunes the stack. The zero value of any field takes its
// default.
type Config struct {
	// MTU is the local maximum transmission unit; a peer-proposed MTU is
	// capped to it.
	MTU uint16 `yaml:"mtu"`

	// MaxConnections bounds the number of concurrent connection control
	// blocks.
	MaxConnections int `yaml:"max_connections"`

	// Database limits, forwarded to the record database.
	MaxRecords         int `yaml:"max_records"`
	MaxAttributes      int `yaml:"max_attributes"`
	PadLength          int `yaml:"pad_length"`
	MaxAttributeLength int `yaml:"max_attribute_length"`

	// MaxSearchRecords caps the handle count of one service search
	// response.
	MaxSearchRecords int `yaml:"max_search_records"`

	// InactivityTimeout closes acceptor connections with no traffic.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`

	// ErrorText adds a human-readable string after the status code of
	// error responses. Most deployments leave it off.
	ErrorText bool `yaml:"error_text"`
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

// LoadConfig reads a YAML config file and fills in defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.MTU == 0 {
		c.MTU = DefaultMTU
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.MaxRecords <= 0 {
		c.MaxRecords = database.DefaultMaxRecords
	}
	if c.MaxAttributes <= 0 {
		c.MaxAttributes = database.DefaultMaxAttributes
	}
	if c.PadLength <= 0 {
		c.PadLength = database.DefaultPadLength
	}
	if c.MaxAttributeLength <= 0 {
		c.MaxAttributeLength = database.DefaultMaxAttributeLength
	}
	if c.MaxSearchRecords <= 0 {
		c.MaxSearchRecords = c.MaxRecords
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
}

// Validate checks the config for values the stack cannot run with.
func (c Config) Validate() error {
	if c.MTU < minMTU {
		return fmt.Errorf("mtu %d below minimum %d", c.MTU, minMTU)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max_connections %d must be at least 1", c.MaxConnections)
	}
	if c.MaxSearchRecords > c.MaxRecords {
		return fmt.Errorf("max_search_records %d exceeds max_records %d",
			c.MaxSearchRecords, c.MaxRecords)
	}
	return nil
}

func (c Config) databaseConfig() database.Config {
	return database.Config{
		MaxRecords:         c.MaxRecords,
		MaxAttributes:      c.MaxAttributes,
		PadLength:          c.PadLength,
		MaxAttributeLength: c.MaxAttributeLength,
	}
}
