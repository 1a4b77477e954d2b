// pkg/coinbase/config.go
package coinbase

import (
	"fmt"
	"time"
)

// Config holds WebSocket configuration for the Coinbase Exchange feed.
type Config struct {
	URL              string        `mapstructure:"ws_url"`
	ProductIDs       []string      `mapstructure:"product_ids"`
	Channel          string        `mapstructure:"channel"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	SubscribeTimeout time.Duration `mapstructure:"subscribe_timeout"`
}

// ApplyDefaults applies fallback defaults if values are unset.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "wss://ws-feed.exchange.coinbase.com"
	}
	if c.Channel == "" {
		c.Channel = "matches"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = 5 * time.Second
	}
}

// Validate checks config for required fields.
func (c *Config) Validate() error {
	switch {
	case c.URL == "":
		return fmt.Errorf("coinbase: URL is required")
	case len(c.ProductIDs) == 0:
		return fmt.Errorf("coinbase: at least one product id is required")
	case c.Channel == "":
		return fmt.Errorf("coinbase: channel is required")
	default:
		return nil
	}
}
