package internal

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

type Config struct {
	Host           string `env:"HOST,required=true"`
	Port           int    `env:"PORT,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=10s"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`

	MetricInterval time.Duration `env:"METRIC_INTERVAL,default=15s"`
	GCInterval     time.Duration `env:"GC_INTERVAL,default=5m"`
}

// Addr builds the listen address of the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) Validate() error {
	if c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	}
	if c.LimitMessages != nil && *c.LimitMessages <= 0 {
		return fmt.Errorf("LIMIT_MESSAGES must be positive when set, got %d", *c.LimitMessages)
	}
	return nil
}
