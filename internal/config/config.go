// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/YaganovValera/trade-recorder/internal/supervisor"
	"github.com/YaganovValera/trade-recorder/pkg/coinbase"
	"github.com/YaganovValera/trade-recorder/pkg/kafka"
	"github.com/YaganovValera/trade-recorder/pkg/logger"
	"github.com/YaganovValera/trade-recorder/pkg/telemetry"
)

/*
   --------------------------------------------------------------------------
   СТРУКТУРЫ
   --------------------------------------------------------------------------
*/

// Config — все настройки сервиса.
type Config struct {
	ServiceName    string            `mapstructure:"service_name"`
	ServiceVersion string            `mapstructure:"service_version"`
	Coinbase       coinbase.Config   `mapstructure:"coinbase"`
	Output         OutputConfig      `mapstructure:"output"`
	Kafka          KafkaConfig       `mapstructure:"kafka"`
	Supervisor     supervisor.Config `mapstructure:"supervisor"`
	Telemetry      TelemetryConfig   `mapstructure:"telemetry"`
	Logging        logger.Config     `mapstructure:"logging"`
	HTTP           HTTPConfig        `mapstructure:"http"`
}

// OutputConfig описывает первичный CSV-журнал.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// KafkaConfig — опциональное зеркало записей в Kafka.
type KafkaConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Topic    string       `mapstructure:"topic"`
	Producer kafka.Config `mapstructure:",squash"`
}

// TelemetryConfig — опциональная трассировка OpenTelemetry.
type TelemetryConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Tracer  telemetry.Config `mapstructure:",squash"`
}

// HTTPConfig хранит конфигурацию HTTP-/metrics-сервера.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
	HealthzPath     string        `mapstructure:"healthz_path"`
	ReadyzPath      string        `mapstructure:"readyz_path"`
}

/*
   --------------------------------------------------------------------------
   LOADER
   --------------------------------------------------------------------------
*/

// Load загружает и валидирует конфиг. Если path пустой — читаются только ENV и defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	// ---------- 1) Defaults ----------
	v.SetDefault("service_name", "trade-recorder")
	v.SetDefault("service_version", "v1.0.0")

	// Coinbase
	v.SetDefault("coinbase.ws_url", "wss://ws-feed.exchange.coinbase.com")
	v.SetDefault("coinbase.channel", "matches")
	v.SetDefault("coinbase.read_timeout", "30s")
	v.SetDefault("coinbase.subscribe_timeout", "5s")
	v.SetDefault("coinbase.product_ids", []string{"BTC-USD"})

	// Output
	v.SetDefault("output.path", "trade_data_coinbase.csv")

	// Kafka mirror (выключено по умолчанию)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "trades.raw")
	v.SetDefault("kafka.acks", "all")
	v.SetDefault("kafka.timeout", "15s")
	v.SetDefault("kafka.compression", "none")
	v.SetDefault("kafka.flush_frequency", "0s")
	v.SetDefault("kafka.flush_messages", 0)

	// Supervisor
	v.SetDefault("supervisor.backoff.initial_interval", "1s")
	v.SetDefault("supervisor.backoff.max_interval", "60s")
	v.SetDefault("supervisor.stability_threshold", "5m")

	// Telemetry (выключено по умолчанию)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "otel-collector:4317")
	v.SetDefault("telemetry.insecure", false)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dev_mode", false)

	// HTTP server defaults
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "5s")
	v.SetDefault("http.metrics_path", "/metrics")
	v.SetDefault("http.healthz_path", "/healthz")
	v.SetDefault("http.readyz_path", "/readyz")

	// ---------- 2) ENV ----------
	v.SetEnvPrefix("RECORDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// ---------- 3) Optional file ----------
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", v.ConfigFileUsed(), err)
		}
	}

	// ---------- 4) Decode ----------
	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToBoolHook,
	)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "mapstructure",
		Result:     &cfg,
		DecodeHook: decodeHook,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// ---------- 5) Validation ----------
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// stringToBoolHook разбирает true/false, иначе отдает исходные данные.
func stringToBoolHook(f, t reflect.Kind, data interface{}) (interface{}, error) {
	if f == reflect.String && t == reflect.Bool {
		return strconv.ParseBool(data.(string))
	}
	return data, nil
}

/*
   --------------------------------------------------------------------------
   VALIDATION
   --------------------------------------------------------------------------
*/

func (c *Config) Validate() error {
	// Service
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required")
	}

	// Coinbase
	if c.Coinbase.URL == "" {
		return fmt.Errorf("coinbase.ws_url is required")
	}
	if len(c.Coinbase.ProductIDs) == 0 {
		return fmt.Errorf("coinbase.product_ids must contain at least one entry")
	}
	for _, id := range c.Coinbase.ProductIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("coinbase.product_ids must not contain empty entries")
		}
	}
	if c.Coinbase.ReadTimeout <= 0 {
		return fmt.Errorf("coinbase.read_timeout must be > 0")
	}
	if c.Coinbase.SubscribeTimeout <= 0 {
		return fmt.Errorf("coinbase.subscribe_timeout must be > 0")
	}

	// Output
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}

	// Kafka: проверяется только при включённом зеркале
	if c.Kafka.Enabled {
		if len(c.Kafka.Producer.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required when kafka.enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka.enabled")
		}
		switch strings.ToLower(c.Kafka.Producer.RequiredAcks) {
		case "all", "leader", "none":
		default:
			return fmt.Errorf("kafka.acks must be one of [all, leader, none]")
		}
		switch strings.ToLower(c.Kafka.Producer.Compression) {
		case "none", "gzip", "snappy", "lz4", "zstd":
		default:
			return fmt.Errorf("kafka.compression must be one of [none, gzip, snappy, lz4, zstd]")
		}
	}

	// Supervisor
	if c.Supervisor.StabilityThreshold <= 0 {
		return fmt.Errorf("supervisor.stability_threshold must be > 0")
	}

	// Telemetry: endpoint обязателен только при включённой трассировке
	if c.Telemetry.Enabled && c.Telemetry.Tracer.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry.enabled")
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error]")
	}

	// HTTP
	if err := validateHTTP(&c.HTTP); err != nil {
		return err
	}

	return nil
}

func validateHTTP(h *HTTPConfig) error {
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}
	durations := map[string]time.Duration{
		"http.read_timeout":     h.ReadTimeout,
		"http.write_timeout":    h.WriteTimeout,
		"http.idle_timeout":     h.IdleTimeout,
		"http.shutdown_timeout": h.ShutdownTimeout,
	}
	for k, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", k)
		}
	}
	paths := map[string]string{
		"http.metrics_path": h.MetricsPath,
		"http.healthz_path": h.HealthzPath,
		"http.readyz_path":  h.ReadyzPath,
	}
	for k, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/'", k)
		}
	}
	return nil
}

/*
   --------------------------------------------------------------------------
   DEBUG PRINT
   --------------------------------------------------------------------------
*/

// Print выводит текущий конфиг в JSON (удобно в DevMode).
func (c *Config) Print() {
	b, _ := json.MarshalIndent(c, "", "  ")
	fmt.Println("Loaded configuration:\n", string(b))
}
