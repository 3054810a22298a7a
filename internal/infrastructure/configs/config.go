package configs

import (
	"fmt"
	"time"

	"github.com/farmsight/relay/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP         HTTPConfig          `koanf:"http"`
	WS           WSConfig            `koanf:"ws"`
	Auth         AuthConfig          `koanf:"auth"`
	RateLimiter  RateLimiterConfig   `koanf:"rateLimiter"`
	Metrics      MetricsConfig       `koanf:"metrics"`
	Tracing      TracingConfig       `koanf:"tracing"`
	Entitlements map[string][]string `koanf:"entitlements"`
}

type HTTPConfig struct {
	Host         string        `koanf:"host"`
	Port         uint16        `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type WSConfig struct {
	SendBuffer     int           `koanf:"send_buffer"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	PongWait       time.Duration `koanf:"pong_wait"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	ShutdownGrace  time.Duration `koanf:"shutdown_grace"`
}

type AuthConfig struct {
	Secret string `koanf:"secret"`
	Issuer string `koanf:"issuer"`
}

type RateLimiterConfig struct {
	RequestsPerTimeFrame int           `koanf:"requestsPerTimeFrame"`
	TimeFrame            time.Duration `koanf:"timeFrame"`
}

type MetricsConfig struct {
	ReportInterval time.Duration `koanf:"report_interval"`
}

type TracingConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Exporter string `koanf:"exporter"`
	Endpoint string `koanf:"endpoint"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth.secret is required")
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)

	// WebSocket defaults
	setDefault(k, "ws.send_buffer", 64)
	setDefault(k, "ws.max_message_size", 4096)
	setDefault(k, "ws.pong_wait", 60*time.Second)
	setDefault(k, "ws.write_timeout", 10*time.Second)
	setDefault(k, "ws.shutdown_grace", 5*time.Second)

	// Auth defaults
	setDefault(k, "auth.issuer", "farmsight-relay")

	// Rate limiter defaults
	setDefault(k, "rateLimiter.requestsPerTimeFrame", 20)
	setDefault(k, "rateLimiter.timeFrame", 5*time.Second)

	// Metrics defaults
	setDefault(k, "metrics.report_interval", 30*time.Second)

	// Tracing defaults
	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.exporter", "otlp")
	setDefault(k, "tracing.endpoint", "http://jaeger:4318")
}

func applyEnvOverrides(k *koanf.Koanf) {
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if readTimeout := env.GetDuration("HTTP_READ_TIMEOUT", 0); readTimeout > 0 {
		k.Set("http.read_timeout", readTimeout)
	}
	if writeTimeout := env.GetDuration("HTTP_WRITE_TIMEOUT", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", writeTimeout)
	}

	if secret := env.GetString("AUTH_SECRET", ""); secret != "" {
		k.Set("auth.secret", secret)
	}
	if issuer := env.GetString("AUTH_ISSUER", ""); issuer != "" {
		k.Set("auth.issuer", issuer)
	}

	if pongWait := env.GetDuration("WS_PONG_WAIT", 0); pongWait > 0 {
		k.Set("ws.pong_wait", pongWait)
	}
	if grace := env.GetDuration("WS_SHUTDOWN_GRACE", 0); grace > 0 {
		k.Set("ws.shutdown_grace", grace)
	}

	if maxRate := env.GetInt("RATE_LIMIT_REQUESTS_PER_TIME_FRAME", 0); maxRate > 0 {
		k.Set("rateLimiter.requestsPerTimeFrame", maxRate)
	}
	if timeFrame := env.GetDuration("RATE_LIMIT_TIME_FRAME", 0); timeFrame > 0 {
		k.Set("rateLimiter.timeFrame", timeFrame)
	}

	if interval := env.GetDuration("METRICS_REPORT_INTERVAL", 0); interval > 0 {
		k.Set("metrics.report_interval", interval)
	}

	if endpoint := env.GetString("TRACING_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.endpoint", endpoint)
		k.Set("tracing.enabled", true)
	}
	if env.GetBool("TRACING_ENABLED", false) {
		k.Set("tracing.enabled", true)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
