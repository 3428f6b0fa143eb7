package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	RateLimitModeLocal = "local"
	RateLimitModeRedis = "redis"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type BreakerConfig struct {
	FailureThreshold int    `mapstructure:"failure_threshold"`
	RecoveryTimeout  string `mapstructure:"recovery_timeout"`
}

type RateLimitConfig struct {
	Mode  string  `mapstructure:"mode"`
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RetryConfig struct {
	MaxRetries int     `mapstructure:"max_retries"`
	BaseWait   string  `mapstructure:"base_wait"`
	MaxWait    string  `mapstructure:"max_wait"`
	Factor     float64 `mapstructure:"factor"`
}

type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	DefaultTTL string `mapstructure:"default_ttl"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
}

type ServiceConfig struct {
	Name             string `mapstructure:"name"`
	URL              string `mapstructure:"url"`
	HealthPath       string `mapstructure:"health_path"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
	RecoveryTimeout  string `mapstructure:"recovery_timeout"`
	CacheTTL         string `mapstructure:"cache_ttl"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Cache       CacheConfig       `mapstructure:"cache"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Services    []ServiceConfig   `mapstructure:"services"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("breaker.failure_threshold", 5)
	viper.SetDefault("breaker.recovery_timeout", "30s")
	viper.SetDefault("ratelimit.mode", RateLimitModeLocal)
	viper.SetDefault("ratelimit.rps", 10)
	viper.SetDefault("ratelimit.burst", 20)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.base_wait", "500ms")
	viper.SetDefault("retry.max_wait", "10s")
	viper.SetDefault("retry.factor", 2.0)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.default_ttl", "60s")
	viper.SetDefault("health_check.interval", "10s")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.FailureThreshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&bc.RecoveryTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.RateLimit,
			validation.Required,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RateLimitConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RateLimitConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.Mode,
						validation.Required,
						validation.In(RateLimitModeLocal, RateLimitModeRedis),
					),
					validation.Field(&rc.RPS,
						validation.Required,
						validation.Min(0.001),
					),
					validation.Field(&rc.Burst,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Redis,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RedisConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RedisConfig")
				}
				// Only enforced when something actually uses Redis.
				if c.RateLimit.Mode != RateLimitModeRedis && !c.Cache.Enabled {
					return nil
				}
				return validateHostPort(rc.Address)
			}),
		),
		validation.Field(&c.Retry,
			validation.Required,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RetryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RetryConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.MaxRetries,
						validation.Min(0),
					),
					validation.Field(&rc.BaseWait,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&rc.MaxWait,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&rc.Factor,
						validation.Required,
						validation.Min(1.0),
					),
				)
			}),
		),
		validation.Field(&c.Cache,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CacheConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CacheConfig")
				}
				if !cc.Enabled {
					return nil
				}
				return validateDuration(cc.DefaultTTL)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Services,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateServiceConfig)),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateServiceConfig(value interface{}) error {
	service, ok := value.(ServiceConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ServiceConfig")
	}

	if service.Name == "" {
		return validation.NewError("validation_empty_name", "service name cannot be empty")
	}

	if service.URL == "" {
		return validation.NewError("validation_empty_url", "service URL cannot be empty")
	}

	parsedURL, err := url.Parse(service.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if service.FailureThreshold < 0 {
		return validation.NewError("validation_invalid_threshold", "failure threshold cannot be negative")
	}

	// Zero values inherit the breaker defaults; set values must parse.
	if service.RecoveryTimeout != "" {
		if err := validateDuration(service.RecoveryTimeout); err != nil {
			return err
		}
	}
	if service.CacheTTL != "" {
		if err := validateDuration(service.CacheTTL); err != nil {
			return err
		}
	}

	return nil
}
