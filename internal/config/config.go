package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"aqstn"
	apperrors "aqstn/internal/errors"
	"aqstn/internal/logger"
)

// Config represents the node configuration.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    logger.Config    `yaml:"logging"`
	Registry   RegistryConfig   `yaml:"registry"`
	Update     UpdateConfig     `yaml:"update"`
}

type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means the client IP is always the peer address.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPath    string `yaml:"prometheus_path"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RegistryConfig controls how this node announces itself to the network.
type RegistryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Backend  string        `yaml:"backend"` // memory or redis
	Schedule string        `yaml:"schedule"`
	TTL      time.Duration `yaml:"ttl"`
	NodeName string        `yaml:"node_name"`
	Address  string        `yaml:"address"`
}

type UpdateConfig struct {
	URL string `yaml:"url"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: aqstn.ShortName,
			Env:  "development",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxHeaderBytes:  1 << 20,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: true,
			PrometheusPath:    "/metrics",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Logging: logger.DefaultConfig,
		Registry: RegistryConfig{
			Enabled:  true,
			Backend:  BackendMemory,
			Schedule: "*/15 * * * * *",
			TTL:      45 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults and applies AQSTN_ overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvFromProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file does
// not exist.
func LoadOrDefault(filename string) (*Config, error) {
	cfg, err := Load(filename)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = Default()
	if err := cfg.applyEnvFromProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvFromProcess() error {
	em, err := NewEnvManager("", EnvPrefix)
	if err != nil {
		return err
	}
	return c.ApplyEnv(em)
}

// ApplyEnv overrides fields from AQSTN_ variables.
func (c *Config) ApplyEnv(em *EnvManager) error {
	c.App.Name = em.GetString("APP_NAME", c.App.Name)
	c.App.Env = em.GetString("APP_ENV", c.App.Env)

	c.Server.Host = em.GetString("SERVER_HOST", c.Server.Host)
	c.Server.Port = em.GetInt("SERVER_PORT", c.Server.Port)

	c.Redis.Addr = em.GetString("REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = em.GetInt("REDIS_DB", c.Redis.DB)
	password, err := em.GetSecret("REDIS_PASSWORD", c.Redis.Password)
	if err != nil {
		return err
	}
	// a value from the YAML file may be ENC: as well
	password, err = em.Decrypt(password)
	if err != nil {
		return fmt.Errorf("failed to decrypt redis.password: %w", err)
	}
	c.Redis.Password = password

	c.Logging.Level = logger.LogLevel(em.GetString("LOG_LEVEL", string(c.Logging.Level)))
	c.Logging.Format = logger.LogFormat(em.GetString("LOG_FORMAT", string(c.Logging.Format)))
	c.Logging.Output = em.GetString("LOG_OUTPUT", c.Logging.Output)

	c.RateLimit.Enabled = em.GetBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerSecond = em.GetFloat("RATE_LIMIT_RPS", c.RateLimit.RequestsPerSecond)

	c.Registry.Enabled = em.GetBool("REGISTRY_ENABLED", c.Registry.Enabled)
	c.Registry.Backend = em.GetString("REGISTRY_BACKEND", c.Registry.Backend)
	c.Registry.Schedule = em.GetString("REGISTRY_SCHEDULE", c.Registry.Schedule)
	c.Registry.TTL = em.GetDuration("REGISTRY_TTL", c.Registry.TTL)
	c.Registry.NodeName = em.GetString("NODE_NAME", c.Registry.NodeName)

	c.Update.URL = em.GetString("UPDATE_URL", c.Update.URL)
	return nil
}

// Validate reports every problem found as one CONFIG_INVALID error.
func (c *Config) Validate() error {
	var problems []string

	if c.App.Name == "" {
		problems = append(problems, "app.name is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if !logger.ValidLevel(c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}
	if !logger.ValidFormat(c.Logging.Format) {
		problems = append(problems, fmt.Sprintf("invalid log format: %s", c.Logging.Format))
	}
	if c.Monitoring.PrometheusEnabled && !strings.HasPrefix(c.Monitoring.PrometheusPath, "/") {
		problems = append(problems, "monitoring.prometheus_path must start with /")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		problems = append(problems, "rate_limit requires positive requests_per_second and burst")
	}
	if c.Registry.Enabled {
		if c.Registry.Schedule == "" {
			problems = append(problems, "registry.schedule is required")
		}
		if c.Registry.TTL <= 0 {
			problems = append(problems, "registry.ttl must be positive")
		}
		if c.Registry.Backend != BackendMemory && c.Registry.Backend != BackendRedis {
			problems = append(problems, fmt.Sprintf("unknown registry backend: %s", c.Registry.Backend))
		}
	}

	if len(problems) > 0 {
		return apperrors.NewAppErrorWithDetails(apperrors.ErrCodeConfigInvalid,
			"invalid configuration", strings.Join(problems, "; "), nil)
	}
	return nil
}
