package config

import (
	"errors"
	"strings"
	"time"

	"turnero/pkg/constraints"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Client    ClientConfig    `mapstructure:"client"`
	Store     StoreConfig     `mapstructure:"store"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Tenant    TenantConfig    `mapstructure:"tenant"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
}

// ClientConfig is the runtime-injected settings of the session client.
type ClientConfig struct {
	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects where the client persists its session.
type StoreConfig struct {
	Backend        string `mapstructure:"backend"` // memory, file, redis, etcd, keyring, mysql
	Profile        string `mapstructure:"profile"`
	FilePath       string `mapstructure:"file_path"`
	RedisPrefix    string `mapstructure:"redis_prefix"`
	EtcdPrefix     string `mapstructure:"etcd_prefix"`
	KeyringService string `mapstructure:"keyring_service"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type AuthConfig struct {
	SigningKey      string        `mapstructure:"signing_key"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	Users           []UserConfig  `mapstructure:"users"`
}

type UserConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Role     string `mapstructure:"role"`
	Tenant   string `mapstructure:"tenant"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

// TenantConfig carries branding values; not used for any security decision.
type TenantConfig struct {
	Name         string `mapstructure:"name"`
	Slug         string `mapstructure:"slug"`
	PrimaryColor string `mapstructure:"primary_color"`
	LogoURL      string `mapstructure:"logo_url"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.port", ":8080")

	v.SetDefault("client.api_base_url", constraints.DefaultAPIBase)
	v.SetDefault("client.timeout", 15*time.Second)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.profile", "default")
	v.SetDefault("store.file_path", "")
	v.SetDefault("store.redis_prefix", "turnero:session:")
	v.SetDefault("store.etcd_prefix", "/turnero/sessions")
	v.SetDefault("store.keyring_service", "turnero")

	v.SetDefault("mysql.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)

	v.SetDefault("auth.signing_key", "turnero-dev-signing-key-change-me")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.users", []map[string]any{{
		"email":    "admin@turnero.local",
		"password": "admin123",
		"role":     "admin",
		"tenant":   "padel-norte",
	}})

	v.SetDefault("ratelimit.requests_per_second", 5)

	v.SetDefault("tenant.name", "Padel Norte")
	v.SetDefault("tenant.slug", "padel-norte")
	v.SetDefault("tenant.primary_color", "#0f766e")
	v.SetDefault("tenant.logo_url", "")

	v.SetDefault("metrics.addr", "")
}

// Load reads config.yaml from the working directory, ./config or the given paths,
// then applies TURNERO_* environment overrides (TURNERO_CLIENT_API_BASE_URL, ...).
// A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("TURNERO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
