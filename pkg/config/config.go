package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAppID      = "sales-monarch-ultimate-v1"
	DefaultDateLayout = "1/2/2006"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Store   StoreConfig   `mapstructure:"store"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Log     LogConfig     `mapstructure:"log"`
}

// AppConfig carries the namespace and the optional pre-resolved session token.
type AppConfig struct {
	ID           string `mapstructure:"id"`
	SessionToken string `mapstructure:"session_token"`
	TokenSecret  string `mapstructure:"token_secret"`
	DateLayout   string `mapstructure:"date_layout"`
	Timezone     string `mapstructure:"timezone"`
	ShareURL     string `mapstructure:"share_url"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type MySQLConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type GatewayConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load reads the YAML file at configPath. Every key can be overridden from the
// environment as MONARCH_<SECTION>_<KEY>, e.g. MONARCH_APP_SESSION_TOKEN.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("monarch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.id", DefaultAppID)
	v.SetDefault("app.session_token", "")
	v.SetDefault("app.token_secret", "")
	v.SetDefault("app.date_layout", DefaultDateLayout)
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("app.share_url", "")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("mongodb.database", "monarch")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("etcd.dial_timeout", 5)
	v.SetDefault("etcd.prefix", "/monarch/")
	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("grpc.host", "127.0.0.1")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "mongodb", "redis", "etcd":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.App.ID == "" {
		return fmt.Errorf("app.id must not be empty")
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid app.timezone: %w", err)
	}
	return nil
}

// Location resolves the timezone used to decide what "today" is.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}
