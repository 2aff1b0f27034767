package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	LogLevel string       `mapstructure:"log_level"`
	SQLite   SQLiteConfig `mapstructure:"sqlite"`
	MySQL    MySQLConfig  `mapstructure:"mysql"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	TradeEvent string `mapstructure:"trade_event"`
}

const (
	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

type AuthConfig struct {
	Mode      string `mapstructure:"mode"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type BusinessConfig struct {
	StartingGold           int64 `mapstructure:"starting_gold"`
	SellBackPercent        int64 `mapstructure:"sell_back_percent"`
	MaxRetryCount          int   `mapstructure:"max_retry_count"`
	LockTTLSeconds         int   `mapstructure:"lock_ttl_seconds"`
	CatalogCacheTTLSeconds int   `mapstructure:"catalog_cache_ttl_seconds"`
}

// OutboxTopic 交易事件写入的 topic，未开启 Kafka 时返回空串
func (c *Config) OutboxTopic() string {
	if !c.Kafka.Enabled {
		return ""
	}
	return c.Kafka.Topic.TradeEvent
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.sqlite.path", "data/market.db")
	v.SetDefault("database.mysql.host", "")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.user", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "")
	v.SetDefault("database.mysql.max_open_conns", 50)
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic.trade_event", "market.trade")
	v.SetDefault("auth.mode", AuthModeHeader)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("business.starting_gold", 1000)
	v.SetDefault("business.sell_back_percent", 70)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.lock_ttl_seconds", 30)
	v.SetDefault("business.catalog_cache_ttl_seconds", 60)
}

// Default 返回仅包含默认值的配置，测试和无配置文件启动时使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("解析默认配置失败: %v", err))
	}
	return cfg
}

// LoadConfig 加载配置文件，环境变量 MARKET_* 覆盖文件中的值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置，后端选择在这里一次性确定
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLite.Path == "" {
			return errors.New("database.sqlite.path 不能为空")
		}
	case DriverMySQL:
		if c.Database.MySQL.Host == "" || c.Database.MySQL.Database == "" {
			return errors.New("database.mysql.host 和 database.mysql.database 不能为空")
		}
	default:
		return fmt.Errorf("不支持的 database.driver: %q", c.Database.Driver)
	}

	switch c.Auth.Mode {
	case AuthModeHeader:
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.mode 为 jwt 时必须配置 auth.jwt_secret")
		}
	default:
		return fmt.Errorf("不支持的 auth.mode: %q", c.Auth.Mode)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("开启 Kafka 时 kafka.brokers 不能为空")
	}
	if c.Business.SellBackPercent < 0 || c.Business.SellBackPercent > 100 {
		return fmt.Errorf("business.sell_back_percent 必须在 [0,100] 之间，当前: %d", c.Business.SellBackPercent)
	}
	if c.Business.StartingGold < 0 {
		return errors.New("business.starting_gold 不能为负数")
	}
	return nil
}
