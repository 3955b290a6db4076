package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"riskhub_v1_202610/pkg/pseudonym"
)

// EnvPrefix 环境变量前缀，如 RISKHUB_PSEUDONYM_SALT
const EnvPrefix = "RISKHUB"

// Config 全局配置
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Database  DatabaseConfig           `mapstructure:"database"`
	Log       LogConfig                `mapstructure:"log"`
	Pseudonym PseudonymConfig          `mapstructure:"pseudonym"`
	Auth      AuthConfig               `mapstructure:"auth"`
	RateLimit RateLimitConfig          `mapstructure:"rate_limit"`
	Risk      RiskConfig               `mapstructure:"risk"`
	Tracking  TrackingConfig           `mapstructure:"tracking"`
	Couriers  map[string]CourierConfig `mapstructure:"couriers"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin 模式: debug / release / test
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent / error / warn / info
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PseudonymConfig 全局脱敏盐值，所有生产方与聚合方必须一致
type PseudonymConfig struct {
	Salt string `mapstructure:"salt"`
}

type AuthConfig struct {
	ReplayWindow time.Duration `mapstructure:"replay_window"`
}

// RateLimitConfig 单店铺写入限流
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// RiskConfig 风险评分策略
type RiskConfig struct {
	LateDeliveryThreshold time.Duration `mapstructure:"late_delivery_threshold"`
	ReturnWeight          int           `mapstructure:"return_weight"`
	LateWeight            int           `mapstructure:"late_weight"`
	GreenMax              int           `mapstructure:"green_max"`
	YellowMax             int           `mapstructure:"yellow_max"`
}

// TrackingConfig 物流状态轮询
type TrackingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Spec        string `mapstructure:"spec"` // cron 表达式（带秒）
	Concurrency int    `mapstructure:"concurrency"`
	BatchSize   int    `mapstructure:"batch_size"`
	// Timezone 物流商轨迹时间所在时区
	Timezone string `mapstructure:"timezone"`
	// RefreshCooldown 手动刷新同一运单的最小间隔
	RefreshCooldown time.Duration `mapstructure:"refresh_cooldown"`
}

// CourierConfig 单个物流商网关
type CourierConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// setDefaults 默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=riskhub password=riskhub dbname=riskhub port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("pseudonym.salt", "")

	v.SetDefault("auth.replay_window", 300*time.Second)

	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("risk.late_delivery_threshold", 5*24*time.Hour)
	v.SetDefault("risk.return_weight", 20)
	v.SetDefault("risk.late_weight", 10)
	v.SetDefault("risk.green_max", 30)
	v.SetDefault("risk.yellow_max", 60)

	v.SetDefault("tracking.enabled", true)
	v.SetDefault("tracking.spec", "0 0/30 * * * *")
	v.SetDefault("tracking.concurrency", 10)
	v.SetDefault("tracking.batch_size", 200)
	v.SetDefault("tracking.timezone", "Europe/Athens")
	v.SetDefault("tracking.refresh_cooldown", time.Minute)
}

// Load 加载配置：默认值 < 配置文件 < 环境变量
// path 为空时只读取默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("配置文件不存在: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// Validate 启动期校验，盐值不合法直接失败
func (c *Config) Validate() error {
	if err := pseudonym.ValidateSalt(c.Pseudonym.Salt); err != nil {
		return err
	}
	if c.Auth.ReplayWindow <= 0 {
		return errors.New("auth.replay_window 必须大于 0")
	}
	if c.Risk.GreenMax >= c.Risk.YellowMax {
		return fmt.Errorf("risk.green_max(%d) 必须小于 risk.yellow_max(%d)", c.Risk.GreenMax, c.Risk.YellowMax)
	}
	if c.Risk.LateDeliveryThreshold <= 0 {
		return errors.New("risk.late_delivery_threshold 必须大于 0")
	}
	for name, cc := range c.Couriers {
		if cc.BaseURL == "" {
			return fmt.Errorf("couriers.%s.base_url 不能为空", name)
		}
	}
	return nil
}
