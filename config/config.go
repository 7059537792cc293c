package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置（文件 + 环境变量覆盖）
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Fanout    FanoutConfig    `mapstructure:"fanout"`
	Lock      LockConfig      `mapstructure:"lock"`
	Antenna   AntennaConfig   `mapstructure:"antenna"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	JWT       JWTConfig       `mapstructure:"jwt"`
}

type ServerConfig struct {
	Addr      string  `mapstructure:"addr"`
	Mode      string  `mapstructure:"mode"` // debug, release
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres, sqlite
	DSN    string `mapstructure:"dsn"`
	// FeedShardDSNs 非空时时间线走分库分表仓储，每个分库一条 DSN
	FeedShardDSNs []string `mapstructure:"feed_shard_dsns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// FanoutConfig 扇出与投递 worker 参数
type FanoutConfig struct {
	Workers      int           `mapstructure:"workers"`
	BatchSize    int           `mapstructure:"batch_size"`    // 批量扫描/入库大小
	ClaimLimit   int           `mapstructure:"claim_limit"`   // 每次 claim 的任务数
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RenderTTL    time.Duration `mapstructure:"render_ttl"` // 渲染缓存有效期
	// 广播限速：超出的 pub/sub 消息直接丢弃（<=0 不限速）
	BroadcastRate  float64 `mapstructure:"broadcast_rate"`
	BroadcastBurst int     `mapstructure:"broadcast_burst"`
}

type LockConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	Wait    time.Duration `mapstructure:"wait"`
	Retry   time.Duration `mapstructure:"retry"`
}

// AntennaConfig 天线匹配策略
type AntennaConfig struct {
	ActivityWindow  time.Duration `mapstructure:"activity_window"`  // 拥有者活跃窗口
	DiscoveryTag    string        `mapstructure:"discovery_tag"`    // dtl 发现标签
	StrictDiscovery bool          `mapstructure:"strict_discovery"` // 强制以发现标签代替关键字/标签过滤
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// Load 读取 config.yaml，环境变量 AF_* 优先
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("AF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=postgres port=5432 sslmode=disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("fanout.workers", 4)
	v.SetDefault("fanout.batch_size", 500)
	v.SetDefault("fanout.claim_limit", 128)
	v.SetDefault("fanout.poll_interval", 50*time.Millisecond)
	v.SetDefault("fanout.render_ttl", 10*time.Minute)
	v.SetDefault("fanout.broadcast_rate", 0.0)
	v.SetDefault("fanout.broadcast_burst", 0)
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.wait", 5*time.Second)
	v.SetDefault("lock.retry", 100*time.Millisecond)
	v.SetDefault("antenna.activity_window", 30*24*time.Hour)
	v.SetDefault("antenna.discovery_tag", "")
	v.SetDefault("antenna.strict_discovery", false)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("jwt.secret", "dev-secret")

	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时允许走默认值 + 环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
