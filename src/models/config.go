package models

import "time"

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	LogLevel string          `yaml:"log_level"`
	Stream   MStreamConfig   `yaml:"stream"`
	Network  MNetworkConfig  `yaml:"network"`
	Analysis MAnalysisConfig `yaml:"analysis"`
	Pipeline MPipelineConfig `yaml:"pipeline"`
	Journal  MJournalConfig  `yaml:"journal"`
	Storage  MStorageConfig  `yaml:"storage"`
	Publish  MPublishConfig  `yaml:"publish"`
	Server   MServerConfig   `yaml:"server"`
	Grpc     MGrpcConfig     `yaml:"grpc"`
}

type MStreamConfig struct {
	URL                    string        `yaml:"url"`
	Token                  string        `yaml:"token"`
	Symbols                []string      `yaml:"symbols"`
	ConnectTimeout         time.Duration `yaml:"connect_timeout"`
	IdleTimeout            time.Duration `yaml:"idle_timeout"`
	ClosedMarketIdleFactor int           `yaml:"closed_market_idle_factor"`
	BackoffBase            time.Duration `yaml:"backoff_base"`
	BackoffCap             time.Duration `yaml:"backoff_cap"`
	BackoffJitter          float64       `yaml:"backoff_jitter"`
	StableAfter            time.Duration `yaml:"stable_after"`
}

type MNetworkConfig struct {
	Proxies   []string `yaml:"proxies"`
	UserAgent string   `yaml:"user_agent"`
}

type MAnalysisConfig struct {
	Windows       []string      `yaml:"windows"` // e.g. "1m", "15m"
	CheckInterval time.Duration `yaml:"check_interval"`
}

type MPipelineConfig struct {
	QueueCapacity  int           `yaml:"queue_capacity"`
	OverflowPolicy string        `yaml:"overflow_policy"` // "drop_oldest" or "block"
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

type MJournalConfig struct {
	Dir             string        `yaml:"dir"`
	MaxSegmentBytes int64         `yaml:"max_segment_bytes"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryStep       time.Duration `yaml:"retry_step"`
}

type MStorageConfig struct {
	DBType             string        `yaml:"db_type"` // "sqlite", "postgres" or "none"
	DBPath             string        `yaml:"db_path"`
	DBConnectionString string        `yaml:"db_connection_string"`
	RetentionDays      int           `yaml:"retention_days"`
	WriteTimeout       time.Duration `yaml:"write_timeout"` // bounds one mirror write
}

type MPublishConfig struct {
	Kind      string        `yaml:"kind"` // "redis", "kafka" or "none"
	RedisAddr string        `yaml:"redis_addr"`
	Brokers   []string      `yaml:"brokers"`
	Topic     string        `yaml:"topic"`
	TTL       time.Duration `yaml:"ttl"`
	Timeout   time.Duration `yaml:"timeout"`
}

type MServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type MGrpcConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}
