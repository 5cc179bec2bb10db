// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Quota         QuotaConfig         `yaml:"quota" mapstructure:"quota"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Fetcher       FetcherConfig       `yaml:"fetcher" mapstructure:"fetcher"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// StoreConfig 持久化配置
type StoreConfig struct {
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// RedisConfig Redis 配置（文档存储）
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// PostgresConfig PostgreSQL 配置（生成审计事件）
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// CacheConfig 生成结果缓存配置
type CacheConfig struct {
	// CatalogTTL 共享层（目录级）条目过期时间，0 表示永不过期
	CatalogTTL time.Duration `yaml:"catalog_ttl" mapstructure:"catalog_ttl"`
	// TripTTL 私有层（行程级）条目过期时间，0 表示永不过期
	TripTTL time.Duration `yaml:"trip_ttl" mapstructure:"trip_ttl"`
}

// QuotaConfig 配额配置
type QuotaConfig struct {
	Summary  SummaryQuotaConfig  `yaml:"summary" mapstructure:"summary"`
	URLParse URLParseQuotaConfig `yaml:"url_parse" mapstructure:"url_parse"`
	// VIPEmailHashes 免配额名单：小写邮箱的 SHA-256 十六进制摘要
	VIPEmailHashes []string `yaml:"vip_email_hashes" mapstructure:"vip_email_hashes"`
}

// SummaryQuotaConfig 摘要生成配额
type SummaryQuotaConfig struct {
	MonthlyLimit int64 `yaml:"monthly_limit" mapstructure:"monthly_limit"`
}

// URLParseQuotaConfig URL 解析配额
type URLParseQuotaConfig struct {
	DailyLimit   int64 `yaml:"daily_limit" mapstructure:"daily_limit"`
	MonthlyLimit int64 `yaml:"monthly_limit" mapstructure:"monthly_limit"`
}

// LLMConfig LLM 提供商配置
type LLMConfig struct {
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	// RetryBackoff 主提供商瞬时失败后的固定退避
	RetryBackoff time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// GeminiConfig 主提供商配置
type GeminiConfig struct {
	APIKey          string        `yaml:"api_key" mapstructure:"api_key"`
	Model           string        `yaml:"model" mapstructure:"model"`
	MaxOutputTokens int32         `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	Temperature     float32       `yaml:"temperature" mapstructure:"temperature"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// OpenRouterConfig 备选模型池配置
type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Referer string `yaml:"referer" mapstructure:"referer"`
	// PreferredModels 优先候选模型；发现结果会按此列表过滤
	PreferredModels []string `yaml:"preferred_models" mapstructure:"preferred_models"`
	// MaxModels 单次请求最多尝试的候选模型数
	MaxModels int `yaml:"max_models" mapstructure:"max_models"`
	// MinContextLength 免费模型的最小上下文长度要求
	MinContextLength int           `yaml:"min_context_length" mapstructure:"min_context_length"`
	MaxTokens        int64         `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature      float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// FetcherConfig URL 内容抓取配置
type FetcherConfig struct {
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxContentChars int           `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	MinContentChars int           `yaml:"min_content_chars" mapstructure:"min_content_chars"`
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
