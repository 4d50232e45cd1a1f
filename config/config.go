package config

import "time"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 assetflow 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// JWT 认证配置
	JWT JWTConfig `yaml:"jwt" env:"JWT"`

	// Vendors 生成式服务厂商配置
	Vendors VendorsConfig `yaml:"vendors" env:"VENDORS"`

	// Pipeline 流水线配置
	Pipeline PipelineConfig `yaml:"pipeline" env:"PIPELINE"`

	// Archive 归档配置
	Archive ArchiveConfig `yaml:"archive" env:"ARCHIVE"`

	// Jobs 异步任务配置
	Jobs JobsConfig `yaml:"jobs" env:"JOBS"`

	// Render Blender 渲染代理配置
	Render RenderConfig `yaml:"render" env:"RENDER"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 同步生成接口会持有连接直到整个计划完成
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	APIKeys            []string `yaml:"api_keys" env:"API_KEYS"`
	AllowQueryAPIKey   bool     `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`

	// 两者都设置时 API 端口使用 HTTPS
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Secret    string `yaml:"secret" env:"SECRET"`
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

// VendorConfig 单个厂商的连接配置
type VendorConfig struct {
	APIKey  string `yaml:"api_key" env:"API_KEY"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

// VendorsConfig 所有厂商配置
type VendorsConfig struct {
	// 本地凭证文件（key-value JSON）
	CredentialsFile string `yaml:"credentials_file" env:"CREDENTIALS_FILE"`

	OpenAI   VendorConfig `yaml:"openai" env:"OPENAI"`
	DeepSeek VendorConfig `yaml:"deepseek" env:"DEEPSEEK"`
	Qwen     VendorConfig `yaml:"qwen" env:"QWEN"`
	Flux     VendorConfig `yaml:"flux" env:"FLUX"`
	Gemini   VendorConfig `yaml:"gemini" env:"GEMINI"`
	Meshy    VendorConfig `yaml:"meshy" env:"MESHY"`
	Tripo    VendorConfig `yaml:"tripo" env:"TRIPO"`
	Suno     VendorConfig `yaml:"suno" env:"SUNO"`
	MiniMax  VendorConfig `yaml:"minimax" env:"MINIMAX"`

	// 单次厂商调用超时
	CallTimeout time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	// 异步任务轮询间隔
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	// 异步任务最长等待时间
	PollTimeout time.Duration `yaml:"poll_timeout" env:"POLL_TIMEOUT"`
	// 统计 prompt token（tiktoken 首次使用需要下载编码表）
	CountTokens bool `yaml:"count_tokens" env:"COUNT_TOKENS"`
}

// Vendor 按名称返回厂商配置指针
func (v *VendorsConfig) Vendor(name string) *VendorConfig {
	switch name {
	case "openai":
		return &v.OpenAI
	case "deepseek":
		return &v.DeepSeek
	case "qwen":
		return &v.Qwen
	case "flux":
		return &v.Flux
	case "gemini":
		return &v.Gemini
	case "meshy":
		return &v.Meshy
	case "tripo":
		return &v.Tripo
	case "suno":
		return &v.Suno
	case "minimax":
		return &v.MiniMax
	default:
		return nil
	}
}

// VendorNames 返回所有已知厂商名
func VendorNames() []string {
	return []string{"openai", "deepseek", "qwen", "flux", "gemini", "meshy", "tripo", "suno", "minimax"}
}

// PipelineConfig 流水线配置
type PipelineConfig struct {
	// 阶段内并发度，1 表示顺序执行
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`

	DefaultChatModel  string `yaml:"default_chat_model" env:"DEFAULT_CHAT_MODEL"`
	DefaultCodeModel  string `yaml:"default_code_model" env:"DEFAULT_CODE_MODEL"`
	DefaultImageModel string `yaml:"default_image_model" env:"DEFAULT_IMAGE_MODEL"`
	DefaultThreeModel string `yaml:"default_3d_model" env:"DEFAULT_3D_MODEL"`
	DefaultMusicModel string `yaml:"default_music_model" env:"DEFAULT_MUSIC_MODEL"`
	ImageSize         string `yaml:"image_size" env:"IMAGE_SIZE"`

	// 每种图片或脚本类型的数量上限，以及单次运行的条目总数上限
	MaxItemsPerType int `yaml:"max_items_per_type" env:"MAX_ITEMS_PER_TYPE"`
	MaxItems        int `yaml:"max_items" env:"MAX_ITEMS"`
}

// ArchiveConfig 归档配置
type ArchiveConfig struct {
	FetchTimeout  time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`
	MaxFetchBytes int64         `yaml:"max_fetch_bytes" env:"MAX_FETCH_BYTES"`
}

// JobsConfig 异步任务配置
type JobsConfig struct {
	// 存储后端: memory, database
	Store string `yaml:"store" env:"STORE"`
	// 归档存储: file, redis
	BlobStore string `yaml:"blob_store" env:"BLOB_STORE"`
	// file 归档目录
	Dir string `yaml:"dir" env:"DIR"`
	// redis 归档过期时间
	TTL        time.Duration `yaml:"ttl" env:"TTL"`
	Workers    int           `yaml:"workers" env:"WORKERS"`
	QueueSize  int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	RunTimeout time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
}

// RenderConfig 渲染代理配置
type RenderConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	BlenderPath   string        `yaml:"blender_path" env:"BLENDER_PATH"`
	ScriptPath    string        `yaml:"script_path" env:"SCRIPT_PATH"`
	Timeout       time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 启动时执行嵌入的迁移
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`

	// Insecure 关闭时 OTLP 连接使用 TLS
	Insecure       bool          `yaml:"insecure" env:"INSECURE"`
	ExportInterval time.Duration `yaml:"export_interval" env:"EXPORT_INTERVAL"`
}
