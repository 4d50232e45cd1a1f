// =============================================================================
// 📦 assetflow 默认配置
// =============================================================================
package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Vendors:   DefaultVendorsConfig(),
		Pipeline:  DefaultPipelineConfig(),
		Archive:   DefaultArchiveConfig(),
		Jobs:      DefaultJobsConfig(),
		Render:    DefaultRenderConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    15 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    1 << 20,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultVendorsConfig 返回默认厂商配置
func DefaultVendorsConfig() VendorsConfig {
	return VendorsConfig{
		CredentialsFile: DefaultCredentialsPath(),
		OpenAI:          VendorConfig{BaseURL: "https://api.openai.com"},
		DeepSeek:        VendorConfig{BaseURL: "https://api.deepseek.com"},
		Qwen:            VendorConfig{BaseURL: "https://dashscope.aliyuncs.com/compatible-mode"},
		Flux:            VendorConfig{BaseURL: "https://api.bfl.ml"},
		Gemini:          VendorConfig{BaseURL: "https://generativelanguage.googleapis.com"},
		Meshy:           VendorConfig{BaseURL: "https://api.meshy.ai/v2"},
		Tripo:           VendorConfig{BaseURL: "https://api.tripo3d.ai/v2"},
		Suno:            VendorConfig{BaseURL: "https://api.sunoapi.com/v1"},
		MiniMax:         VendorConfig{BaseURL: "https://api.minimax.io"},
		CallTimeout:     90 * time.Second,
		PollInterval:    5 * time.Second,
		PollTimeout:     10 * time.Minute,
	}
}

// DefaultCredentialsPath 返回 ~/.assetflow/credentials.json
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".assetflow", "credentials.json")
}

// DefaultPipelineConfig 返回默认流水线配置
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Concurrency:       1,
		DefaultChatModel:  "gpt-4o",
		DefaultCodeModel:  "gpt-4o",
		DefaultImageModel: "dall-e-3",
		DefaultThreeModel: "meshy-4",
		DefaultMusicModel: "music-01",
		ImageSize:         "1024x1024",
		MaxItemsPerType:   10,
		MaxItems:          100,
	}
}

// DefaultArchiveConfig 返回默认归档配置
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		FetchTimeout:  60 * time.Second,
		MaxFetchBytes: 64 << 20,
	}
}

// DefaultJobsConfig 返回默认异步任务配置
func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		Store:      "memory",
		BlobStore:  "file",
		Dir:        filepath.Join(os.TempDir(), "assetflow-archives"),
		TTL:        24 * time.Hour,
		Workers:    4,
		QueueSize:  64,
		RunTimeout: 30 * time.Minute,
	}
}

// DefaultRenderConfig 返回默认渲染配置
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Enabled:       false,
		BlenderPath:   "blender",
		Timeout:       2 * time.Minute,
		MaxConcurrent: 2,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "assetflow",
		Name:            "assetflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    "assetflow",
		SampleRate:     0.1,
		Insecure:       true,
		ExportInterval: 30 * time.Second,
	}
}
