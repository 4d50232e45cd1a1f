package image

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/internal/tlsutil"
	"github.com/BaSui01/assetflow/llm/retry"
	"github.com/BaSui01/assetflow/types"
)

// Request 文生图请求
type Request struct {
	Prompt string
	Model  string
	// Size 形如 "1024x1024"
	Size string
}

// Provider 文生图厂商
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (types.ImageRef, error)
}

// Config 厂商通用配置
type Config struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

func (c *Config) defaults(baseURL string) {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = 5 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = tlsutil.SecureHTTPClient(c.Timeout)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

func pollRetryer(logger *zap.Logger) retry.Retryer {
	return retry.NewBackoffRetryer(retry.PollPolicy(), logger)
}

// ParseSize 解析 "WxH"，非法时返回 1024x1024
func ParseSize(size string) (int, int) {
	var w, h int
	if n, _ := fmt.Sscanf(size, "%dx%d", &w, &h); n != 2 || w <= 0 || h <= 0 {
		return 1024, 1024
	}
	return w, h
}
