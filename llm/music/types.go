package music

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/internal/tlsutil"
	"github.com/BaSui01/assetflow/llm/retry"
	"github.com/BaSui01/assetflow/types"
)

// Request 音乐生成请求
type Request struct {
	Prompt string
	Model  string
	// Instrumental 为 true 时不生成人声
	Instrumental bool
}

// Provider 音乐厂商
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (types.AudioRef, error)
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
		c.Timeout = 300 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = 10 * time.Minute
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
