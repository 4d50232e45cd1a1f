package threed

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/internal/tlsutil"
	"github.com/BaSui01/assetflow/llm/retry"
	"github.com/BaSui01/assetflow/types"
)

// Request 图像转 3D 请求
type Request struct {
	Image types.ImageRef
	// Model 厂商侧的模型版本
	Model string
}

// Provider 3D 厂商
type Provider interface {
	Name() string
	Convert(ctx context.Context, req *Request) (types.ModelRef, error)
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

// formatFromURL 取 URL 路径的扩展名，缺省 glb
func formatFromURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u)), ".")
	if ext == "" {
		return "glb"
	}
	return ext
}
