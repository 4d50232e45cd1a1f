// =============================================================================
// OpenAI 兼容 Chat Completions
// =============================================================================
package openaicompat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/internal/tlsutil"
	"github.com/BaSui01/assetflow/llm/providers"
)

// Config OpenAI 兼容厂商配置
type Config struct {
	// ProviderName 厂商标识，如 "openai"、"deepseek"
	ProviderName string
	APIKey       string
	BaseURL      string
	// EndpointPath 默认 "/v1/chat/completions"
	EndpointPath string
	// Timeout HTTP 客户端超时，默认 120s。单次调用的超时由调用方 ctx 控制
	Timeout time.Duration
	// BuildHeaders 自定义鉴权头，nil 时使用 Bearer
	BuildHeaders func(req *http.Request, apiKey string)
	// HTTPClient 非 nil 时替代默认客户端（测试用）
	HTTPClient *http.Client
}

// ChatRequest 单轮对话请求
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// ChatResult 对话结果
type ChatResult struct {
	ID               string
	Model            string
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		FinishReason string  `json:"finish_reason"`
		Message      message `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// Provider OpenAI 兼容厂商
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New 创建 Provider
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = tlsutil.SecureHTTPClient(cfg.Timeout)
	}
	return &Provider{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// Name 厂商标识
func (p *Provider) Name() string { return p.cfg.ProviderName }

func (p *Provider) buildHeaders(req *http.Request) {
	if p.cfg.BuildHeaders != nil {
		p.cfg.BuildHeaders(req, p.cfg.APIKey)
		return
	}
	providers.SetBearer(req, p.cfg.APIKey)
}

// Complete 执行一次非流式对话。空回复视为 EMPTY_RESULT
func (p *Provider) Complete(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	body := completionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if strings.TrimSpace(req.System) != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: req.Prompt})

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, providers.JoinURL(p.cfg.BaseURL, p.cfg.EndpointPath), body)
	if err != nil {
		return nil, err
	}
	p.buildHeaders(httpReq)

	var resp completionResponse
	if err := providers.DoJSON(p.client, httpReq, p.Name(), &resp); err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, providers.EmptyResult(p.Name(), "choices")
	}
	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, providers.EmptyResult(p.Name(), "content")
	}

	result := &ChatResult{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	if resp.Usage != nil {
		result.PromptTokens = resp.Usage.PromptTokens
		result.CompletionTokens = resp.Usage.CompletionTokens
	}
	p.logger.Debug("chat completion",
		zap.String("model", req.Model),
		zap.String("finish_reason", result.FinishReason),
		zap.Int("completion_tokens", result.CompletionTokens),
	)
	return result, nil
}
