package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/internal/telemetry"
	"github.com/BaSui01/assetflow/llm/image"
	"github.com/BaSui01/assetflow/llm/music"
	"github.com/BaSui01/assetflow/llm/providers/openaicompat"
	"github.com/BaSui01/assetflow/llm/threed"
	"github.com/BaSui01/assetflow/llm/tokenizer"
	"github.com/BaSui01/assetflow/types"
)

// Recorder 厂商调用指标，internal/metrics.Collector 实现了该接口
type Recorder interface {
	RecordVendorCall(modality, provider, model, status string, duration time.Duration)
	RecordPromptTokens(provider, model string, tokens int)
}

type nopRecorder struct{}

func (nopRecorder) RecordVendorCall(string, string, string, string, time.Duration) {}
func (nopRecorder) RecordPromptTokens(string, string, int)                         {}

// Client 按模态分发到具体厂商
type Client struct {
	vendors config.VendorsConfig
	catalog *Catalog

	chat   map[string]*openaicompat.Provider
	images map[string]image.Provider
	models map[string]threed.Provider
	audio  map[string]music.Provider

	httpClient *http.Client
	recorder   Recorder
	tokens     *tokenizer.Registry
	logger     *zap.Logger
}

// Option 配置 Client
type Option func(*Client)

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTokenizer 开启 prompt token 统计
func WithTokenizer(r *tokenizer.Registry) Option {
	return func(c *Client) { c.tokens = r }
}

// WithHTTPClient 所有厂商共用的 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCatalog 替换模型目录
func WithCatalog(cat *Catalog) Option {
	return func(c *Client) {
		if cat != nil {
			c.catalog = cat
		}
	}
}

// NewClient 根据厂商配置创建 Client。厂商实例在此一次性创建，不发起网络请求
func NewClient(vendors config.VendorsConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		vendors:  vendors,
		catalog:  DefaultCatalog(),
		recorder: nopRecorder{},
		logger:   logger.With(zap.String("component", "llm")),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.vendors.CallTimeout <= 0 {
		c.vendors.CallTimeout = 90 * time.Second
	}
	c.buildProviders()
	return c
}

func (c *Client) buildProviders() {
	v := c.vendors
	c.chat = make(map[string]*openaicompat.Provider)
	for _, name := range []string{"openai", "deepseek", "qwen"} {
		vc := v.Vendor(name)
		c.chat[name] = openaicompat.New(openaicompat.Config{
			ProviderName: name,
			APIKey:       vc.APIKey,
			BaseURL:      vc.BaseURL,
			Timeout:      v.CallTimeout,
			HTTPClient:   c.httpClient,
		}, c.logger)
	}

	imgCfg := func(vc config.VendorConfig) image.Config {
		return image.Config{
			APIKey: vc.APIKey, BaseURL: vc.BaseURL, Timeout: v.CallTimeout,
			PollInterval: v.PollInterval, PollTimeout: v.PollTimeout,
			HTTPClient: c.httpClient, Logger: c.logger,
		}
	}
	c.images = map[string]image.Provider{
		"openai": image.NewOpenAIProvider(imgCfg(v.OpenAI)),
		"flux":   image.NewFluxProvider(imgCfg(v.Flux)),
		"gemini": image.NewGeminiProvider(imgCfg(v.Gemini)),
	}

	threeCfg := func(vc config.VendorConfig) threed.Config {
		return threed.Config{
			APIKey: vc.APIKey, BaseURL: vc.BaseURL, Timeout: v.CallTimeout,
			PollInterval: v.PollInterval, PollTimeout: v.PollTimeout,
			HTTPClient: c.httpClient, Logger: c.logger,
		}
	}
	c.models = map[string]threed.Provider{
		"meshy": threed.NewMeshyProvider(threeCfg(v.Meshy)),
		"tripo": threed.NewTripoProvider(threeCfg(v.Tripo)),
	}

	musicCfg := func(vc config.VendorConfig) music.Config {
		return music.Config{
			APIKey: vc.APIKey, BaseURL: vc.BaseURL, Timeout: v.CallTimeout,
			PollInterval: v.PollInterval, PollTimeout: v.PollTimeout,
			HTTPClient: c.httpClient, Logger: c.logger,
		}
	}
	c.audio = map[string]music.Provider{
		"suno":    music.NewSunoProvider(musicCfg(v.Suno)),
		"minimax": music.NewMiniMaxProvider(musicCfg(v.MiniMax)),
	}
}

// Catalog 返回模型目录
func (c *Client) Catalog() *Catalog { return c.catalog }

// CheckModel 校验模型在目录中且对应厂商已配置凭证。不发起网络请求
func (c *Client) CheckModel(mod Modality, model string) error {
	_, err := c.resolve(mod, model)
	return err
}

func (c *Client) resolve(mod Modality, model string) (ModelSpec, error) {
	spec, err := c.catalog.Lookup(mod, model)
	if err != nil {
		return ModelSpec{}, err
	}
	vc := c.vendors.Vendor(spec.Vendor)
	if vc == nil || vc.APIKey == "" {
		return ModelSpec{}, types.NewConfigurationError("missing credential for vendor %q (model %s)", spec.Vendor, spec.ID)
	}
	return spec, nil
}

// =============================================================================
// 🎯 模态能力
// =============================================================================

// GenerateText 单轮对话。role 作为 system 消息，空时省略
func (c *Client) GenerateText(ctx context.Context, prompt, role, model string) (string, error) {
	var out string
	err := c.call(ctx, ModalityChat, model, func(ctx context.Context, spec ModelSpec) error {
		c.countTokens(spec, role, prompt)
		res, err := c.chat[spec.Vendor].Complete(ctx, openaicompat.ChatRequest{
			Model:  spec.vendorModel(),
			System: role,
			Prompt: prompt,
		})
		if err != nil {
			return err
		}
		out = res.Content
		return nil
	})
	return out, err
}

// GenerateImage 文生图，size 形如 "1024x1024"
func (c *Client) GenerateImage(ctx context.Context, prompt, size, model string) (types.ImageRef, error) {
	var out types.ImageRef
	err := c.call(ctx, ModalityImage, model, func(ctx context.Context, spec ModelSpec) error {
		ref, err := c.images[spec.Vendor].Generate(ctx, &image.Request{
			Prompt: prompt,
			Model:  spec.vendorModel(),
			Size:   size,
		})
		out = ref
		return err
	})
	return out, err
}

// ConvertTo3D 图生 3D，返回厂商提供的全部格式
func (c *Client) ConvertTo3D(ctx context.Context, img types.ImageRef, model string) (types.ModelRef, error) {
	var out types.ModelRef
	err := c.call(ctx, Modality3D, model, func(ctx context.Context, spec ModelSpec) error {
		ref, err := c.models[spec.Vendor].Convert(ctx, &threed.Request{Image: img, Model: spec.vendorModel()})
		if err != nil {
			return err
		}
		if len(ref.Files) == 0 {
			return types.Errorf(types.ErrEmptyResult, "%s returned no model files", spec.Vendor).WithProvider(spec.Vendor)
		}
		out = ref
		return nil
	})
	return out, err
}

// GenerateAudio 生成纯音乐
func (c *Client) GenerateAudio(ctx context.Context, prompt, model string) (types.AudioRef, error) {
	var out types.AudioRef
	err := c.call(ctx, ModalityAudio, model, func(ctx context.Context, spec ModelSpec) error {
		ref, err := c.audio[spec.Vendor].Generate(ctx, &music.Request{
			Prompt:       prompt,
			Model:        spec.vendorModel(),
			Instrumental: true,
		})
		out = ref
		return err
	})
	return out, err
}

// =============================================================================
// 🔧 调用包装
// =============================================================================

// call 校验模型后在超时内执行 fn，统一错误、指标与 span。
// 异步厂商的整体期限为 poll_timeout + call_timeout，单个 HTTP 请求仍受 call_timeout 限制
func (c *Client) call(ctx context.Context, mod Modality, model string, fn func(context.Context, ModelSpec) error) (err error) {
	spec, err := c.resolve(mod, model)
	if err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.NewError(types.ErrCancelled, "vendor call cancelled").WithCause(ctxErr)
	}

	ctx, span := telemetry.StartSpan(ctx, "llm", string(mod),
		attribute.String("vendor", spec.Vendor),
		attribute.String("model", spec.ID),
	)
	limit := c.vendors.CallTimeout
	if spec.Async {
		limit += c.vendors.PollTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, limit)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("vendor adapter panic", zap.String("vendor", spec.Vendor), zap.Any("panic", r), zap.Stack("stack"))
			err = types.Errorf(types.ErrInternalError, "%s adapter panic: %v", spec.Vendor, r).WithProvider(spec.Vendor)
		}
		cancel()
		c.recorder.RecordVendorCall(string(mod), spec.Vendor, spec.ID, callStatus(err), time.Since(start))
		telemetry.EndSpan(span, err)
		if err != nil {
			c.logger.Warn("vendor call failed",
				zap.String("modality", string(mod)),
				zap.String("vendor", spec.Vendor),
				zap.String("model", spec.ID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
		}
	}()

	err = normalizeError(fn(callCtx, spec), callCtx, ctx, spec.Vendor)
	return err
}

// normalizeError 保证返回值是 *types.Error，并区分本次调用超时与上层取消
func normalizeError(err error, callCtx, parent context.Context, vendor string) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		if te, ok := types.AsError(err); ok && te.Code == types.ErrCancelled {
			return te
		}
		return types.NewError(types.ErrCancelled, fmt.Sprintf("%s call cancelled", vendor)).
			WithCause(err).WithProvider(vendor)
	}
	if te, ok := types.AsError(err); ok {
		if te.Code == types.ErrCancelled && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return types.Errorf(types.ErrUpstreamTimeout, "%s call timed out", vendor).WithCause(err).WithProvider(vendor)
		}
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.Errorf(types.ErrUpstreamTimeout, "%s call timed out", vendor).WithCause(err).WithProvider(vendor)
	}
	return types.Errorf(types.ErrUpstreamError, "%s: %v", vendor, err).WithCause(err).WithProvider(vendor)
}

func callStatus(err error) string {
	if err == nil {
		return "ok"
	}
	if code := types.GetErrorCode(err); code != "" {
		return string(code)
	}
	return "error"
}

func (c *Client) countTokens(spec ModelSpec, system, prompt string) {
	if c.tokens == nil {
		return
	}
	n, err := c.tokens.Count(spec.vendorModel(), system, prompt)
	if err != nil {
		c.logger.Debug("token count failed", zap.String("model", spec.ID), zap.Error(err))
		return
	}
	c.recorder.RecordPromptTokens(spec.Vendor, spec.ID, n)
}
