package image

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/llm/poll"
	"github.com/BaSui01/assetflow/llm/providers"
	"github.com/BaSui01/assetflow/llm/retry"
	"github.com/BaSui01/assetflow/types"
)

// FluxProvider Black Forest Labs Flux，异步任务
// API Docs: https://docs.bfl.ai/quick_start/generating_images
type FluxProvider struct {
	cfg   Config
	retry retry.Retryer
}

// NewFluxProvider 创建 Flux 厂商
func NewFluxProvider(cfg Config) *FluxProvider {
	cfg.defaults("https://api.bfl.ml")
	return &FluxProvider{cfg: cfg, retry: pollRetryer(cfg.Logger)}
}

func (p *FluxProvider) Name() string { return "flux" }

type fluxRequest struct {
	Prompt       string `json:"prompt"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
}

type fluxSubmitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url,omitempty"`
}

type fluxResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result,omitempty"`
}

// Generate POST /v1/{model}，再轮询 polling_url 直到 Ready
func (p *FluxProvider) Generate(ctx context.Context, req *Request) (types.ImageRef, error) {
	w, h := ParseSize(req.Size)
	body := fluxRequest{Prompt: req.Prompt, Width: w, Height: h, OutputFormat: "png"}

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, providers.JoinURL(p.cfg.BaseURL, "/v1/"+url.PathEscape(req.Model)), body)
	if err != nil {
		return types.ImageRef{}, err
	}
	httpReq.Header.Set("x-key", p.cfg.APIKey)

	var submit fluxSubmitResponse
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &submit); err != nil {
		return types.ImageRef{}, err
	}
	if submit.ID == "" && submit.PollingURL == "" {
		return types.ImageRef{}, providers.MalformedResponse(p.Name(), fmt.Errorf("missing task id"))
	}

	pollingURL := submit.PollingURL
	if pollingURL == "" {
		pollingURL = providers.JoinURL(p.cfg.BaseURL, "/v1/get_result?id="+url.QueryEscape(submit.ID))
	}
	p.cfg.Logger.Debug("flux task submitted", zap.String("task_id", submit.ID))

	sample, err := poll.Until(ctx, poll.Options{
		Interval: p.cfg.PollInterval,
		Timeout:  p.cfg.PollTimeout,
		Provider: p.Name(),
	}, func(ctx context.Context) (poll.Result[string], error) {
		res, err := retry.DoWithResultTyped(p.retry, ctx, func() (fluxResult, error) {
			return p.getResult(ctx, pollingURL)
		})
		if err != nil {
			return poll.Result[string]{}, err
		}
		switch res.Status {
		case "Ready":
			if res.Result == nil || res.Result.Sample == "" {
				return poll.Failed[string](providers.EmptyResult(p.Name(), "sample")), nil
			}
			return poll.Succeeded(res.Result.Sample), nil
		case "Error", "Failed", "Request Moderated", "Content Moderated", "Task not found":
			return poll.Failed[string](types.Errorf(types.ErrUpstreamError, "flux task %s: %s", submit.ID, res.Status).
				WithProvider(p.Name())), nil
		default:
			return poll.Pending[string](), nil
		}
	})
	if err != nil {
		return types.ImageRef{}, err
	}
	// sample 为签名 URL，约 10 分钟有效
	return types.ImageRef{URL: sample, Format: "png"}, nil
}

func (p *FluxProvider) getResult(ctx context.Context, pollingURL string) (fluxResult, error) {
	var res fluxResult
	httpReq, err := providers.NewJSONRequest(ctx, http.MethodGet, pollingURL, nil)
	if err != nil {
		return res, err
	}
	httpReq.Header.Set("x-key", p.cfg.APIKey)
	err = providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &res)
	return res, err
}
