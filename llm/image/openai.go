package image

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/BaSui01/assetflow/llm/providers"
	"github.com/BaSui01/assetflow/types"
)

// OpenAIProvider DALL-E 文生图
type OpenAIProvider struct {
	cfg Config
}

// NewOpenAIProvider 创建 OpenAI 图像厂商
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	cfg.defaults("https://api.openai.com")
	return &OpenAIProvider{cfg: cfg}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type dalleRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type dalleResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url,omitempty"`
		B64JSON       string `json:"b64_json,omitempty"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

// Generate POST /v1/images/generations，只取第一张
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (types.ImageRef, error) {
	body := dalleRequest{Model: req.Model, Prompt: req.Prompt, N: 1, Size: req.Size}
	if body.Size == "" {
		body.Size = "1024x1024"
	}

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, providers.JoinURL(p.cfg.BaseURL, "/v1/images/generations"), body)
	if err != nil {
		return types.ImageRef{}, err
	}
	providers.SetBearer(httpReq, p.cfg.APIKey)

	var resp dalleResponse
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &resp); err != nil {
		return types.ImageRef{}, err
	}
	if len(resp.Data) == 0 {
		return types.ImageRef{}, providers.EmptyResult(p.Name(), "images")
	}

	d := resp.Data[0]
	switch {
	case d.URL != "":
		return types.ImageRef{URL: d.URL, Format: "png"}, nil
	case d.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return types.ImageRef{}, providers.MalformedResponse(p.Name(), err)
		}
		return types.ImageRef{Data: data, Format: "png"}, nil
	default:
		return types.ImageRef{}, providers.EmptyResult(p.Name(), "image url or data")
	}
}
