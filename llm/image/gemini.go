package image

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/assetflow/llm/providers"
	"github.com/BaSui01/assetflow/types"
)

// GeminiProvider Gemini 原生多模态出图
type GeminiProvider struct {
	cfg Config
}

// NewGeminiProvider 创建 Gemini 图像厂商
func NewGeminiProvider(cfg Config) *GeminiProvider {
	cfg.defaults("https://generativelanguage.googleapis.com")
	return &GeminiProvider{cfg: cfg}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiImageRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type geminiImageResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text,omitempty"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate POST /v1beta/models/{model}:generateContent，取第一张内嵌图片
func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (types.ImageRef, error) {
	var body geminiImageRequest
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}}
	body.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}

	endpoint := providers.JoinURL(p.cfg.BaseURL, "/v1beta/models/"+url.PathEscape(req.Model)+":generateContent")
	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return types.ImageRef{}, err
	}
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	var resp geminiImageResponse
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &resp); err != nil {
		return types.ImageRef{}, err
	}

	for _, c := range resp.Candidates {
		for _, part := range c.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return types.ImageRef{}, providers.MalformedResponse(p.Name(), err)
			}
			return types.ImageRef{Data: data, Format: formatFromMime(part.InlineData.MimeType)}, nil
		}
	}
	return types.ImageRef{}, providers.EmptyResult(p.Name(), "inline image")
}

func formatFromMime(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
