package threed

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/llm/poll"
	"github.com/BaSui01/assetflow/llm/providers"
	"github.com/BaSui01/assetflow/llm/retry"
	"github.com/BaSui01/assetflow/types"
)

// TripoProvider Tripo3D image_to_model
type TripoProvider struct {
	cfg   Config
	retry retry.Retryer
}

// NewTripoProvider 创建 Tripo3D 厂商
func NewTripoProvider(cfg Config) *TripoProvider {
	cfg.defaults("https://api.tripo3d.ai/v2")
	return &TripoProvider{cfg: cfg, retry: pollRetryer(cfg.Logger)}
}

func (p *TripoProvider) Name() string { return "tripo" }

type tripoFile struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	FileToken string `json:"file_token,omitempty"`
}

type tripoTaskRequest struct {
	Type         string    `json:"type"`
	File         tripoFile `json:"file"`
	ModelVersion string    `json:"model_version,omitempty"`
}

// tripo 所有响应都包一层 {code, message, data}
type tripoEnvelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type tripoTask struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Output struct {
		Model     string `json:"model"`
		PbrModel  string `json:"pbr_model"`
		BaseModel string `json:"base_model"`
	} `json:"output"`
}

func (p *TripoProvider) envelopeError(code int, msg string) error {
	return types.Errorf(types.ErrUpstreamError, "tripo error code %d: %s", code, msg).WithProvider(p.Name())
}

// Convert 提交 image_to_model 任务并轮询 /openapi/task/{id}
func (p *TripoProvider) Convert(ctx context.Context, req *Request) (types.ModelRef, error) {
	format := req.Image.Format
	switch format {
	case "":
		format = "png"
	case "jpeg":
		format = "jpg"
	}

	file := tripoFile{Type: format}
	switch {
	case req.Image.URL != "":
		file.URL = req.Image.URL
	case len(req.Image.Data) > 0:
		token, err := p.upload(ctx, req.Image.Data, format)
		if err != nil {
			return types.ModelRef{}, err
		}
		file.FileToken = token
	default:
		return types.ModelRef{}, types.NewInvalidRequestError("tripo: image has neither url nor data")
	}

	body := tripoTaskRequest{Type: "image_to_model", File: file, ModelVersion: req.Model}
	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, providers.JoinURL(p.cfg.BaseURL, "/openapi/task"), body)
	if err != nil {
		return types.ModelRef{}, err
	}
	providers.SetBearer(httpReq, p.cfg.APIKey)

	var created tripoEnvelope[tripoTask]
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &created); err != nil {
		return types.ModelRef{}, err
	}
	if created.Code != 0 {
		return types.ModelRef{}, p.envelopeError(created.Code, created.Message)
	}
	taskID := created.Data.TaskID
	if taskID == "" {
		return types.ModelRef{}, providers.MalformedResponse(p.Name(), fmt.Errorf("missing task id"))
	}
	p.cfg.Logger.Debug("tripo task submitted", zap.String("task_id", taskID))

	task, err := poll.Until(ctx, poll.Options{
		Interval: p.cfg.PollInterval,
		Timeout:  p.cfg.PollTimeout,
		Provider: p.Name(),
	}, func(ctx context.Context) (poll.Result[tripoTask], error) {
		t, err := retry.DoWithResultTyped(p.retry, ctx, func() (tripoTask, error) {
			return p.getTask(ctx, taskID)
		})
		if err != nil {
			return poll.Result[tripoTask]{}, err
		}
		switch t.Status {
		case "success":
			return poll.Succeeded(t), nil
		case "failed", "cancelled", "banned", "expired", "unknown":
			return poll.Failed[tripoTask](types.Errorf(types.ErrUpstreamError, "tripo task %s %s", taskID, t.Status).
				WithProvider(p.Name())), nil
		default:
			return poll.Pending[tripoTask](), nil
		}
	})
	if err != nil {
		return types.ModelRef{}, err
	}

	ref := types.ModelRef{Provider: p.Name()}
	for _, u := range []string{task.Output.Model, task.Output.PbrModel, task.Output.BaseModel} {
		if u != "" {
			ref.Files = append(ref.Files, types.ModelFile{Format: formatFromURL(u), URL: u})
			break
		}
	}
	if len(ref.Files) == 0 {
		return types.ModelRef{}, providers.EmptyResult(p.Name(), "model output")
	}
	return ref, nil
}

func (p *TripoProvider) getTask(ctx context.Context, taskID string) (tripoTask, error) {
	var env tripoEnvelope[tripoTask]
	httpReq, err := providers.NewJSONRequest(ctx, http.MethodGet, providers.JoinURL(p.cfg.BaseURL, "/openapi/task/"+url.PathEscape(taskID)), nil)
	if err != nil {
		return tripoTask{}, err
	}
	providers.SetBearer(httpReq, p.cfg.APIKey)
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &env); err != nil {
		return tripoTask{}, err
	}
	if env.Code != 0 {
		return tripoTask{}, p.envelopeError(env.Code, env.Message)
	}
	return env.Data, nil
}

// upload POST /openapi/upload，返回 image_token
func (p *TripoProvider) upload(ctx context.Context, data []byte, format string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "image."+format)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, providers.JoinURL(p.cfg.BaseURL, "/openapi/upload"), &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	providers.SetBearer(httpReq, p.cfg.APIKey)

	var env tripoEnvelope[struct {
		ImageToken string `json:"image_token"`
	}]
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &env); err != nil {
		return "", err
	}
	if env.Code != 0 {
		return "", p.envelopeError(env.Code, env.Message)
	}
	if env.Data.ImageToken == "" {
		return "", providers.MalformedResponse(p.Name(), fmt.Errorf("missing image_token"))
	}
	return env.Data.ImageToken, nil
}
