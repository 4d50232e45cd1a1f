package threed

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/llm/poll"
	"github.com/BaSui01/assetflow/llm/providers"
	"github.com/BaSui01/assetflow/llm/retry"
	"github.com/BaSui01/assetflow/types"
)

// MeshyProvider Meshy image-to-3d
type MeshyProvider struct {
	cfg   Config
	retry retry.Retryer
}

// NewMeshyProvider 创建 Meshy 厂商
func NewMeshyProvider(cfg Config) *MeshyProvider {
	cfg.defaults("https://api.meshy.ai/v2")
	return &MeshyProvider{cfg: cfg, retry: pollRetryer(cfg.Logger)}
}

func (p *MeshyProvider) Name() string { return "meshy" }

type meshyImageTo3DRequest struct {
	ImageURL  string `json:"image_url"`
	AIModel   string `json:"ai_model,omitempty"`
	EnablePBR bool   `json:"enable_pbr,omitempty"`
}

type meshyCreateResponse struct {
	Result string `json:"result"`
}

type meshyTask struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	ModelURLs struct {
		GLB  string `json:"glb"`
		FBX  string `json:"fbx"`
		OBJ  string `json:"obj"`
		USDZ string `json:"usdz"`
	} `json:"model_urls"`
	TaskError *struct {
		Message string `json:"message"`
	} `json:"task_error,omitempty"`
}

// Convert POST /image-to-3d 后轮询 /image-to-3d/{id}
func (p *MeshyProvider) Convert(ctx context.Context, req *Request) (types.ModelRef, error) {
	imageURL := req.Image.URL
	if imageURL == "" {
		if len(req.Image.Data) == 0 {
			return types.ModelRef{}, types.NewInvalidRequestError("meshy: image has neither url nor data")
		}
		format := req.Image.Format
		if format == "" {
			format = "png"
		}
		imageURL = fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(req.Image.Data))
	}

	body := meshyImageTo3DRequest{ImageURL: imageURL, AIModel: req.Model, EnablePBR: true}
	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, providers.JoinURL(p.cfg.BaseURL, "/image-to-3d"), body)
	if err != nil {
		return types.ModelRef{}, err
	}
	providers.SetBearer(httpReq, p.cfg.APIKey)

	var created meshyCreateResponse
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &created); err != nil {
		return types.ModelRef{}, err
	}
	if created.Result == "" {
		return types.ModelRef{}, providers.MalformedResponse(p.Name(), fmt.Errorf("missing task id"))
	}
	taskID := created.Result
	p.cfg.Logger.Debug("meshy task submitted", zap.String("task_id", taskID))

	task, err := poll.Until(ctx, poll.Options{
		Interval: p.cfg.PollInterval,
		Timeout:  p.cfg.PollTimeout,
		Provider: p.Name(),
	}, func(ctx context.Context) (poll.Result[meshyTask], error) {
		t, err := retry.DoWithResultTyped(p.retry, ctx, func() (meshyTask, error) {
			return p.getTask(ctx, taskID)
		})
		if err != nil {
			return poll.Result[meshyTask]{}, err
		}
		switch t.Status {
		case "SUCCEEDED":
			return poll.Succeeded(t), nil
		case "FAILED", "EXPIRED", "CANCELED":
			msg := t.Status
			if t.TaskError != nil && t.TaskError.Message != "" {
				msg += ": " + t.TaskError.Message
			}
			return poll.Failed[meshyTask](types.Errorf(types.ErrUpstreamError, "meshy task %s %s", taskID, msg).
				WithProvider(p.Name())), nil
		default:
			return poll.Pending[meshyTask](), nil
		}
	})
	if err != nil {
		return types.ModelRef{}, err
	}

	ref := types.ModelRef{Provider: p.Name()}
	for _, f := range []struct{ format, url string }{
		{"glb", task.ModelURLs.GLB},
		{"fbx", task.ModelURLs.FBX},
		{"obj", task.ModelURLs.OBJ},
		{"usdz", task.ModelURLs.USDZ},
	} {
		if f.url != "" {
			ref.Files = append(ref.Files, types.ModelFile{Format: f.format, URL: f.url})
		}
	}
	if len(ref.Files) == 0 {
		return types.ModelRef{}, providers.EmptyResult(p.Name(), "model urls")
	}
	return ref, nil
}

func (p *MeshyProvider) getTask(ctx context.Context, taskID string) (meshyTask, error) {
	var t meshyTask
	httpReq, err := providers.NewJSONRequest(ctx, http.MethodGet, providers.JoinURL(p.cfg.BaseURL, "/image-to-3d/"+url.PathEscape(taskID)), nil)
	if err != nil {
		return t, err
	}
	providers.SetBearer(httpReq, p.cfg.APIKey)
	err = providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &t)
	return t, err
}
