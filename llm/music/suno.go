package music

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

// SunoProvider Suno 音乐生成
type SunoProvider struct {
	cfg   Config
	retry retry.Retryer
}

// NewSunoProvider 创建 Suno 厂商
func NewSunoProvider(cfg Config) *SunoProvider {
	cfg.defaults("https://api.sunoapi.com/v1")
	return &SunoProvider{cfg: cfg, retry: pollRetryer(cfg.Logger)}
}

func (p *SunoProvider) Name() string { return "suno" }

type sunoRequest struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model,omitempty"`
	Instrumental bool   `json:"instrumental,omitempty"`
}

type sunoTask struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Data   []struct {
		ID       string  `json:"id"`
		AudioURL string  `json:"audio_url"`
		Duration float64 `json:"duration"`
		Title    string  `json:"title"`
	} `json:"data"`
}

// Generate POST /suno/create，未完成时轮询 /suno/task/{id}。取第一条音轨
func (p *SunoProvider) Generate(ctx context.Context, req *Request) (types.AudioRef, error) {
	body := sunoRequest{Prompt: req.Prompt, Model: req.Model, Instrumental: req.Instrumental}
	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, providers.JoinURL(p.cfg.BaseURL, "/suno/create"), body)
	if err != nil {
		return types.AudioRef{}, err
	}
	providers.SetBearer(httpReq, p.cfg.APIKey)

	var task sunoTask
	if err := providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &task); err != nil {
		return types.AudioRef{}, err
	}

	if !sunoDone(task.Status) {
		if task.TaskID == "" {
			return types.AudioRef{}, providers.MalformedResponse(p.Name(), fmt.Errorf("missing task id"))
		}
		taskID := task.TaskID
		p.cfg.Logger.Debug("suno task submitted", zap.String("task_id", taskID))

		task, err = poll.Until(ctx, poll.Options{
			Interval: p.cfg.PollInterval,
			Timeout:  p.cfg.PollTimeout,
			Provider: p.Name(),
		}, func(ctx context.Context) (poll.Result[sunoTask], error) {
			t, err := retry.DoWithResultTyped(p.retry, ctx, func() (sunoTask, error) {
				return p.getTask(ctx, taskID)
			})
			if err != nil {
				return poll.Result[sunoTask]{}, err
			}
			switch {
			case sunoDone(t.Status):
				return poll.Succeeded(t), nil
			case t.Status == "failed" || t.Status == "error":
				return poll.Failed[sunoTask](types.Errorf(types.ErrUpstreamError, "suno task %s %s", taskID, t.Status).
					WithProvider(p.Name())), nil
			default:
				return poll.Pending[sunoTask](), nil
			}
		})
		if err != nil {
			return types.AudioRef{}, err
		}
	}

	for _, d := range task.Data {
		if d.AudioURL != "" {
			return types.AudioRef{URL: d.AudioURL, Format: "mp3"}, nil
		}
	}
	return types.AudioRef{}, providers.EmptyResult(p.Name(), "audio tracks")
}

func sunoDone(status string) bool {
	return status == "completed" || status == "success"
}

func (p *SunoProvider) getTask(ctx context.Context, taskID string) (sunoTask, error) {
	var t sunoTask
	httpReq, err := providers.NewJSONRequest(ctx, http.MethodGet, providers.JoinURL(p.cfg.BaseURL, "/suno/task/"+url.PathEscape(taskID)), nil)
	if err != nil {
		return t, err
	}
	providers.SetBearer(httpReq, p.cfg.APIKey)
	err = providers.DoJSON(p.cfg.HTTPClient, httpReq, p.Name(), &t)
	return t, err
}
