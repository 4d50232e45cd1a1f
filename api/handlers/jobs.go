package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/api"
	"github.com/BaSui01/assetflow/jobs"
	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/types"
)

// =============================================================================
// ⏳ 异步任务 Handler
// =============================================================================

// JobService 异步任务服务
type JobService interface {
	Submit(ctx context.Context, in pipeline.RequestInput) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, limit int) ([]*jobs.Job, error)
	Archive(ctx context.Context, id string) ([]byte, *jobs.Job, error)
	Subscribe(ctx context.Context, id string) (<-chan jobs.Event, func(), error)
	Cancel(ctx context.Context, id string) (*jobs.Job, error)
}

const (
	defaultListLimit  = 20
	maxListLimit      = 100
	eventWriteTimeout = 10 * time.Second
)

// JobsHandler 异步任务处理器
type JobsHandler struct {
	svc     JobService
	maxBody int64
	origins []string
	logger  *zap.Logger
}

// NewJobsHandler 创建异步任务处理器。
// origins 为 websocket 允许的跨域 Origin 模式，空时只接受同源连接
func NewJobsHandler(svc JobService, maxBody int64, origins []string, logger *zap.Logger) *JobsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsHandler{
		svc:     svc,
		maxBody: maxBody,
		origins: origins,
		logger:  logger.With(zap.String("handler", "jobs")),
	}
}

// HandleSubmit 处理 POST /api/v1/jobs
// @Summary 提交异步生成任务
// @Tags 任务
// @Accept json
// @Produce json
// @Param request body pipeline.RequestInput true "生成请求"
// @Success 202 {object} Response "任务已排队"
// @Failure 503 {object} Response "队列已满"
// @Router /api/v1/jobs [post]
func (h *JobsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var in pipeline.RequestInput
	if err := DecodeJSONBody(w, r, &in, h.maxBody, h.logger); err != nil {
		return
	}
	job, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	w.Header().Set("Location", "/api/v1/jobs/"+job.ID)
	WriteStatus(w, r, http.StatusAccepted, job)
}

// HandleList 处理 GET /api/v1/jobs?limit=N
func (h *JobsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, r, types.NewInvalidRequestError("limit must be a positive integer"), h.logger)
			return
		}
		limit = min(n, maxListLimit)
	}
	list, err := h.svc.List(r.Context(), limit)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	WriteSuccess(w, r, api.JobListResponse{Jobs: list, Count: len(list)})
}

// HandleGet 处理 GET /api/v1/jobs/{id}
// @Summary 查询任务状态
// @Tags 任务
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} Response "任务"
// @Failure 404 {object} Response "任务不存在"
// @Router /api/v1/jobs/{id} [get]
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, job)
}

// HandleArchive 处理 GET /api/v1/jobs/{id}/archive
// @Summary 下载任务 zip
// @Tags 任务
// @Produce application/zip
// @Param id path string true "任务 ID"
// @Success 200 {file} binary "资产 zip"
// @Failure 409 {object} Response "任务未成功完成"
// @Router /api/v1/jobs/{id}/archive [get]
func (h *JobsHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	data, job, err := h.svc.Archive(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	w.Header().Set(HeaderRunID, job.ID)
	w.Header().Set(HeaderPlanEntries, strconv.Itoa(len(job.Results)))
	w.Header().Set(HeaderPlanFailures, strconv.Itoa(job.Failures()))
	writeArchive(w, "assetflow-"+job.ID+".zip", data)
}

// HandleCancel 处理 DELETE /api/v1/jobs/{id}
func (h *JobsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteStatus(w, r, http.StatusAccepted, job)
}

// HandleEvents 处理 GET /api/v1/jobs/{id}/events，以 websocket 推送进度事件。
// 任务到达终态后服务端以 StatusNormalClosure 关闭连接
func (h *JobsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, unsubscribe, err := h.svc.Subscribe(r.Context(), id)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		// Accept 已写回错误响应
		h.logger.Debug("websocket accept failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// 客户端不发送数据，CloseRead 负责处理 ping 与关闭帧
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				h.logger.Debug("websocket write failed", zap.String("job_id", id), zap.Error(err))
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev jobs.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
