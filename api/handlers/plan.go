package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/pipeline/archive"
)

// =============================================================================
// 📦 同步生成 Handler
// =============================================================================

// PlanRunner 执行一次流水线运行
type PlanRunner interface {
	Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*pipeline.Plan, error)
}

// PlanAssembler 把计划打包为 zip
type PlanAssembler interface {
	Assemble(ctx context.Context, plan *pipeline.Plan) ([]byte, archive.Report, error)
}

// 响应头
const (
	HeaderRunID        = "X-Run-ID"
	HeaderPlanEntries  = "X-Plan-Entries"
	HeaderPlanFailures = "X-Plan-Failures"
)

// PlanHandler 同步生成处理器。请求在连接内完成运行并直接返回 zip
type PlanHandler struct {
	runner    PlanRunner
	assembler PlanAssembler
	defaults  pipeline.Models
	limits    pipeline.Limits
	maxBody   int64
	logger    *zap.Logger
}

// NewPlanHandler 创建同步生成处理器
func NewPlanHandler(runner PlanRunner, assembler PlanAssembler, defaults pipeline.Models, maxBody int64, logger *zap.Logger) *PlanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanHandler{
		runner:    runner,
		assembler: assembler,
		defaults:  defaults,
		limits:    pipeline.DefaultLimits(),
		maxBody:   maxBody,
		logger:    logger.With(zap.String("handler", "plan")),
	}
}

// WithLimits 设置请求条目上限
func (h *PlanHandler) WithLimits(l pipeline.Limits) *PlanHandler {
	h.limits = l
	return h
}

// HandleGenerate 处理 POST /api/v1/plans
// @Summary 同步生成资产计划
// @Tags 计划
// @Accept json
// @Produce application/zip
// @Param request body pipeline.RequestInput true "生成请求"
// @Success 200 {file} binary "资产 zip"
// @Failure 400 {object} Response "请求无效"
// @Failure 422 {object} Response "模型不可用"
// @Router /api/v1/plans [post]
func (h *PlanHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var in pipeline.RequestInput
	if err := DecodeJSONBody(w, r, &in, h.maxBody, h.logger); err != nil {
		return
	}
	req, err := pipeline.NewRequestWithLimits(in, h.defaults, h.limits)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	plan, err := h.runner.Run(r.Context(), req, nil)
	if err != nil {
		// 取消时客户端多半已断开，写回只为日志完整
		WriteError(w, r, err, h.logger)
		return
	}

	data, report, err := h.assembler.Assemble(r.Context(), plan)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	h.logger.Info("plan generated",
		zap.String("run_id", plan.RunID()),
		zap.Int("entries", plan.Len()),
		zap.Int("failures", len(plan.Failures())),
		zap.Int("archive_bytes", report.Size))

	w.Header().Set(HeaderRunID, plan.RunID())
	w.Header().Set(HeaderPlanEntries, strconv.Itoa(plan.Len()))
	w.Header().Set(HeaderPlanFailures, strconv.Itoa(len(plan.Failures())))
	writeArchive(w, archive.Filename(plan), data)
}

// writeArchive 以附件形式写出 zip
func writeArchive(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
