package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/render"
	"github.com/BaSui01/assetflow/types"
)

// SceneRenderer 渲染场景为 PNG
type SceneRenderer interface {
	Enabled() bool
	Render(ctx context.Context, scene render.Scene) ([]byte, error)
}

// RenderHandler Blender 渲染代理处理器
type RenderHandler struct {
	renderer SceneRenderer
	maxBody  int64
	logger   *zap.Logger
}

// NewRenderHandler 创建渲染处理器
func NewRenderHandler(renderer SceneRenderer, maxBody int64, logger *zap.Logger) *RenderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderHandler{renderer: renderer, maxBody: maxBody, logger: logger.With(zap.String("handler", "render"))}
}

// HandleRender 处理 POST /api/v1/render
// @Summary 渲染场景
// @Tags 渲染
// @Accept json
// @Produce image/png
// @Param scene body render.Scene true "场景"
// @Success 200 {file} binary "PNG 图片"
// @Failure 404 {object} Response "渲染未启用"
// @Router /api/v1/render [post]
func (h *RenderHandler) HandleRender(w http.ResponseWriter, r *http.Request) {
	if !h.renderer.Enabled() {
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrNotFound, "render proxy is disabled", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var scene render.Scene
	if err := DecodeJSONBody(w, r, &scene, h.maxBody, h.logger); err != nil {
		return
	}

	img, err := h.renderer.Render(r.Context(), scene)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
