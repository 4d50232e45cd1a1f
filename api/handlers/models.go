package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/api"
	"github.com/BaSui01/assetflow/llm"
	"github.com/BaSui01/assetflow/pipeline"
)

// ModelCatalog 模型目录及凭证校验
type ModelCatalog interface {
	Catalog() *llm.Catalog
	CheckModel(mod llm.Modality, model string) error
}

// ModelsHandler 模型目录处理器
type ModelsHandler struct {
	catalog  ModelCatalog
	defaults pipeline.Models
	logger   *zap.Logger
}

// NewModelsHandler 创建模型目录处理器
func NewModelsHandler(catalog ModelCatalog, defaults pipeline.Models, logger *zap.Logger) *ModelsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelsHandler{catalog: catalog, defaults: defaults, logger: logger}
}

// defaultFor 模态对应的默认模型。code 与 chat 共用目录但默认值独立
func (h *ModelsHandler) defaultFor(mod llm.Modality) string {
	switch mod {
	case llm.ModalityChat:
		return h.defaults.Chat
	case llm.ModalityCode:
		return h.defaults.Code
	case llm.ModalityImage:
		return h.defaults.Image
	case llm.Modality3D:
		return h.defaults.ThreeD
	case llm.ModalityAudio:
		return h.defaults.Music
	default:
		return ""
	}
}

// HandleList 处理 GET /api/v1/models
// @Summary 模型目录
// @Description 列出全部模型，available 表示对应厂商已配置凭证
// @Tags 模型
// @Produce json
// @Success 200 {object} api.ModelListResponse "模型目录"
// @Router /api/v1/models [get]
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	cat := h.catalog.Catalog()
	resp := api.ModelListResponse{
		Models:   []api.ModelInfo{},
		Defaults: make(map[string]string),
	}
	for _, mod := range cat.Modalities() {
		def := h.defaultFor(mod)
		if def != "" {
			resp.Defaults[string(mod)] = def
		}
		for _, m := range cat.Models(mod) {
			info := api.ModelInfo{
				ID:        m.ID,
				Modality:  string(mod),
				Vendor:    m.Vendor,
				Async:     m.Async,
				Available: true,
				Default:   m.ID == def,
			}
			if err := h.catalog.CheckModel(mod, m.ID); err != nil {
				info.Available = false
				info.Reason = err.Error()
			}
			resp.Models = append(resp.Models, info)
		}
	}
	WriteSuccess(w, r, resp)
}
