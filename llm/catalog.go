package llm

import (
	"sort"

	"github.com/BaSui01/assetflow/types"
)

// Modality 模型能力类别
type Modality string

const (
	ModalityChat  Modality = "chat"
	ModalityCode  Modality = "code"
	ModalityImage Modality = "image"
	Modality3D    Modality = "3d"
	ModalityAudio Modality = "audio"
)

// ModelSpec 目录中的一个模型
type ModelSpec struct {
	ID       string   `json:"id"`
	Modality Modality `json:"modality"`
	Vendor   string   `json:"vendor"`
	// VendorModel 发往厂商的模型名，空时与 ID 相同
	VendorModel string `json:"-"`
	// Async 厂商以任务轮询方式返回结果
	Async bool `json:"async"`
}

func (m ModelSpec) vendorModel() string {
	if m.VendorModel != "" {
		return m.VendorModel
	}
	return m.ID
}

// Catalog 固定的模型目录
type Catalog struct {
	byModality map[Modality][]ModelSpec
}

// chatModels chat 与 code 共用
var chatModels = []ModelSpec{
	{ID: "gpt-4o", Vendor: "openai"},
	{ID: "gpt-4o-mini", Vendor: "openai"},
	{ID: "deepseek-chat", Vendor: "deepseek"},
	{ID: "deepseek-coder", Vendor: "deepseek"},
	{ID: "qwen-plus", Vendor: "qwen"},
}

// DefaultCatalog 返回内置模型目录
func DefaultCatalog() *Catalog {
	c := &Catalog{byModality: make(map[Modality][]ModelSpec)}
	for _, m := range chatModels {
		c.add(ModalityChat, m)
		c.add(ModalityCode, m)
	}
	c.add(ModalityImage, ModelSpec{ID: "dall-e-3", Vendor: "openai"})
	c.add(ModalityImage, ModelSpec{ID: "flux-pro-1.1", Vendor: "flux", Async: true})
	c.add(ModalityImage, ModelSpec{ID: "gemini-2.0-flash-image", Vendor: "gemini",
		VendorModel: "gemini-2.0-flash-preview-image-generation"})
	c.add(Modality3D, ModelSpec{ID: "meshy-4", Vendor: "meshy", Async: true})
	c.add(Modality3D, ModelSpec{ID: "tripo-v2.5", Vendor: "tripo", VendorModel: "v2.5-20250123", Async: true})
	c.add(ModalityAudio, ModelSpec{ID: "suno-v4", Vendor: "suno", VendorModel: "chirp-v4", Async: true})
	c.add(ModalityAudio, ModelSpec{ID: "music-01", Vendor: "minimax"})
	return c
}

func (c *Catalog) add(mod Modality, m ModelSpec) {
	m.Modality = mod
	c.byModality[mod] = append(c.byModality[mod], m)
}

// Lookup 查找模型，不存在时返回 ErrConfiguration
func (c *Catalog) Lookup(mod Modality, id string) (ModelSpec, error) {
	models, ok := c.byModality[mod]
	if !ok {
		return ModelSpec{}, types.NewConfigurationError("unknown modality %q", mod)
	}
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	return ModelSpec{}, types.NewConfigurationError("unsupported %s model %q", mod, id)
}

// Models 返回某模态的全部模型，按目录顺序
func (c *Catalog) Models(mod Modality) []ModelSpec {
	return append([]ModelSpec(nil), c.byModality[mod]...)
}

// All 返回目录副本
func (c *Catalog) All() map[Modality][]ModelSpec {
	out := make(map[Modality][]ModelSpec, len(c.byModality))
	for mod, models := range c.byModality {
		out[mod] = append([]ModelSpec(nil), models...)
	}
	return out
}

// Modalities 返回已知模态，按名称排序
func (c *Catalog) Modalities() []Modality {
	out := make([]Modality, 0, len(c.byModality))
	for mod := range c.byModality {
		out = append(out, mod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
