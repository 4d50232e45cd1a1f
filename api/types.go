package api

import (
	"github.com/BaSui01/assetflow/jobs"
)

// =============================================================================
// 模型目录类型
// =============================================================================

// ModelInfo 目录中的单个模型及其可用状态
// @Description 模型目录条目
type ModelInfo struct {
	// 模型 ID，请求中 models.* 字段使用的名称
	ID string `json:"id" example:"gpt-4o"`
	// 模态：chat、code、image、3d、audio
	Modality string `json:"modality" example:"chat"`
	// 厂商
	Vendor string `json:"vendor" example:"openai"`
	// 厂商以任务轮询方式返回结果
	Async bool `json:"async"`
	// 对应厂商已配置凭证
	Available bool `json:"available"`
	// 不可用原因
	Reason string `json:"reason,omitempty" example:"missing credential for vendor \"openai\""`
	// 是否为该模态的默认模型
	Default bool `json:"default,omitempty"`
}

// ModelListResponse 模型目录响应
// @Description 模型目录
type ModelListResponse struct {
	Models []ModelInfo `json:"models"`
	// 模态 → 默认模型
	Defaults map[string]string `json:"defaults"`
}

// =============================================================================
// 任务类型
// =============================================================================

// JobListResponse 任务列表响应，按创建时间倒序
// @Description 任务列表
type JobListResponse struct {
	Jobs  []*jobs.Job `json:"jobs"`
	Count int         `json:"count"`
}
