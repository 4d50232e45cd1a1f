// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package handlers 提供 AssetFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 AssetFlow 所有 HTTP 端点的请求处理逻辑，
包括同步生成、异步任务、模型目录、渲染代理、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，路由使用 Go 1.22 的 method + path 模式。

# 核心类型

  - PlanHandler：POST /api/v1/plans，同步运行并返回 zip
  - JobsHandler：异步任务提交、查询、下载、取消与 websocket 进度推送
  - ModelsHandler：模型目录及各厂商凭证可用性
  - RenderHandler：Blender 渲染代理，返回 PNG
  - HealthHandler：服务健康检查（/health, /healthz, /ready）
  - Response：统一 JSON 响应结构（success + data + error + timestamp）

# 错误映射

WriteError 把 types.Error 的错误码映射为 HTTP 状态码；
非 types.Error 的错误一律返回 500，且不向客户端暴露原始信息。
*/
package handlers
