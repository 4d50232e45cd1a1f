// Copyright (c) AssetFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 assetflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm、pipeline、api
等上层模块提供统一的类型契约，避免循环依赖。

# 核心类型

  - Artifact：封闭变体：Text / Script / ImageRef / ModelRef / AudioRef / Failure
  - ArtifactSummary：运行报告中使用的 JSON 摘要（Describe）
  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 错误分类

  - ErrConfiguration：模型不在目录中或缺少凭证，在任何厂商调用之前返回
  - 厂商错误（IsVendorError）：非 2xx、响应格式错误、空结果、超时
  - ErrArchiveIO：归档阶段的下载或解码失败，只影响单个条目
*/
package types
