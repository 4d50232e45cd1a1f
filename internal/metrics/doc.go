// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、厂商调用、
流水线阶段、归档、异步任务、归档缓存、渲染与数据库连接。

# 概述

Collector 通过 promauto.With(registry) 注册全部指标，默认使用
prometheus.DefaultRegisterer，测试中可传入独立的 Registry。
所有 Record* 方法对 nil 接收者安全，未启用指标时直接传 nil 即可。

# 主要能力

  - HTTP 指标：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 厂商指标：按 modality/provider/model/status 统计调用次数与耗时，
    以及 prompt token 用量。
  - 流水线指标：阶段耗时、按 slot/kind 统计的产物数量（含 failure）。
  - 归档指标：zip 大小分布，写入条目与占位条目数。
  - 任务与缓存：任务终态计数、运行中任务数、归档缓存命中率。
  - 渲染与数据库：Blender 渲染耗时与结果、连接池 Gauge。
*/
package metrics
