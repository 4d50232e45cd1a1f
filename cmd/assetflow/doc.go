// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 AssetFlow 服务端与命令行入口。

# 概述

cmd/assetflow 是 AssetFlow 的可执行入口，提供 HTTP API 服务、
离线生成、凭据管理、数据库迁移、Blender 渲染、健康检查和版本查询等子命令。

# 核心类型

  - Server：主服务器，管理 HTTP、Metrics 双端口、任务服务及优雅关闭
  - components：厂商客户端、编排器、归档器、渲染器，serve 与 generate 共用
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、generate、credentials、migrate、render、health、version
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    OTelTracing、Metrics、CORS、APIKeyAuth、JWTAuth、RateLimiter
  - 任务存储：memory 或 database（GORM），归档存储：file 或 redis
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 取消任务 → 关闭存储 → 关闭 Metrics 与遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
