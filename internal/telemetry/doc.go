// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 assetflow 提供 TracerProvider / MeterProvider 配置、阶段与厂商调用的 span 辅助函数，
// 以及计划产物的 OTel 计数器。遥测禁用时使用 noop 实现，不连接任何外部服务。
package telemetry
