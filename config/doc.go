// Package config 提供 assetflow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 ASSETFLOW）的顺序合并，
// 最后用本地凭证文件（CredentialStore）填补未配置的厂商 API Key。
package config
