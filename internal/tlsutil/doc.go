// Package tlsutil 提供集中式 TLS 配置，
// 厂商调用与归档下载共用同一套加固的 HTTP 客户端（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
