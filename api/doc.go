// Package api holds the request and response types of the AssetFlow HTTP API.
//
// # API Overview
//
// AssetFlow exposes a JSON API for:
//   - Synchronous plan generation returning a zip archive
//   - Asynchronous jobs with progress events over websocket
//   - The model catalog and per-vendor availability
//   - A Blender render proxy
//   - Health monitoring and metrics
//
// # Authentication
//
// When server.api_keys is configured, endpoints under /api/ require the
// X-API-Key header:
//
//	X-API-Key: your-api-key
//
// Bearer JWTs are accepted instead when jwt.enabled is set.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Generating Documentation
//
// Handlers carry swag annotations:
//
//	swag init -g cmd/assetflow/main.go -o api --parseDependency --parseInternal
package api
