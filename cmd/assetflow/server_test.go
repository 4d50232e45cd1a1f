package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Jobs.Dir = t.TempDir()
	cfg.Vendors.OpenAI.APIKey = "sk-test"
	if mutate != nil {
		mutate(cfg)
	}

	s := NewServer(cfg, zap.NewNop(), nil)
	s.registry = prometheus.NewRegistry()
	handler, err := s.build(context.Background())
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
	})
	return ts
}

func TestServer_Routes(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", "", http.StatusOK},
		{"version", http.MethodGet, "/version", "", http.StatusOK},
		{"models", http.MethodGet, "/api/v1/models", "", http.StatusOK},
		{"jobs list", http.MethodGet, "/api/v1/jobs", "", http.StatusOK},
		{"unknown job", http.MethodGet, "/api/v1/jobs/missing", "", http.StatusNotFound},
		{"plan bad language", http.MethodPost, "/api/v1/plans", `{"concept":"x","language":"klingon"}`, http.StatusBadRequest},
		{"render disabled", http.MethodPost, "/api/v1/render", `{}`, http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/v1/plans", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")

			resp, err := ts.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestServer_APIKeyProtectsAPI(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.APIKeys = []string{"secret"}
	})

	resp, err := ts.Client().Get(ts.URL + "/api/v1/models")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/models", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
