package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollectorWithRegistry("test", prometheus.NewRegistry(), zap.NewNop())
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/api/v1/plans", 200, 100*time.Millisecond, 2048)
	c.RecordHTTPRequest("POST", "/api/v1/plans", 200, 50*time.Millisecond, 1024)
	c.RecordHTTPRequest("GET", "/api/v1/jobs/:id", 404, time.Millisecond, 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/plans", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/v1/jobs/:id", "4xx")))
}

func TestCollector_VendorAndTokens(t *testing.T) {
	c := newTestCollector(t)

	c.RecordVendorCall("image", "flux", "flux-pro-1.1", "error", 2*time.Second)
	c.RecordVendorCall("image", "flux", "flux-pro-1.1", "success", time.Second)
	c.RecordPromptTokens("openai", "gpt-4o", 120)
	c.RecordPromptTokens("openai", "gpt-4o", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.vendorCallsTotal.WithLabelValues("image", "flux", "flux-pro-1.1", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.promptTokens.WithLabelValues("openai", "gpt-4o")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.vendorCallDuration))
}

func TestCollector_PipelineAndArchive(t *testing.T) {
	c := newTestCollector(t)

	c.RecordStage("images", 3*time.Second)
	c.RecordArtifact("images", "image")
	c.RecordArtifact("images", "failure")
	c.RecordArchive(4096, 5, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.artifactsTotal.WithLabelValues("images", "failure")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.archiveEntries.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.archiveEntries.WithLabelValues("placeholder")))
}

func TestCollector_JobsCacheRender(t *testing.T) {
	c := newTestCollector(t)

	c.RecordJobStarted()
	c.RecordJobStarted()
	c.RecordJobFinished("succeeded")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsTotal.WithLabelValues("succeeded")))

	c.RecordCacheHit("redis")
	c.RecordCacheMiss("redis")
	c.RecordRender("success", time.Second)
	c.RecordDBConnections("jobs", 4, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rendersTotal.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.dbConnectionsOpen.WithLabelValues("jobs")))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.RecordHTTPRequest("GET", "/", 200, 0, 0)
		c.RecordVendorCall("chat", "openai", "gpt-4o", "success", 0)
		c.RecordStage("concept", 0)
		c.RecordArchive(0, 0, 0)
		c.RecordJobFinished("failed")
		c.RecordRender("error", 0)
	})
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"}, {204, "2xx"}, {302, "3xx"}, {404, "4xx"}, {500, "5xx"}, {503, "5xx"}, {100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.code))
	}
}
