package llm

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/llm/tokenizer"
	"github.com/BaSui01/assetflow/types"
)

type recordedCall struct {
	modality, provider, model, status string
}

type fakeRecorder struct {
	mu     sync.Mutex
	calls  []recordedCall
	tokens int
}

func (f *fakeRecorder) RecordVendorCall(modality, provider, model, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{modality, provider, model, status})
}

func (f *fakeRecorder) RecordPromptTokens(_, _ string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens += n
}

// vendorServer 所有厂商共用一个 httptest 服务，按路径分发
func vendorServer(t *testing.T, mux *http.ServeMux) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func vendorsFor(url string) config.VendorsConfig {
	v := config.DefaultVendorsConfig()
	for _, name := range config.VendorNames() {
		vc := v.Vendor(name)
		vc.APIKey = name + "-key"
		vc.BaseURL = url
	}
	v.CallTimeout = 2 * time.Second
	v.PollInterval = time.Millisecond
	v.PollTimeout = time.Second
	return v
}

func TestClient_CheckModel(t *testing.T) {
	srv, hits := vendorServer(t, http.NewServeMux())
	vendors := vendorsFor(srv.URL)
	vendors.Suno.APIKey = ""
	c := NewClient(vendors, zaptest.NewLogger(t))

	assert.NoError(t, c.CheckModel(ModalityChat, "gpt-4o"))
	assert.NoError(t, c.CheckModel(ModalityImage, "flux-pro-1.1"))

	err := c.CheckModel(ModalityChat, "gpt-17-ultra")
	assert.True(t, types.IsConfigurationError(err))

	err = c.CheckModel(ModalityAudio, "suno-v4")
	assert.True(t, types.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "suno")

	err = c.CheckModel(ModalityImage, "gpt-4o")
	assert.True(t, types.IsConfigurationError(err), "chat model is not an image model")

	assert.Zero(t, hits.Load())
}

func TestClient_UnsupportedModelMakesNoCalls(t *testing.T) {
	srv, hits := vendorServer(t, http.NewServeMux())
	c := NewClient(vendorsFor(srv.URL), nil)

	_, err := c.GenerateText(context.Background(), "hi", "", "not-a-model")
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	_, err = c.GenerateImage(context.Background(), "hi", "1024x1024", "midjourney")
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	assert.Zero(t, hits.Load())
}

func TestClient_GenerateText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer deepseek-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"c1","model":"deepseek-chat","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"A neon city."}}]}`)
	})
	srv, _ := vendorServer(t, mux)

	rec := &fakeRecorder{}
	c := NewClient(vendorsFor(srv.URL), nil, WithRecorder(rec), WithTokenizer(tokenizer.NewRegistry()))

	out, err := c.GenerateText(context.Background(), "Describe the world", "You are a writer.", "deepseek-chat")
	require.NoError(t, err)
	assert.Equal(t, "A neon city.", out)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedCall{"chat", "deepseek", "deepseek-chat", "ok"}, rec.calls[0])
	assert.Positive(t, rec.tokens)
}

func TestClient_ImageHTTP500(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	})
	srv, hits := vendorServer(t, mux)
	rec := &fakeRecorder{}
	c := NewClient(vendorsFor(srv.URL), nil, WithRecorder(rec))

	_, err := c.GenerateImage(context.Background(), "a knight", "1024x1024", "dall-e-3")
	require.Error(t, err)
	te, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 500, te.HTTPStatus)
	assert.Equal(t, "openai", te.Provider)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), hits.Load(), "generation is never retried")
	assert.Equal(t, string(types.ErrUpstreamError), rec.calls[0].status)
}

func TestClient_CallTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv, _ := vendorServer(t, mux)
	vendors := vendorsFor(srv.URL)
	vendors.CallTimeout = 50 * time.Millisecond
	c := NewClient(vendors, nil)

	_, err := c.GenerateText(context.Background(), "slow", "", "gpt-4o")
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamTimeout, types.GetErrorCode(err))
}

func TestClient_CancelledContext(t *testing.T) {
	srv, hits := vendorServer(t, http.NewServeMux())
	c := NewClient(vendorsFor(srv.URL), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GenerateAudio(ctx, "music", "music-01")
	assert.Equal(t, types.ErrCancelled, types.GetErrorCode(err))
	assert.Zero(t, hits.Load())
}

func TestClient_ConvertTo3DAndAudio(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/image-to-3d", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"task-1"}`)
	})
	mux.HandleFunc("/image-to-3d/task-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"task-1","status":"SUCCEEDED","model_urls":{"glb":"https://cdn/m.glb","obj":"https://cdn/m.obj"}}`)
	})
	mux.HandleFunc("/v1/music_generation", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"base_resp":{"status_code":0},"data":{"audio":%q}}`, hex.EncodeToString([]byte("mp3")))
	})
	srv, _ := vendorServer(t, mux)
	c := NewClient(vendorsFor(srv.URL), nil)

	ref, err := c.ConvertTo3D(context.Background(), types.ImageRef{URL: "https://cdn/knight.png"}, "meshy-4")
	require.NoError(t, err)
	assert.Equal(t, []string{"glb", "obj"}, ref.Formats())

	audio, err := c.GenerateAudio(context.Background(), "calm", "music-01")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio.Data)
}

func TestCatalog(t *testing.T) {
	cat := DefaultCatalog()
	spec, err := cat.Lookup(Modality3D, "tripo-v2.5")
	require.NoError(t, err)
	assert.Equal(t, "tripo", spec.Vendor)
	assert.Equal(t, "v2.5-20250123", spec.vendorModel())
	assert.True(t, spec.Async)

	assert.Len(t, cat.Models(ModalityCode), 5)
	assert.Equal(t, []Modality{Modality3D, ModalityAudio, ModalityChat, ModalityCode, ModalityImage}, cat.Modalities())

	_, err = cat.Lookup("video", "x")
	assert.True(t, types.IsConfigurationError(err))
}
