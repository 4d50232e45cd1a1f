package threed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/assetflow/types"
)

func testConfig(url string) Config {
	return Config{APIKey: "k", BaseURL: url, PollInterval: time.Millisecond, PollTimeout: time.Second}
}

func TestFormatFromURL(t *testing.T) {
	assert.Equal(t, "glb", formatFromURL("https://x/y/model.glb?sig=1"))
	assert.Equal(t, "fbx", formatFromURL("https://x/y/model.FBX"))
	assert.Equal(t, "glb", formatFromURL("https://x/y/model"))
}

func TestMeshyProvider_Convert(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/image-to-3d":
			var body meshyImageTo3DRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, strings.HasPrefix(body.ImageURL, "data:image/png;base64,"))
			assert.Equal(t, "meshy-4", body.AIModel)
			fmt.Fprint(w, `{"result":"task-1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/image-to-3d/task-1":
			if polls.Add(1) == 1 {
				fmt.Fprint(w, `{"id":"task-1","status":"IN_PROGRESS","progress":40}`)
				return
			}
			fmt.Fprint(w, `{"id":"task-1","status":"SUCCEEDED","model_urls":{"glb":"https://a/m.glb","fbx":"https://a/m.fbx","obj":"","usdz":"https://a/m.usdz"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ref, err := NewMeshyProvider(testConfig(srv.URL)).Convert(context.Background(), &Request{
		Image: types.ImageRef{Data: []byte("png"), Format: "png"},
		Model: "meshy-4",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"glb", "fbx", "usdz"}, ref.Formats())
	assert.Equal(t, "meshy", ref.Provider)
}

func TestMeshyProvider_Failed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"result":"task-2"}`)
			return
		}
		fmt.Fprint(w, `{"status":"FAILED","task_error":{"message":"bad image"}}`)
	}))
	defer srv.Close()

	_, err := NewMeshyProvider(testConfig(srv.URL)).Convert(context.Background(), &Request{Image: types.ImageRef{URL: "https://img/x.png"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad image")
}

func TestMeshyProvider_NoImage(t *testing.T) {
	_, err := NewMeshyProvider(testConfig("http://unused")).Convert(context.Background(), &Request{})
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestTripoProvider_UploadsBytes(t *testing.T) {
	var uploaded atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/openapi/upload":
			f, _, err := r.FormFile("file")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			assert.Equal(t, "jpgdata", string(data))
			uploaded.Store(true)
			fmt.Fprint(w, `{"code":0,"data":{"image_token":"tok-1"}}`)
		case "/openapi/task":
			var body tripoTaskRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "image_to_model", body.Type)
			assert.Equal(t, "tok-1", body.File.FileToken)
			assert.Equal(t, "jpg", body.File.Type)
			fmt.Fprint(w, `{"code":0,"data":{"task_id":"tt"}}`)
		case "/openapi/task/tt":
			fmt.Fprint(w, `{"code":0,"data":{"task_id":"tt","status":"success","output":{"model":"https://t/model.glb?x=1"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ref, err := NewTripoProvider(testConfig(srv.URL)).Convert(context.Background(), &Request{
		Image: types.ImageRef{Data: []byte("jpgdata"), Format: "jpeg"},
		Model: "v2.5-20250123",
	})
	require.NoError(t, err)
	assert.True(t, uploaded.Load())
	require.Len(t, ref.Files, 1)
	assert.Equal(t, "glb", ref.Files[0].Format)
}

func TestTripoProvider_EnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":2010,"message":"insufficient balance"}`)
	}))
	defer srv.Close()

	_, err := NewTripoProvider(testConfig(srv.URL)).Convert(context.Background(), &Request{Image: types.ImageRef{URL: "https://img/x.png"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2010")
}
