package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/types"
)

var completedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testImage(t *testing.T, enc func(io.Writer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, img))
	return buf.Bytes()
}

func encodePNG(w io.Writer, img image.Image) error { return png.Encode(w, img) }

func encodeJPEG(w io.Writer, img image.Image) error { return jpeg.Encode(w, img, nil) }

func unzip(t *testing.T, data []byte) (names []string, files map[string][]byte, headers map[string]*zip.FileHeader) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files = map[string][]byte{}
	headers = map[string]*zip.FileHeader{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		names = append(names, f.Name)
		files[f.Name] = body
		headers[f.Name] = &f.FileHeader
	}
	return names, files, headers
}

type fakeRecorder struct {
	size, written, placeholders int
}

func (r *fakeRecorder) RecordArchive(size, written, placeholders int) {
	r.size, r.written, r.placeholders = size, written, placeholders
}

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if b, ok := m[url]; ok {
		return b, nil
	}
	return nil, types.Errorf(types.ErrArchiveIO, "fetch %s: HTTP 404", url).WithHTTPStatus(404)
}

func TestAssembler_EmptyPlan(t *testing.T) {
	rec := &fakeRecorder{}
	a := NewAssembler(mapFetcher{}, zap.NewNop(), WithRecorder(rec))

	data, report, err := a.Assemble(context.Background(), pipeline.NewPlan("r0", completedAt, nil))
	require.NoError(t, err)

	names, _, _ := unzip(t, data)
	assert.Empty(t, names)
	assert.Empty(t, report.Entries)
	assert.Equal(t, len(data), report.Size)
	assert.Equal(t, 0, rec.written)
}

func TestAssembler_RoundTrip(t *testing.T) {
	pngData := testImage(t, encodePNG)
	jpegData := testImage(t, encodeJPEG)
	glb := []byte("glTF-binary")
	fbx := []byte("Kaydara FBX")
	mp3 := []byte("ID3-audio")

	plan := pipeline.NewPlan("run-1", completedAt, []pipeline.Entry{
		{Slot: pipeline.SlotGameConcept, Artifact: types.Text{Body: "a puzzle platformer\nwith 世界"}},
		{Slot: pipeline.SlotImages, Key: "character_image_1", Artifact: types.ImageRef{URL: "https://cdn/char.png"}},
		{Slot: pipeline.SlotImages, Key: "object_image_1", Artifact: types.ImageRef{Data: jpegData, Format: "jpeg"}},
		{Slot: pipeline.SlotScripts, Key: "player_controller_1", Artifact: types.Script{Source: "class Player {}", Language: "csharp", Extension: "cs", Isolated: true}},
		{Slot: pipeline.SlotAdditional, Key: "storyline", Artifact: types.Text{Body: "chapter one"}},
		{Slot: pipeline.SlotModels, Key: "character_model_1", Artifact: types.ModelRef{
			Files: []types.ModelFile{{Format: "glb", URL: "https://cdn/m.glb"}, {Format: "fbx", Data: fbx}},
		}},
		{Slot: pipeline.ProceduralSlot(pipeline.ProceduralTerrain), Artifact: types.Script{Source: "extends Node", Extension: "gd"}},
		{Slot: pipeline.SlotMusic, Artifact: types.AudioRef{URL: "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(mp3)}},
	})

	fetcher := mapFetcher{"https://cdn/char.png": pngData, "https://cdn/m.glb": glb}
	rec := &fakeRecorder{}
	data, report, err := NewAssembler(dataURIFetcher{fetcher}, nil, WithRecorder(rec)).Assemble(context.Background(), plan)
	require.NoError(t, err)

	names, files, headers := unzip(t, data)
	assert.Equal(t, []string{
		"game_concept.txt",
		"character_image_1.png",
		"object_image_1.png",
		"player_controller_1.cs",
		"storyline.txt",
		"character_model_1.glb",
		"character_model_1.fbx",
		"procedural_terrain.gd",
		"music.mp3",
	}, names)

	assert.Equal(t, "a puzzle platformer\nwith 世界", string(files["game_concept.txt"]))
	assert.Equal(t, pngData, files["character_image_1.png"], "png copied byte-for-byte")
	assert.True(t, bytes.HasPrefix(files["object_image_1.png"], pngSignature), "jpeg re-encoded")
	decoded, err := png.Decode(bytes.NewReader(files["object_image_1.png"]))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), decoded.Bounds())
	assert.Equal(t, "class Player {}", string(files["player_controller_1.cs"]))
	assert.Equal(t, glb, files["character_model_1.glb"])
	assert.Equal(t, fbx, files["character_model_1.fbx"])
	assert.Equal(t, mp3, files["music.mp3"])

	for _, h := range headers {
		assert.True(t, h.Modified.Equal(completedAt), "%s modified %v", h.Name, h.Modified)
	}

	assert.Equal(t, 9, report.Written)
	assert.Equal(t, 0, report.Placeholders)
	assert.Equal(t, "images.character_image_1", report.Entries[1].Source)
	assert.Equal(t, len(data), rec.size)
	assert.Equal(t, 9, rec.written)
}

// dataURIFetcher 在 map 之前处理 data: URI
type dataURIFetcher struct{ next Fetcher }

func (f dataURIFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if len(url) > 5 && url[:5] == "data:" {
		return decodeDataURI(url)
	}
	return f.next.Fetch(ctx, url)
}

func TestAssembler_Deterministic(t *testing.T) {
	plan := pipeline.NewPlan("run-d", completedAt, []pipeline.Entry{
		{Slot: pipeline.SlotGameConcept, Artifact: types.Text{Body: "x"}},
		{Slot: pipeline.SlotPlot, Artifact: types.Text{Body: "y"}},
	})
	a := NewAssembler(mapFetcher{}, nil)
	first, _, err := a.Assemble(context.Background(), plan)
	require.NoError(t, err)
	second, _, err := a.Assemble(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssembler_PuzzlePlatformer(t *testing.T) {
	pngData := testImage(t, encodePNG)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData)
	}))
	defer srv.Close()

	plan := pipeline.NewPlan("run-pp", completedAt, []pipeline.Entry{
		{Slot: pipeline.SlotGameConcept, Artifact: types.Text{Body: "A puzzle platformer about light."}},
		{Slot: pipeline.SlotImages, Key: "character_image_1", Artifact: types.ImageRef{URL: srv.URL + "/img/1.png?sig=abc"}},
	})

	fetcher := NewHTTPFetcher(config.DefaultArchiveConfig())
	data, report, err := NewAssembler(fetcher, nil).Assemble(context.Background(), plan)
	require.NoError(t, err)

	names, files, _ := unzip(t, data)
	assert.Equal(t, []string{"game_concept.txt", "character_image_1.png"}, names)
	assert.Equal(t, pngData, files["character_image_1.png"])
	assert.Equal(t, 2, report.Written)
}

func TestAssembler_FailureAndPlaceholders(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/gone.png", "/gone.glb":
			http.Error(w, "gone", http.StatusNotFound)
		case "/garbage.png":
			_, _ = w.Write([]byte("not an image"))
		}
	}))
	defer srv.Close()

	plan := pipeline.NewPlan("run-f", completedAt, []pipeline.Entry{
		{Slot: pipeline.SlotGameConcept, Artifact: types.Text{Body: "concept"}},
		{Slot: pipeline.SlotImages, Key: "object_image_1", Artifact: types.NewFailure(
			types.NewError(types.ErrUpstreamError, "openai: HTTP 500: boom").WithHTTPStatus(500))},
		{Slot: pipeline.SlotImages, Key: "object_image_2", Artifact: types.ImageRef{URL: srv.URL + "/gone.png"}},
		{Slot: pipeline.SlotImages, Key: "object_image_3", Artifact: types.ImageRef{URL: srv.URL + "/garbage.png"}},
		{Slot: pipeline.SlotModels, Key: "object_model_1", Artifact: types.ModelRef{
			Files: []types.ModelFile{{Format: "glb", URL: srv.URL + "/gone.glb"}, {Format: "obj", Data: []byte("v 0 0 0")}},
		}},
	})

	rec := &fakeRecorder{}
	fetcher := NewHTTPFetcher(config.DefaultArchiveConfig())
	data, report, err := NewAssembler(fetcher, nil, WithRecorder(rec)).Assemble(context.Background(), plan)
	require.NoError(t, err)

	names, files, _ := unzip(t, data)
	assert.Equal(t, []string{
		"game_concept.txt",
		"object_image_1.error.txt",
		"object_image_2.error.txt",
		"object_image_3.error.txt",
		"object_model_1.glb.error.txt",
		"object_model_1.obj",
	}, names)
	assert.Equal(t, "concept", string(files["game_concept.txt"]))
	assert.Contains(t, string(files["object_image_1.error.txt"]), "500")
	assert.Contains(t, string(files["object_image_2.error.txt"]), "HTTP 404")
	assert.Contains(t, string(files["object_image_3.error.txt"]), "image")

	assert.Equal(t, 3, report.Written)
	assert.Equal(t, 3, report.Placeholders)
	assert.True(t, report.Entries[1].Failed)
	assert.False(t, report.Entries[1].Placeholder)
	assert.True(t, report.Entries[2].Placeholder)
	assert.NotEmpty(t, report.Entries[2].Error)
	assert.Equal(t, 3, rec.placeholders)
	assert.Equal(t, int32(3), hits.Load())
}

func TestAssembler_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan := pipeline.NewPlan("run-c", completedAt, []pipeline.Entry{
		{Slot: pipeline.SlotGameConcept, Artifact: types.Text{Body: "x"}},
	})
	_, _, err := NewAssembler(mapFetcher{}, nil).Assemble(ctx, plan)
	assert.True(t, types.IsErrorCode(err, types.ErrCancelled))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("hello"))
		case "/big":
			_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
		case "/empty":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(config.ArchiveConfig{FetchTimeout: time.Second, MaxFetchBytes: 32})
	ctx := context.Background()

	got, err := f.Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = f.Fetch(ctx, srv.URL+"/big")
	assert.True(t, types.IsErrorCode(err, types.ErrArchiveIO))
	assert.Contains(t, err.Error(), "larger than 32 bytes")

	_, err = f.Fetch(ctx, srv.URL+"/empty")
	assert.True(t, types.IsErrorCode(err, types.ErrArchiveIO))
	assert.Contains(t, err.Error(), "empty body")

	_, err = f.Fetch(ctx, "data:text/plain,")
	assert.True(t, types.IsErrorCode(err, types.ErrArchiveIO))

	_, err = f.Fetch(ctx, srv.URL+"/bad?token=secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.NotContains(t, err.Error(), "secret")

	got, err = f.Fetch(ctx, "data:text/plain,hi%20there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(got))

	got, err = f.Fetch(ctx, "data:application/octet-stream;base64,"+base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	_, err = f.Fetch(ctx, "data:nocomma")
	assert.True(t, types.IsErrorCode(err, types.ErrArchiveIO))
}

func TestLayout_Files(t *testing.T) {
	l := Layout{}
	tests := []struct {
		entry pipeline.Entry
		want  []string
	}{
		{pipeline.Entry{Slot: pipeline.SlotPlot, Artifact: types.Text{}}, []string{"plot.txt"}},
		{pipeline.Entry{Slot: pipeline.SlotScripts, Key: "ui_manager_2", Artifact: types.Script{Extension: "lua"}}, []string{"ui_manager_2.lua"}},
		{pipeline.Entry{Slot: pipeline.SlotScripts, Key: "raw", Artifact: types.Script{}}, []string{"raw.txt"}},
		{pipeline.Entry{Slot: pipeline.SlotMusic, Artifact: types.AudioRef{}}, []string{"music.mp3"}},
		{pipeline.Entry{Slot: pipeline.SlotMusic, Artifact: types.Failure{Cause: "x"}}, []string{"music.error.txt"}},
		{pipeline.Entry{Slot: pipeline.SlotModels, Key: "m", Artifact: types.ModelRef{}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.entry.Path(), func(t *testing.T) {
			got := []string{}
			for _, f := range l.Files(tt.entry) {
				got = append(got, f.Path)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
