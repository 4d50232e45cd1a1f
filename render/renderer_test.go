package render

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/types"
)

// fakeBlender 写一个模拟 blender 的 shell 脚本。参数位置：
// $1=-b $2=-P $3=script $4=-- $5=scene $6=output
func fakeBlender(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell based fake blender")
	}
	path := filepath.Join(t.TempDir(), "blender")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func pngFixture(t *testing.T) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	path := filepath.Join(t.TempDir(), "fixture.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path, buf.Bytes()
}

type recorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *recorder) RecordRender(status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func testConfig(blender string) config.RenderConfig {
	return config.RenderConfig{
		Enabled:       true,
		BlenderPath:   blender,
		Timeout:       5 * time.Second,
		MaxConcurrent: 1,
	}
}

func TestRenderer_Render(t *testing.T) {
	fixture, want := pngFixture(t)
	sceneCopy := filepath.Join(t.TempDir(), "scene-copy.json")
	scriptCopy := filepath.Join(t.TempDir(), "script-copy.py")
	t.Setenv("FIXTURE", fixture)
	t.Setenv("SCENE_COPY", sceneCopy)
	t.Setenv("SCRIPT_COPY", scriptCopy)

	blender := fakeBlender(t, `[ "$1" = "-b" ] || exit 9
cp "$3" "$SCRIPT_COPY"
cp "$5" "$SCENE_COPY"
cp "$FIXTURE" "$6"`)

	rec := &recorder{}
	r := NewRenderer(testConfig(blender), rec, zaptest.NewLogger(t))

	loc := [3]float64{1, 2, 3}
	got, err := r.Render(context.Background(), Scene{CubeLocation: &loc})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(sceneCopy)
	require.NoError(t, err)
	var scene map[string]any
	require.NoError(t, json.Unmarshal(raw, &scene))
	assert.Equal(t, []any{1.0, 2.0, 3.0}, scene["cube_location"])

	script, err := os.ReadFile(scriptCopy)
	require.NoError(t, err)
	assert.Equal(t, renderScript, script)

	assert.Equal(t, []string{"ok"}, rec.statuses)
}

func TestRenderer_ConfiguredScriptPath(t *testing.T) {
	fixture, _ := pngFixture(t)
	t.Setenv("FIXTURE", fixture)
	blender := fakeBlender(t, `[ "$3" = "/opt/scripts/custom.py" ] || exit 7
cp "$FIXTURE" "$6"`)

	cfg := testConfig(blender)
	cfg.ScriptPath = "/opt/scripts/custom.py"
	_, err := NewRenderer(cfg, nil, nil).Render(context.Background(), Scene{})
	require.NoError(t, err)
}

func TestRenderer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		timeout time.Duration
		want    string
	}{
		{"non-zero exit", `echo "Error: scene is broken" >&2; exit 3`, 0, "scene is broken"},
		{"no output file", `echo "rendered nothing"`, 0, "produced no image"},
		{"not a png", `echo "plain text" > "$6"`, 0, "not a PNG"},
		{"timeout", `exec sleep 5`, 100 * time.Millisecond, "timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(fakeBlender(t, tt.body))
			if tt.timeout > 0 {
				cfg.Timeout = tt.timeout
			}
			rec := &recorder{}
			_, err := NewRenderer(cfg, rec, nil).Render(context.Background(), Scene{})
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrRenderFailed), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, []string{string(types.ErrRenderFailed)}, rec.statuses)
		})
	}
}

func TestRenderer_NoisyFailureKeepsTail(t *testing.T) {
	// 约 40 KiB 的输出，最后一行是真正的错误
	body := `i=0; while [ $i -lt 2000 ]; do echo "Fra:1 Mem:12.00M | Rendering tile $i"; i=$((i+1)); done; echo "Error: out of memory" >&2; exit 1`
	_, err := NewRenderer(testConfig(fakeBlender(t, body)), nil, nil).Render(context.Background(), Scene{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error: out of memory")
	assert.Contains(t, err.Error(), "...")
	assert.NotContains(t, err.Error(), "Rendering tile 0\n")
	assert.Less(t, len(err.Error()), outputTail+256)
}

func TestTailBuffer(t *testing.T) {
	tests := []struct {
		name   string
		writes []string
		want   string
	}{
		{"empty", nil, "no output"},
		{"fits", []string{"abc", "def"}, "abcdef"},
		{"rolls over", []string{"abcd", "efgh"}, "...cdefgh"},
		{"single large write", []string{"0123456789"}, "...456789"},
		{"whitespace only", []string{"  \n"}, "no output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTailBuffer(6)
			for _, w := range tt.writes {
				n, err := b.Write([]byte(w))
				require.NoError(t, err)
				assert.Equal(t, len(w), n)
			}
			assert.Equal(t, tt.want, b.String())
			assert.LessOrEqual(t, len(b.buf), 6)
		})
	}
}

func TestRenderer_Disabled(t *testing.T) {
	cfg := testConfig("blender")
	cfg.Enabled = false
	r := NewRenderer(cfg, nil, nil)
	assert.False(t, r.Enabled())
	_, err := r.Render(context.Background(), Scene{})
	assert.True(t, types.IsConfigurationError(err))
}

func TestRenderer_InvalidScene(t *testing.T) {
	r := NewRenderer(testConfig("blender"), nil, nil)
	_, err := r.Render(context.Background(), Scene{Width: 100000, Objects: []Placement{{Name: " "}}})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	assert.Contains(t, err.Error(), "width")
	assert.Contains(t, err.Error(), "objects[0].name")
}

func TestRenderer_WaitsForSlot(t *testing.T) {
	r := NewRenderer(testConfig("blender"), nil, nil)
	require.NoError(t, r.sem.Acquire(context.Background(), 1))
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Render(ctx, Scene{})
	assert.True(t, types.IsErrorCode(err, types.ErrCancelled))
}
