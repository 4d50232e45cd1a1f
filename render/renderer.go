package render

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/types"
)

//go:embed render_script.py
var renderScript []byte

const (
	maxDimension = 4096
	// 错误信息中保留的子进程输出长度
	outputTail = 2048
)

// Placement 把场景中已有的对象移动到指定位置
type Placement struct {
	Name     string     `json:"name"`
	Location [3]float64 `json:"location"`
}

// Scene 渲染请求
type Scene struct {
	CubeLocation *[3]float64 `json:"cube_location,omitempty"`
	Objects      []Placement `json:"objects,omitempty"`
	Width        int         `json:"width,omitempty"`
	Height       int         `json:"height,omitempty"`
}

// Validate 检查分辨率和对象名
func (s Scene) Validate() error {
	var problems []string
	if s.Width < 0 || s.Width > maxDimension {
		problems = append(problems, fmt.Sprintf("width must be within 0..%d", maxDimension))
	}
	if s.Height < 0 || s.Height > maxDimension {
		problems = append(problems, fmt.Sprintf("height must be within 0..%d", maxDimension))
	}
	for i, p := range s.Objects {
		if strings.TrimSpace(p.Name) == "" {
			problems = append(problems, fmt.Sprintf("objects[%d].name is required", i))
		}
	}
	if len(problems) > 0 {
		return types.NewInvalidRequestError("invalid scene: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Recorder 渲染指标
type Recorder interface {
	RecordRender(status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRender(string, time.Duration) {}

// Renderer 调用 Blender 渲染场景
type Renderer struct {
	cfg      config.RenderConfig
	sem      *semaphore.Weighted
	recorder Recorder
	logger   *zap.Logger
}

// NewRenderer 创建渲染器。recorder 可为 nil
func NewRenderer(cfg config.RenderConfig, recorder Recorder, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Renderer{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		recorder: recorder,
		logger:   logger.With(zap.String("component", "render")),
	}
}

// Enabled 是否启用
func (r *Renderer) Enabled() bool { return r.cfg.Enabled }

// Render 渲染场景并返回 PNG
func (r *Renderer) Render(ctx context.Context, scene Scene) ([]byte, error) {
	if !r.cfg.Enabled {
		return nil, types.NewConfigurationError("render proxy is disabled")
	}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, types.NewError(types.ErrCancelled, "waiting for a render slot").WithCause(err)
	}
	defer r.sem.Release(1)

	start := time.Now()
	png, err := r.render(ctx, scene)
	status := "ok"
	if err != nil {
		status = string(types.GetErrorCode(err))
		r.logger.Warn("render failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
	} else {
		r.logger.Debug("render finished", zap.Duration("duration", time.Since(start)), zap.Int("bytes", len(png)))
	}
	r.recorder.RecordRender(status, time.Since(start))
	return png, err
}

func (r *Renderer) render(ctx context.Context, scene Scene) ([]byte, error) {
	dir, err := os.MkdirTemp("", "assetflow-render-*")
	if err != nil {
		return nil, types.NewError(types.ErrRenderFailed, "create work dir").WithCause(err)
	}
	defer os.RemoveAll(dir)

	scenePath := filepath.Join(dir, "scene.json")
	outputPath := filepath.Join(dir, "render_output.png")

	data, err := json.Marshal(scene)
	if err != nil {
		return nil, types.NewError(types.ErrRenderFailed, "encode scene").WithCause(err)
	}
	if err := os.WriteFile(scenePath, data, 0o600); err != nil {
		return nil, types.NewError(types.ErrRenderFailed, "write scene").WithCause(err)
	}

	script := r.cfg.ScriptPath
	if script == "" {
		script = filepath.Join(dir, "render_script.py")
		if err := os.WriteFile(script, renderScript, 0o600); err != nil {
			return nil, types.NewError(types.ErrRenderFailed, "write render script").WithCause(err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.cfg.BlenderPath, "-b", "-P", script, "--", scenePath, outputPath)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	out := newTailBuffer(outputTail)
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := cmd.Run()
	switch {
	case ctx.Err() != nil:
		return nil, types.NewError(types.ErrCancelled, "render cancelled").WithCause(ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return nil, types.Errorf(types.ErrRenderFailed, "blender timed out after %s", r.cfg.Timeout)
	case runErr != nil:
		return nil, types.Errorf(types.ErrRenderFailed, "blender failed: %s", out).WithCause(runErr)
	}

	img, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, types.Errorf(types.ErrRenderFailed, "blender produced no image: %s", out).WithCause(err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG\r\n\x1a\n")) {
		return nil, types.NewError(types.ErrRenderFailed, "blender output is not a PNG")
	}
	return img, nil
}

// tailBuffer 只保留子进程输出的最后 limit 字节。
// Stdout 与 Stderr 共用同一个指针，exec 保证同一时刻只有一个 goroutine 写入
type tailBuffer struct {
	limit   int
	buf     []byte
	dropped bool
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit, buf: make([]byte, 0, limit)}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= b.limit {
		b.buf = append(b.buf[:0], p[n-b.limit:]...)
		b.dropped = true
		return n, nil
	}
	if over := len(b.buf) + n - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.dropped = true
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *tailBuffer) String() string {
	s := strings.TrimSpace(string(b.buf))
	switch {
	case s == "":
		return "no output"
	case b.dropped:
		return "..." + s
	default:
		return s
	}
}
