package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/assetflow/pipeline"
	"github.com/BaSui01/assetflow/types"
)

// Recorder 归档指标
type Recorder interface {
	RecordArchive(sizeBytes int, written, placeholders int)
}

type nopRecorder struct{}

func (nopRecorder) RecordArchive(int, int, int) {}

// ReportEntry 归档中的一个文件
type ReportEntry struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Bytes  int    `json:"bytes"`
	// Failed 对应计划中的 Failure 条目
	Failed bool `json:"failed,omitempty"`
	// Placeholder 下载或解码失败后写入的占位文件
	Placeholder bool   `json:"placeholder,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Report 一次归档的结果统计
type Report struct {
	Entries      []ReportEntry `json:"entries"`
	Written      int           `json:"written"`
	Placeholders int           `json:"placeholders"`
	Size         int           `json:"size"`
}

// Assembler 把计划打包为 zip
type Assembler struct {
	fetcher  Fetcher
	layout   Layout
	recorder Recorder
	logger   *zap.Logger
}

// Option 配置 Assembler
type Option func(*Assembler)

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(a *Assembler) {
		if r != nil {
			a.recorder = r
		}
	}
}

// NewAssembler 创建归档器
func NewAssembler(fetcher Fetcher, logger *zap.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Assembler{
		fetcher:  fetcher,
		recorder: nopRecorder{},
		logger:   logger.With(zap.String("component", "archive")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble 按计划顺序写入每个条目。资源获取失败不会中断归档，
// 只有 ctx 取消或 zip 写入失败才返回错误
func (a *Assembler) Assemble(ctx context.Context, plan *pipeline.Plan) ([]byte, Report, error) {
	var (
		buf    bytes.Buffer
		report = Report{Entries: []ReportEntry{}}
	)
	zw := zip.NewWriter(&buf)
	modified := plan.CompletedAt()
	if modified.IsZero() {
		modified = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	write := func(re ReportEntry, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     re.Path,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return types.NewError(types.ErrArchiveIO, "create zip entry "+re.Path).WithCause(err)
		}
		if _, err := w.Write(data); err != nil {
			return types.NewError(types.ErrArchiveIO, "write zip entry "+re.Path).WithCause(err)
		}
		re.Bytes = len(data)
		report.Entries = append(report.Entries, re)
		if re.Placeholder {
			report.Placeholders++
		} else {
			report.Written++
		}
		return nil
	}

	for _, e := range plan.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, report, types.NewError(types.ErrCancelled, "archive cancelled").WithCause(err)
		}
		for _, f := range a.layout.Files(e) {
			data, err := a.content(ctx, e.Artifact, f)
			re := ReportEntry{Path: f.Path, Source: e.Path()}
			if _, failed := e.Artifact.(types.Failure); failed {
				re.Failed = true
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, report, types.NewError(types.ErrCancelled, "archive cancelled").WithCause(ctx.Err())
				}
				a.logger.Warn("archive entry replaced by placeholder",
					zap.String("entry", e.Path()),
					zap.String("path", f.Path),
					zap.Error(err))
				re.Path = placeholderPath(e, f)
				re.Placeholder = true
				re.Error = err.Error()
				data = []byte(err.Error() + "\n")
			}
			if err := write(re, data); err != nil {
				return nil, report, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, report, types.NewError(types.ErrArchiveIO, "finalize zip").WithCause(err)
	}
	report.Size = buf.Len()
	a.recorder.RecordArchive(report.Size, report.Written, report.Placeholders)
	a.logger.Debug("archive assembled",
		zap.String("run_id", plan.RunID()),
		zap.Int("written", report.Written),
		zap.Int("placeholders", report.Placeholders),
		zap.Int("bytes", report.Size))
	return buf.Bytes(), report, nil
}

// content 取得文件内容。返回的错误都会被转成占位文件
func (a *Assembler) content(ctx context.Context, art types.Artifact, f File) ([]byte, error) {
	switch v := art.(type) {
	case types.Text:
		return []byte(v.Body), nil
	case types.Script:
		return []byte(v.Source), nil
	case types.Failure:
		return []byte(v.Cause + "\n"), nil
	case types.ImageRef:
		data, err := a.resolve(ctx, v.Data, v.URL)
		if err != nil {
			return nil, err
		}
		return toPNG(data)
	case types.ModelRef:
		for _, mf := range v.Files {
			if mf.Format == f.Format {
				return a.resolve(ctx, mf.Data, mf.URL)
			}
		}
		return nil, types.Errorf(types.ErrArchiveIO, "no %s file in model", f.Format)
	case types.AudioRef:
		return a.resolve(ctx, v.Data, v.URL)
	default:
		return nil, types.Errorf(types.ErrArchiveIO, "unsupported artifact %T", art)
	}
}

func (a *Assembler) resolve(ctx context.Context, inline []byte, url string) ([]byte, error) {
	if len(inline) > 0 {
		return inline, nil
	}
	if url == "" {
		return nil, types.NewError(types.ErrArchiveIO, "artifact has neither data nor url")
	}
	if a.fetcher == nil {
		return nil, types.NewError(types.ErrArchiveIO, "no fetcher configured")
	}
	return a.fetcher.Fetch(ctx, url)
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// toPNG PNG 原样返回，其他可解码格式重新编码为 PNG
func toPNG(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, pngSignature) {
		return data, nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, types.NewError(types.ErrArchiveIO, "unrecognized image format").WithCause(err)
		}
		return nil, types.NewError(types.ErrArchiveIO, "decode image").WithCause(err)
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, types.Errorf(types.ErrArchiveIO, "re-encode %s as png", format).WithCause(err)
	}
	return out.Bytes(), nil
}

// placeholderPath 多格式模型按文件区分，其余使用 <name>.error.txt
func placeholderPath(e pipeline.Entry, f File) string {
	if f.Format != "" {
		return ErrorPath(f.Path)
	}
	return ErrorPath(e.Name())
}

// Filename 下载时使用的归档文件名
func Filename(plan *pipeline.Plan) string {
	return fmt.Sprintf("assetflow-%s.zip", plan.RunID())
}
