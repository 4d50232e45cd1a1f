package archive

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/internal/tlsutil"
	"github.com/BaSui01/assetflow/types"
)

// Fetcher 下载远程资源
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher 带大小上限的 HTTP 下载，同时支持 data: URI
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher 按归档配置创建下载器
func NewHTTPFetcher(cfg config.ArchiveConfig) *HTTPFetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBytes := cfg.MaxFetchBytes
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	return &HTTPFetcher{client: tlsutil.DownloadClient(timeout, 5), maxBytes: maxBytes}
}

// WithClient 替换 HTTP 客户端（测试用）
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.client = c
	return f
}

// Fetch 失败时返回 types.ErrArchiveIO
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "data:") {
		data, err := decodeDataURI(rawURL)
		if err == nil && len(data) == 0 {
			return nil, types.NewError(types.ErrArchiveIO, "empty data uri")
		}
		return data, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, types.Errorf(types.ErrArchiveIO, "invalid url %q", rawURL).WithCause(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, types.Errorf(types.ErrArchiveIO, "fetch %s", redact(rawURL)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, types.Errorf(types.ErrArchiveIO, "fetch %s: HTTP %d", redact(rawURL), resp.StatusCode).
			WithHTTPStatus(resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, types.Errorf(types.ErrArchiveIO, "read %s", redact(rawURL)).WithCause(err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, types.Errorf(types.ErrArchiveIO, "fetch %s: larger than %d bytes", redact(rawURL), f.maxBytes)
	}
	// 空文件不是有效的图片、模型或音频
	if len(data) == 0 {
		return nil, types.Errorf(types.ErrArchiveIO, "fetch %s: empty body", redact(rawURL))
	}
	return data, nil
}

// decodeDataURI data:[<mime>][;base64],<data>
func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, types.NewError(types.ErrArchiveIO, "malformed data uri")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, types.NewError(types.ErrArchiveIO, "malformed base64 data uri").WithCause(err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, types.NewError(types.ErrArchiveIO, "malformed data uri").WithCause(err)
	}
	return []byte(s), nil
}

// redact 去掉签名 URL 的查询参数
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("%.64s", rawURL)
	}
	u.RawQuery = ""
	return u.String()
}
