// Package providers 厂商 HTTP 调用的公共部分：请求构造、错误映射与 JSON 解码。
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/BaSui01/assetflow/types"
)

// maxErrorBody 错误响应最多读取的字节数
const maxErrorBody = 64 << 10

// MapHTTPError 将 HTTP 状态码映射为 *types.Error，消息中包含状态码
func MapHTTPError(status int, msg string, provider string) *types.Error {
	message := fmt.Sprintf("%s returned HTTP %d", provider, status)
	if msg = strings.TrimSpace(msg); msg != "" {
		message += ": " + msg
	}
	e := &types.Error{Message: message, HTTPStatus: status, Provider: provider}

	switch status {
	case http.StatusUnauthorized:
		e.Code = types.ErrUnauthorized
	case http.StatusForbidden:
		e.Code = types.ErrForbidden
	case http.StatusTooManyRequests:
		e.Code = types.ErrRateLimited
		e.Retryable = true
	case http.StatusPaymentRequired:
		e.Code = types.ErrQuotaExceeded
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") || strings.Contains(lower, "balance") {
			e.Code = types.ErrQuotaExceeded
		} else {
			e.Code = types.ErrUpstreamError
		}
	case http.StatusServiceUnavailable:
		e.Code = types.ErrServiceUnavailable
		e.Retryable = true
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		e.Code = types.ErrUpstreamError
		e.Retryable = true
	case 529: // 部分厂商用于模型过载
		e.Code = types.ErrModelOverloaded
		e.Retryable = true
	default:
		e.Code = types.ErrUpstreamError
		e.Retryable = status >= 500
	}
	return e
}

// ReadErrorMessage 读取错误响应体，优先取 JSON 中的 error.message / message 字段
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error json.RawMessage `json:"error"`
		Msg   string          `json:"message"`
	}
	if json.Unmarshal(data, &errResp) == nil {
		var nested struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if len(errResp.Error) > 0 && json.Unmarshal(errResp.Error, &nested) == nil && nested.Message != "" {
			if nested.Type != "" {
				return fmt.Sprintf("%s (type: %s)", nested.Message, nested.Type)
			}
			return nested.Message
		}
		var plain string
		if len(errResp.Error) > 0 && json.Unmarshal(errResp.Error, &plain) == nil && plain != "" {
			return plain
		}
		if errResp.Msg != "" {
			return errResp.Msg
		}
	}
	return strings.TrimSpace(string(data))
}

// TransportError 将请求发送阶段的错误映射为 *types.Error
func TransportError(err error, provider string) *types.Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return types.Errorf(types.ErrUpstreamTimeout, "%s call timed out", provider).
			WithProvider(provider).WithCause(err)
	case errors.Is(err, context.Canceled):
		return types.Errorf(types.ErrCancelled, "%s call cancelled", provider).
			WithProvider(provider).WithCause(err)
	default:
		return types.Errorf(types.ErrUpstreamError, "%s request failed", provider).
			WithProvider(provider).WithRetryable(true).WithCause(err)
	}
}

// MalformedResponse 响应无法解析
func MalformedResponse(provider string, cause error) *types.Error {
	return types.Errorf(types.ErrMalformedResponse, "%s returned a malformed response", provider).
		WithProvider(provider).WithCause(cause)
}

// EmptyResult 响应合法但没有可用结果
func EmptyResult(provider, what string) *types.Error {
	return types.Errorf(types.ErrEmptyResult, "%s returned no %s", provider, what).WithProvider(provider)
}

// NewJSONRequest 构造带 JSON body 的请求，body 为 nil 时不带 body
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// SetBearer 设置 Bearer 鉴权头
func SetBearer(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

// DoJSON 发送请求并把 2xx 响应解码到 out；其余情况返回 *types.Error
func DoJSON(client *http.Client, req *http.Request, provider string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return TransportError(err, provider)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return MapHTTPError(resp.StatusCode, ReadErrorMessage(resp.Body), provider)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if req.Context().Err() != nil {
			return TransportError(req.Context().Err(), provider)
		}
		return MalformedResponse(provider, err)
	}
	return nil
}

// JoinURL 拼接 base 与 path，去掉多余的斜杠
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
