package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
	jobIDKey     contextKey = "job_id"
	stageKey     contextKey = "stage"
	subjectKey   contextKey = "subject"
)

func with(ctx context.Context, key contextKey, v string) context.Context {
	return context.WithValue(ctx, key, v)
}

func get(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRequestID 设置 HTTP 请求 ID
func WithRequestID(ctx context.Context, id string) context.Context { return with(ctx, requestIDKey, id) }

// RequestID 获取 HTTP 请求 ID
func RequestID(ctx context.Context) (string, bool) { return get(ctx, requestIDKey) }

// WithRunID 设置流水线运行 ID
func WithRunID(ctx context.Context, id string) context.Context { return with(ctx, runIDKey, id) }

// RunID 获取流水线运行 ID
func RunID(ctx context.Context) (string, bool) { return get(ctx, runIDKey) }

// WithJobID 设置异步任务 ID
func WithJobID(ctx context.Context, id string) context.Context { return with(ctx, jobIDKey, id) }

// JobID 获取异步任务 ID
func JobID(ctx context.Context) (string, bool) { return get(ctx, jobIDKey) }

// WithStage 设置当前阶段名
func WithStage(ctx context.Context, stage string) context.Context { return with(ctx, stageKey, stage) }

// Stage 获取当前阶段名
func Stage(ctx context.Context) (string, bool) { return get(ctx, stageKey) }

// WithSubject 设置已认证调用方（JWT sub）
func WithSubject(ctx context.Context, sub string) context.Context { return with(ctx, subjectKey, sub) }

// Subject 获取已认证调用方
func Subject(ctx context.Context) (string, bool) { return get(ctx, subjectKey) }
