// Package poll 轮询异步厂商任务直到终态。
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/assetflow/types"
)

// State 一次轮询的结果状态
type State int

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result 一次轮询的结果，只能通过 Pending / Succeeded / Failed 构造
type Result[T any] struct {
	state State
	value T
	err   error
}

// Pending 任务仍在进行
func Pending[T any]() Result[T] { return Result[T]{state: StatePending} }

// Succeeded 任务完成
func Succeeded[T any](v T) Result[T] { return Result[T]{state: StateSucceeded, value: v} }

// Failed 任务终止失败
func Failed[T any](err error) Result[T] { return Result[T]{state: StateFailed, err: err} }

// State 返回状态
func (r Result[T]) State() State { return r.state }

// Func 查询一次任务状态。返回 error 表示查询本身失败，轮询立即结束；
// 任务失败用 Failed 表示。瞬时网络错误由调用方自行重试
type Func[T any] func(ctx context.Context) (Result[T], error)

// Options 轮询参数
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Provider string
}

// Until 按固定间隔查询直到成功、失败、超时或 ctx 取消。
// 第一次查询立即执行，之后每次等待 Interval
func Until[T any](ctx context.Context, opts Options, fn Func[T]) (T, error) {
	var zero T
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return zero, deadlineError(ctx, opts, attempts)
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return zero, deadlineError(ctx, opts, attempts)
		}

		attempts++
		res, err := fn(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return zero, deadlineError(ctx, opts, attempts)
			}
			return zero, err
		case res.state == StateSucceeded:
			return res.value, nil
		case res.state == StateFailed:
			if res.err == nil {
				return zero, types.Errorf(types.ErrUpstreamError, "%s task failed", opts.Provider).
					WithProvider(opts.Provider)
			}
			return zero, res.err
		}
		timer.Reset(opts.Interval)
	}
}

func deadlineError(ctx context.Context, opts Options, attempts int) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.Errorf(types.ErrUpstreamTimeout, "%s task not finished after %d polls", opts.Provider, attempts).
			WithProvider(opts.Provider).
			WithCause(ctx.Err())
	}
	return fmt.Errorf("polling %s: %w", opts.Provider, ctx.Err())
}
