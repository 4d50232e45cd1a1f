package retry

import "context"

// DoWithResultTyped 是 Retryer.DoWithResult 的泛型版本，厂商状态查询用它拿到具体的任务结构，
// 不必在每个调用点做类型断言。
func DoWithResultTyped[T any](r Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	result, err := r.DoWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	v, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}
