package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/assetflow/types"
)

func fastOpts() Options {
	return Options{Interval: time.Millisecond, Timeout: time.Second, Provider: "fake"}
}

func TestUntil_SucceedsAfterPending(t *testing.T) {
	calls := 0
	v, err := Until(context.Background(), fastOpts(), func(ctx context.Context) (Result[string], error) {
		calls++
		if calls < 3 {
			return Pending[string](), nil
		}
		return Succeeded("done"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, 3, calls)
}

func TestUntil_Failed(t *testing.T) {
	_, err := Until(context.Background(), fastOpts(), func(ctx context.Context) (Result[int], error) {
		return Failed[int](nil), nil
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))

	boom := errors.New("boom")
	_, err = Until(context.Background(), fastOpts(), func(ctx context.Context) (Result[int], error) {
		return Failed[int](boom), nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestUntil_Timeout(t *testing.T) {
	opts := fastOpts()
	opts.Timeout = 20 * time.Millisecond
	_, err := Until(context.Background(), opts, func(ctx context.Context) (Result[int], error) {
		return Pending[int](), nil
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamTimeout, types.GetErrorCode(err))
}

func TestUntil_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Until(ctx, fastOpts(), func(ctx context.Context) (Result[int], error) {
		t.Fatal("should not poll a cancelled context")
		return Pending[int](), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUntil_QueryErrorStops(t *testing.T) {
	calls := 0
	down := errors.New("down")
	_, err := Until(context.Background(), fastOpts(), func(ctx context.Context) (Result[int], error) {
		calls++
		return Result[int]{}, down
	})
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 1, calls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", Pending[int]().State().String())
	assert.Equal(t, "succeeded", Succeeded(1).State().String())
	assert.Equal(t, "failed", Failed[int](nil).State().String())
}
