package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithJobID(ctx, "job-1")
	ctx = WithStage(ctx, "images")
	ctx = WithSubject(ctx, "studio-7")

	v, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", v)

	v, _ = RunID(ctx)
	assert.Equal(t, "run-1", v)
	v, _ = JobID(ctx)
	assert.Equal(t, "job-1", v)
	v, _ = Stage(ctx)
	assert.Equal(t, "images", v)
	v, _ = Subject(ctx)
	assert.Equal(t, "studio-7", v)
}

func TestMissingOrEmpty(t *testing.T) {
	_, ok := RunID(context.Background())
	assert.False(t, ok)

	_, ok = RunID(WithRunID(context.Background(), ""))
	assert.False(t, ok)
}
