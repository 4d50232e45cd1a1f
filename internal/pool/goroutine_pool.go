// Package pool 提供有界的后台任务池，供异步生成任务使用。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task 一个后台工作单元
type Task func(ctx context.Context) error

// Config 任务池配置
type Config struct {
	Workers   int
	QueueSize int
	// 单个任务的最长执行时间，0 表示不限制
	TaskTimeout time.Duration
	Logger      *zap.Logger
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 64,
	}
}

// GoroutinePool 固定数量 worker 加有界队列
type GoroutinePool struct {
	cfg    Config
	logger *zap.Logger

	queue chan Task
	// 池级 context，Close 时取消正在执行的任务
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// NewGoroutinePool 创建并启动任务池
func NewGoroutinePool(cfg Config) *GoroutinePool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &GoroutinePool{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "pool")),
		queue:  make(chan Task, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit 非阻塞提交，队列满时返回 ErrPoolFull
func (p *GoroutinePool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *GoroutinePool) worker(id int) {
	defer p.wg.Done()
	for task := range p.queue {
		p.active.Add(1)
		err := p.execute(task)
		p.active.Add(-1)

		if err != nil {
			p.failed.Add(1)
			p.logger.Debug("task failed", zap.Int("worker", id), zap.Error(err))
		} else {
			p.completed.Add(1)
		}
	}
}

func (p *GoroutinePool) execute(task Task) (err error) {
	ctx := p.ctx
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// Close 停止接收任务。drain 为 true 时执行完队列中的任务，
// 否则取消正在运行的任务并丢弃队列
func (p *GoroutinePool) Close(drain bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if !drain {
		p.cancel()
	}
	close(p.queue)
	p.mu.Unlock()

	if !drain {
		for range p.queue {
			p.rejected.Add(1)
		}
	}
	p.wg.Wait()
	p.cancel()
}

// Stats 运行统计
func (p *GoroutinePool) Stats() Stats {
	return Stats{
		Workers:   p.cfg.Workers,
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Stats 任务池统计
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
