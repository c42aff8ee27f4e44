package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// TaskResult 任务结果
type TaskResult struct {
	Data  interface{}
	Error error
}

// Config Worker Pool 配置
type Config struct {
	Workers int // worker 数量
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers: 8,
	}
}

// Statistics 统计信息
type Statistics struct {
	mu sync.RWMutex

	Submitted int64 // 已提交
	Completed int64 // 已完成
	Failed    int64 // 失败
}

func (s *Statistics) incSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Submitted++
}

func (s *Statistics) incCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Completed++
}

func (s *Statistics) incFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
}

func (s *Statistics) Get() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Statistics{
		Submitted: s.Submitted,
		Completed: s.Completed,
		Failed:    s.Failed,
	}
}

// Pool 固定大小的 Worker Pool（ants 封装）
type Pool struct {
	pool   *ants.Pool
	config *Config
	stats  *Statistics

	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// New 创建 Worker Pool
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	antsPool, err := ants.NewPool(config.Workers,
		ants.WithPanicHandler(func(err interface{}) {
			logger.Error("worker panic", zap.Any("error", err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		pool:   antsPool,
		config: config,
		stats:  &Statistics{},
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	default:
	}

	p.stats.incSubmitted()
	err := p.pool.Submit(func() {
		task()
		p.stats.incCompleted()
	})
	if err != nil {
		p.stats.incFailed()
	}
	return err
}

// SubmitWithResult 提交任务并获取结果
func (p *Pool) SubmitWithResult(task func() (interface{}, error)) <-chan TaskResult {
	resultCh := make(chan TaskResult, 1)

	err := p.Submit(func() {
		result, err := task()
		resultCh <- TaskResult{Data: result, Error: err}
		close(resultCh)
	})
	if err != nil {
		resultCh <- TaskResult{Error: err}
		close(resultCh)
	}

	return resultCh
}

// Running 获取运行中的 worker 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free 获取空闲 worker 数量
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Stats 获取统计信息
func (p *Pool) Stats() Statistics {
	return p.stats.Get()
}

// Shutdown 关闭
func (p *Pool) Shutdown() {
	p.cancel()
	p.pool.Release()
}
