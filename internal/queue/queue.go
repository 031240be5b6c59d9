// Package queue 将构建好的任务定义投递到 asynq 队列，由下游消费者提交给调度引擎
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
)

// TypeDefinition 任务定义投递类型
const TypeDefinition = "ztask:definition"

// Config 队列配置
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DialTimeout   time.Duration
	Queue         string        // 目标队列名
	RetryMax      int           // 消费端最大重试次数
	Retention     time.Duration // 完成后保留时间，保留期内同一 TaskID 视为重复
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:   "localhost:6379",
		RedisDB:     1,
		DialTimeout: 5 * time.Second,
		Queue:       "default",
		RetryMax:    3,
		Retention:   24 * time.Hour,
	}
}

// Queue 基于 asynq 的投递端
type Queue struct {
	client   *asynq.Client
	config   *Config
	redisOpt asynq.RedisClientOpt
	stats    *Stats
}

// New 创建队列
func New(cfg *Config) (*Queue, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("queue redis addr is required")
	}
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: cfg.DialTimeout,
	}

	return &Queue{
		client:   asynq.NewClient(redisOpt),
		config:   cfg,
		redisOpt: redisOpt,
		stats:    &Stats{},
	}, nil
}

// DefinitionPayload 任务载荷
type DefinitionPayload struct {
	TaskID     string          `json:"task_id"`
	Code       int64           `json:"code"`
	Version    int             `json:"version"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  time.Time       `json:"created_at"`
}

// EnqueueResult 投递结果
type EnqueueResult struct {
	TaskID    string
	Queue     string
	Duplicate bool
}

// TaskID 相同编码与版本的定义只投递一次
func TaskID(code int64, version int) string {
	return fmt.Sprintf("%d-%d", code, version)
}

// NewDefinitionTask 构造 asynq 任务
func NewDefinitionTask(payload *DefinitionPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if payload.TaskID == "" {
		payload.TaskID = TaskID(payload.Code, payload.Version)
	}
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	opts = append([]asynq.Option{asynq.TaskID(payload.TaskID)}, opts...)
	return asynq.NewTask(TypeDefinition, data, opts...), nil
}

// DecodeDefinition 消费端解析载荷
func DecodeDefinition(t *asynq.Task) (*DefinitionPayload, error) {
	if t.Type() != TypeDefinition {
		return nil, fmt.Errorf("unexpected task type %q", t.Type())
	}
	var payload DefinitionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return &payload, nil
}

// EnqueueDefinition 入队任务定义，同一 TaskID 重复投递时返回 Duplicate
func (q *Queue) EnqueueDefinition(ctx context.Context, payload *DefinitionPayload) (EnqueueResult, error) {
	atomic.AddInt64(&q.stats.EnqueueTotal, 1)

	task, err := NewDefinitionTask(payload,
		asynq.Queue(q.config.Queue),
		asynq.MaxRetry(q.config.RetryMax),
		asynq.Retention(q.config.Retention),
	)
	if err != nil {
		atomic.AddInt64(&q.stats.EnqueueFailed, 1)
		return EnqueueResult{}, err
	}

	res := EnqueueResult{TaskID: payload.TaskID, Queue: q.config.Queue}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			atomic.AddInt64(&q.stats.Duplicates, 1)
			res.Duplicate = true
			return res, nil
		}
		atomic.AddInt64(&q.stats.EnqueueFailed, 1)
		return EnqueueResult{}, fmt.Errorf("failed to enqueue task: %w", err)
	}

	res.Queue = info.Queue
	return res, nil
}

// RedisOpt 队列所用 redis 连接，供监控界面复用
func (q *Queue) RedisOpt() asynq.RedisClientOpt {
	return q.redisOpt
}

// Close 关闭队列
func (q *Queue) Close() error {
	return q.client.Close()
}

// Stats 队列统计信息
func (q *Queue) Stats() Stats {
	return Stats{
		EnqueueTotal:  atomic.LoadInt64(&q.stats.EnqueueTotal),
		EnqueueFailed: atomic.LoadInt64(&q.stats.EnqueueFailed),
		Duplicates:    atomic.LoadInt64(&q.stats.Duplicates),
	}
}

type Stats struct {
	EnqueueTotal  int64
	EnqueueFailed int64
	Duplicates    int64
}
