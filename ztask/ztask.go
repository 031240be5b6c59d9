package ztask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"github.com/tiz36/ztask/internal/datasource"
	"github.com/tiz36/ztask/internal/id"
	"github.com/tiz36/ztask/internal/log"
	"github.com/tiz36/ztask/internal/queue"
	"github.com/tiz36/ztask/internal/spool"
)

// ztask 实现 ZTask 接口
type ztask struct {
	// 数据源
	resolver DatasourceResolver
	cache    *datasource.CachedLookup
	l2       *redis.Client

	// 编码生成
	generator IdentityGenerator
	idGen     *id.Snowflake
	idStorage *id.PostgresStorage

	// 投递
	queue     *queue.Queue
	spool     *spool.Spool
	submitter *queueSubmitter

	closers []func() error

	// 配置
	config Config

	// 状态
	mu      sync.RWMutex
	closed  bool
	logger  log.Logger
	metrics *metrics
}

// New 创建新的 ztask 实例
func New(ctx context.Context, cfg Config) (ZTask, error) {
	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	z := &ztask{
		config:  cfg,
		logger:  log.New(cfg.Log).Named("ztask"),
		metrics: newMetrics(cfg.Metrics),
	}

	if err := z.initComponents(ctx); err != nil {
		_ = z.Close()
		return nil, err
	}

	z.logger.Info("ztask initialized",
		"datasource_backend", cfg.Datasource.Backend,
		"node_id", z.idGen.NodeID(),
		"queue", z.queue != nil,
		"spool", z.spool != nil)
	return z, nil
}

// initComponents 初始化所有组件
func (z *ztask) initComponents(ctx context.Context) error {
	if err := z.initResolver(ctx); err != nil {
		return err
	}
	if err := z.initGenerator(ctx); err != nil {
		return err
	}

	z.submitter = &queueSubmitter{
		logger:  z.logger.Named("submit"),
		metrics: z.metrics,
		now:     time.Now,
	}

	if z.config.Queue.Addr != "" {
		q, err := queue.New(&queue.Config{
			RedisAddr:     z.config.Queue.Addr,
			RedisPassword: z.config.Queue.Password,
			RedisDB:       z.config.Queue.DB,
			DialTimeout:   5 * time.Second,
			Queue:         z.config.Queue.Queue,
			RetryMax:      z.config.Queue.RetryMax,
			Retention:     24 * time.Hour,
		})
		if err != nil {
			return wrapError("QUEUE_INIT_FAILED", "failed to create queue", err)
		}
		z.queue = q
		z.submitter.queue = q
	}

	if z.config.Spool.Enabled {
		sp, err := spool.Open(spool.Config{
			Dir:    z.config.Spool.Dir,
			NoSync: z.config.Spool.NoSync,
		}, z.logger.Named("spool"))
		if err != nil {
			return wrapError("SPOOL_INIT_FAILED", "failed to open spool", err)
		}
		z.spool = sp
		z.submitter.spool = sp
		z.metrics.setSpoolPending(sp.Len())
	}
	return nil
}

func (z *ztask) initResolver(ctx context.Context) error {
	dsCfg := z.config.Datasource

	var lookup datasource.Lookup
	switch dsCfg.Backend {
	case BackendHTTP:
		l, err := datasource.NewHTTPLookup(datasource.HTTPConfig{
			Endpoint: dsCfg.HTTP.Endpoint,
			Token:    dsCfg.HTTP.Token,
			Timeout:  dsCfg.HTTP.Timeout,
		})
		if err != nil {
			return wrapError(CodeInvalidConfig, "failed to create datasource http lookup", err)
		}
		lookup = l
	default:
		l, err := datasource.NewDBLookup(ctx, datasource.DBConfig{
			Driver:       dsCfg.Backend,
			DSN:          dsCfg.Database.DSN,
			Table:        dsCfg.Database.Table,
			MaxOpenConns: dsCfg.Database.MaxOpenConns,
			MaxIdleConns: dsCfg.Database.MaxIdleConns,
		})
		if err != nil {
			return wrapError("DATASOURCE_INIT_FAILED", "failed to open metadata database", err)
		}
		lookup = l
		z.closers = append(z.closers, l.Close)
	}

	if dsCfg.Cache.Enabled {
		if dsCfg.Cache.RedisAddr != "" {
			z.l2 = redis.NewClient(&redis.Options{
				Addr:     dsCfg.Cache.RedisAddr,
				Password: dsCfg.Cache.RedisPassword,
				DB:       dsCfg.Cache.RedisDB,
			})
		}
		c, err := datasource.NewCachedLookup(lookup, datasource.CacheConfig{
			L1MaxCost:     dsCfg.Cache.L1MaxCost,
			L1NumCounters: dsCfg.Cache.L1NumCounters,
			TTL:           dsCfg.Cache.TTL,
		}, z.l2)
		if err != nil {
			return wrapError("DATASOURCE_INIT_FAILED", "failed to create datasource cache", err)
		}
		z.cache = c
		lookup = c
	}

	z.resolver = &lookupResolver{
		lookup:  datasource.WithAccessLog(lookup, z.logger.Named("datasource")),
		metrics: z.metrics,
	}
	return nil
}

func (z *ztask) initGenerator(ctx context.Context) error {
	idCfg := id.DefaultConfig()
	idCfg.Epoch = z.config.ID.Epoch
	idCfg.NodeID = z.config.ID.NodeID
	idCfg.NodeTTL = z.config.ID.NodeTTL
	idCfg.Service = z.config.ID.Service

	if z.config.ID.AutoNodeID {
		storage, err := id.NewPostgresStorage(ctx, z.config.ID.PostgresDSN)
		if err != nil {
			return wrapError("ID_STORAGE_INIT_FAILED", "failed to create id storage", err)
		}
		z.idStorage = storage
		idCfg.AutoNodeID = true
		idCfg.Storage = storage
	}

	gen, err := id.NewSnowflake(ctx, idCfg)
	if err != nil {
		return wrapError("ID_GEN_INIT_FAILED", "failed to create id generator", err)
	}
	z.idGen = gen
	z.generator = NewSnowflakeGenerator(gen)
	return nil
}

// NewSQLTask 创建 SQL 任务
func (z *ztask) NewSQLTask(name, datasourceName, sql string, opts ...Option) (*SQLTask, error) {
	if err := z.checkClosed(); err != nil {
		return nil, err
	}
	all := append(z.config.taskDefaults(), opts...)
	t, err := NewSQLTask(name, datasourceName, sql, z.resolver, z.generator, all...)
	if err != nil {
		return nil, err
	}
	t.metrics = z.metrics
	return t, nil
}

// Classify 实现 ZTask 接口
func (z *ztask) Classify(sql string) SQLType {
	t := ClassifySQL(sql)
	z.metrics.recordClassification(t)
	return t
}

// Define 实现 ZTask 接口
func (z *ztask) Define(ctx context.Context, task *SQLTask) (*TaskDefinition, []byte, error) {
	if err := z.checkClosed(); err != nil {
		return nil, nil, err
	}
	def, err := task.Define(ctx)
	if err != nil {
		z.logger.Warn("define task failed", "task", task.Name(), "code", ErrorCode(err), "error", err)
		return nil, nil, err
	}
	doc, err := json.Marshal(def)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal task definition: %w", err)
	}
	z.logger.Debug("task defined", "task", def.Name, "code", def.Code, "sql_type", def.TaskParams.SQLType.String())
	return def, doc, nil
}

// Submit 实现 ZTask 接口
func (z *ztask) Submit(ctx context.Context, task *SQLTask) (SubmitResult, error) {
	def, doc, err := z.Define(ctx, task)
	if err != nil {
		return SubmitResult{}, err
	}
	return z.SubmitDefinition(ctx, def, doc)
}

// SubmitDefinition 实现 ZTask 接口
func (z *ztask) SubmitDefinition(ctx context.Context, def *TaskDefinition, doc []byte) (SubmitResult, error) {
	if err := z.checkClosed(); err != nil {
		return SubmitResult{}, err
	}
	if def == nil || len(doc) == 0 {
		return SubmitResult{}, validationError("task definition is required")
	}
	return z.submitter.Submit(ctx, def, doc)
}

// ReplaySpool 实现 ZTask 接口
func (z *ztask) ReplaySpool(ctx context.Context) (int, error) {
	if err := z.checkClosed(); err != nil {
		return 0, err
	}
	return z.submitter.replay(ctx)
}

// QueueRedisOpt 队列连接配置，未配置队列时返回 false
func (z *ztask) QueueRedisOpt() (asynq.RedisClientOpt, bool) {
	if z.queue == nil {
		return asynq.RedisClientOpt{}, false
	}
	return z.queue.RedisOpt(), true
}

// Stats 返回统计快照（需要类型断言为 *ztask 才能访问）
func (z *ztask) Stats() StatsSnapshot {
	return z.metrics.snapshot()
}

// MetricsHandler 实现 ZTask 接口
func (z *ztask) MetricsHandler() http.Handler {
	if z.metrics != nil && z.metrics.exporter != nil {
		return z.metrics.exporter.Handler()
	}
	return http.NotFoundHandler()
}

// Close 关闭所有组件
func (z *ztask) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return nil
	}
	z.closed = true

	var errs []error
	if z.idGen != nil {
		if err := z.idGen.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if z.idStorage != nil {
		if err := z.idStorage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if z.queue != nil {
		if err := z.queue.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if z.spool != nil {
		if err := z.spool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if z.cache != nil {
		z.cache.Close()
	}
	if z.l2 != nil {
		if err := z.l2.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range z.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = z.logger.Sync()

	if len(errs) > 0 {
		return wrapError("CLOSE_FAILED", "failed to close components", errors.Join(errs...))
	}
	return nil
}

func (z *ztask) checkClosed() error {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if z.closed {
		return ErrClosed
	}
	return nil
}
