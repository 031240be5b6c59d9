package ztask

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tiz36/ztask/internal/log"
)

// 数据源解析后端
const (
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendSQLite   = "sqlite3"
)

// Config 配置结构
type Config struct {
	Log        log.Config       `yaml:"log" json:"log"`
	Datasource DatasourceConfig `yaml:"datasource" json:"datasource"`
	ID         IDConfig         `yaml:"id" json:"id"`
	Task       TaskConfig       `yaml:"task" json:"task"`
	Queue      QueueConfig      `yaml:"queue" json:"queue"`
	Spool      SpoolConfig      `yaml:"spool" json:"spool"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
}

// DatasourceConfig 数据源解析配置
type DatasourceConfig struct {
	// Backend 解析方式: http, postgres, mysql, sqlite3
	Backend  string                   `yaml:"backend" json:"backend"`
	HTTP     DatasourceHTTPConfig     `yaml:"http" json:"http"`
	Database DatasourceDatabaseConfig `yaml:"database" json:"database"`
	Cache    DatasourceCacheConfig    `yaml:"cache" json:"cache"`
}

// DatasourceHTTPConfig 调度引擎 REST 接口
type DatasourceHTTPConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Token    string        `yaml:"token" json:"token"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// DatasourceDatabaseConfig 调度引擎元数据库
type DatasourceDatabaseConfig struct {
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	Table        string `yaml:"table" json:"table"`
}

// DatasourceCacheConfig 跨任务共享缓存，默认关闭
type DatasourceCacheConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	L1MaxCost     int64         `yaml:"l1_max_cost" json:"l1_max_cost"`
	L1NumCounters int64         `yaml:"l1_num_counters" json:"l1_num_counters"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	RedisAddr     string        `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" json:"redis_password"`
	RedisDB       int           `yaml:"redis_db" json:"redis_db"`
}

// IDConfig 任务编码生成配置
type IDConfig struct {
	NodeID      int64         `yaml:"node_id" json:"node_id"`
	Epoch       int64         `yaml:"epoch" json:"epoch"`
	AutoNodeID  bool          `yaml:"auto_node_id" json:"auto_node_id"`
	PostgresDSN string        `yaml:"postgres_dsn" json:"postgres_dsn"`
	NodeTTL     time.Duration `yaml:"node_ttl" json:"node_ttl"`
	Service     string        `yaml:"service" json:"service"`
}

// TaskConfig 任务默认值，可被单个任务的 Option 覆盖
type TaskConfig struct {
	WorkerGroup       string   `yaml:"worker_group" json:"worker_group"`
	Priority          Priority `yaml:"priority" json:"priority"`
	FailRetryTimes    int      `yaml:"fail_retry_times" json:"fail_retry_times"`
	FailRetryInterval int      `yaml:"fail_retry_interval" json:"fail_retry_interval"`
}

// QueueConfig 投递队列配置 (asynq)，Addr 为空时不投递
type QueueConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Queue    string `yaml:"queue" json:"queue"`
	RetryMax int    `yaml:"retry_max" json:"retry_max"`
}

// SpoolConfig 投递失败时的本地暂存 (WAL)
type SpoolConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
	NoSync  bool   `yaml:"no_sync" json:"no_sync"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Log: log.DefaultConfig(),
		Datasource: DatasourceConfig{
			Backend: BackendHTTP,
			HTTP: DatasourceHTTPConfig{
				Timeout: 10 * time.Second,
			},
			Database: DatasourceDatabaseConfig{
				MaxOpenConns: 5,
				MaxIdleConns: 2,
			},
			Cache: DatasourceCacheConfig{
				Enabled:       false,
				L1MaxCost:     1 << 20,
				L1NumCounters: 10 << 20,
				TTL:           5 * time.Minute,
			},
		},
		ID: IDConfig{
			NodeID:  0,
			Epoch:   1609459200000,
			NodeTTL: 30 * time.Second,
			Service: "ztask",
		},
		Task: TaskConfig{
			WorkerGroup:       DefaultWorkerGroup,
			Priority:          PriorityMedium,
			FailRetryTimes:    0,
			FailRetryInterval: DefaultFailRetryInterval,
		},
		Queue: QueueConfig{
			DB:       1,
			Queue:    "default",
			RetryMax: 3,
		},
		Spool: SpoolConfig{
			Enabled: false,
			Dir:     "data/spool",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "ztask",
		},
	}
}

// LoadConfig 从 YAML 文件加载配置
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromBytes 从字节数据加载配置
func LoadConfigFromBytes(data []byte) (Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}

	return cfg, nil
}

// Validate 验证配置并补齐默认值
func (c *Config) Validate() error {
	c.Datasource.Backend = strings.ToLower(strings.TrimSpace(c.Datasource.Backend))
	switch c.Datasource.Backend {
	case "":
		c.Datasource.Backend = BackendHTTP
		fallthrough
	case BackendHTTP:
		if c.Datasource.HTTP.Endpoint == "" {
			return invalidConfig("datasource.http.endpoint is required")
		}
	case BackendPostgres, BackendMySQL, BackendSQLite:
		if c.Datasource.Database.DSN == "" {
			return invalidConfig("datasource.database.dsn is required")
		}
	default:
		return invalidConfig(fmt.Sprintf("unknown datasource.backend %q", c.Datasource.Backend))
	}
	if c.Datasource.HTTP.Timeout <= 0 {
		c.Datasource.HTTP.Timeout = 10 * time.Second
	}
	if c.Datasource.Cache.TTL <= 0 {
		c.Datasource.Cache.TTL = 5 * time.Minute
	}

	if c.ID.AutoNodeID && c.ID.PostgresDSN == "" {
		return invalidConfig("id.postgres_dsn is required when id.auto_node_id is set")
	}
	if c.ID.Epoch <= 0 {
		c.ID.Epoch = 1609459200000
	}
	if c.ID.NodeTTL <= 0 {
		c.ID.NodeTTL = 30 * time.Second
	}
	if c.ID.Service == "" {
		c.ID.Service = "ztask"
	}

	if c.Task.WorkerGroup == "" {
		c.Task.WorkerGroup = DefaultWorkerGroup
	}
	if c.Task.Priority == "" {
		c.Task.Priority = PriorityMedium
	}
	if !c.Task.Priority.valid() {
		return invalidConfig(fmt.Sprintf("unknown task.priority %q", c.Task.Priority))
	}
	if c.Task.FailRetryTimes < 0 || c.Task.FailRetryInterval < 0 {
		return invalidConfig("task retry settings must be non-negative")
	}

	if c.Queue.Queue == "" {
		c.Queue.Queue = "default"
	}
	if c.Queue.RetryMax < 0 {
		c.Queue.RetryMax = 0
	}
	if c.Spool.Enabled && c.Spool.Dir == "" {
		c.Spool.Dir = "data/spool"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "ztask"
	}
	return nil
}

// taskDefaults 配置中的任务默认值
func (c *Config) taskDefaults() []Option {
	return []Option{
		WithWorkerGroup(c.Task.WorkerGroup),
		WithPriority(c.Task.Priority),
		WithRetry(c.Task.FailRetryTimes, c.Task.FailRetryInterval),
	}
}
