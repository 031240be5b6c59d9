package id

import (
	"context"
	"fmt"
	"time"
)

// Generator 任务编码生成器
type Generator interface {
	// NextCode 生成一个全局唯一、随时间递增的任务编码
	NextCode(ctx context.Context) (int64, error)

	// NodeID 当前节点ID
	NodeID() int64

	// Close 释放节点租约
	Close() error
}

// Config 生成器配置
type Config struct {
	Epoch    int64 // 起始时间戳（毫秒）
	NodeBits uint8 // 节点ID位数
	StepBits uint8 // 序列号位数
	NodeID   int64 // 固定节点ID（AutoNodeID=false 时生效）

	// 节点租约
	AutoNodeID bool
	NodeTTL    time.Duration
	Service    string
	Storage    Storage
}

// Storage 节点租约存储
type Storage interface {
	// RegisterNode 为 node 分配一个未被占用的节点ID
	RegisterNode(ctx context.Context, node *NodeInfo, maxNodeID int64) (int64, error)
	// RenewNode 续租
	RenewNode(ctx context.Context, nodeID int64, ttl time.Duration) error
	// ReleaseNode 释放租约
	ReleaseNode(ctx context.Context, nodeID int64) error
}

// NodeInfo 节点信息
type NodeInfo struct {
	ID        int64
	Hostname  string
	IP        string
	Service   string
	PID       int
	LastSeen  time.Time
	ExpiresAt time.Time
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Epoch:    1609459200000, // 2021-01-01 00:00:00 UTC
		NodeBits: 10,
		StepBits: 12,
		NodeTTL:  30 * time.Second,
		Service:  "ztask",
	}
}

// MaxNodeID 节点ID上限
func (c *Config) MaxNodeID() int64 {
	return int64(1)<<c.NodeBits - 1
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.NodeBits+c.StepBits > 22 {
		return fmt.Errorf("node_bits + step_bits must be <= 22")
	}
	if c.Epoch <= 0 {
		return fmt.Errorf("epoch must be positive")
	}
	if c.AutoNodeID {
		if c.Storage == nil {
			return fmt.Errorf("storage is required for auto node id")
		}
		if c.NodeTTL <= 0 {
			return fmt.Errorf("node_ttl must be positive")
		}
		return nil
	}
	if c.NodeID < 0 || c.NodeID > c.MaxNodeID() {
		return fmt.Errorf("node_id must be between 0 and %d", c.MaxNodeID())
	}
	return nil
}
