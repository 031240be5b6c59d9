package id

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// NodeManager 节点ID租约管理，周期续租
type NodeManager struct {
	storage   Storage
	service   string
	ttl       time.Duration
	maxNodeID int64

	hostname string
	ip       string
	pid      int

	mu       sync.RWMutex
	nodeID   int64
	acquired bool

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewNodeManager 创建节点管理器
func NewNodeManager(storage Storage, service string, ttl time.Duration, maxNodeID int64) *NodeManager {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &NodeManager{
		storage:   storage,
		service:   service,
		ttl:       ttl,
		maxNodeID: maxNodeID,
		hostname:  hostname,
		ip:        localIP(),
		pid:       os.Getpid(),
		stopCh:    make(chan struct{}),
	}
}

// Acquire 申请节点ID
func (m *NodeManager) Acquire(ctx context.Context) (int64, error) {
	now := time.Now()
	node := &NodeInfo{
		Hostname:  m.hostname,
		IP:        m.ip,
		Service:   m.service,
		PID:       m.pid,
		LastSeen:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	nodeID, err := m.storage.RegisterNode(ctx, node, m.maxNodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to register node: %w", err)
	}

	m.mu.Lock()
	m.nodeID = nodeID
	m.acquired = true
	m.mu.Unlock()
	return nodeID, nil
}

// Renew 续租当前节点
func (m *NodeManager) Renew(ctx context.Context) error {
	m.mu.RLock()
	nodeID, acquired := m.nodeID, m.acquired
	m.mu.RUnlock()

	if !acquired {
		return fmt.Errorf("node not acquired")
	}
	return m.storage.RenewNode(ctx, nodeID, m.ttl)
}

// Start 启动续租协程，每半个 TTL 续租一次
func (m *NodeManager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.ttl / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				// 续租失败时等下一轮，租约过期前还有半个 TTL
				_ = m.Renew(ctx)
			}
		}
	}()
}

// Close 停止续租并释放节点ID
func (m *NodeManager) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()

	m.mu.Lock()
	nodeID, acquired := m.nodeID, m.acquired
	m.acquired = false
	m.mu.Unlock()

	if !acquired {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.storage.ReleaseNode(ctx, nodeID)
}

func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}
