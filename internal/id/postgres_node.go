package id

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStorage 基于 PostgreSQL 的节点租约存储
type PostgresStorage struct {
	db      *sql.DB
	ownedDB bool
}

// NewPostgresStorage 打开连接并建表
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s, err := NewPostgresStorageFromDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownedDB = true
	return s, nil
}

// NewPostgresStorageFromDB 复用已有连接，Close 时不关闭连接
func NewPostgresStorageFromDB(ctx context.Context, db *sql.DB) (*PostgresStorage, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS ztask_nodes (
            node_id INTEGER PRIMARY KEY,
            hostname VARCHAR(255) NOT NULL,
            ip VARCHAR(50) NOT NULL,
            service VARCHAR(255) NOT NULL,
            pid INTEGER NOT NULL,
            last_seen TIMESTAMP NOT NULL,
            expires_at TIMESTAMP NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_ztask_nodes_expires ON ztask_nodes(expires_at)`,
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return nil, fmt.Errorf("failed to create node table: %w", err)
		}
	}

	return &PostgresStorage{db: db}, nil
}

// RegisterNode 清理过期租约后分配最小的空闲节点ID
func (s *PostgresStorage) RegisterNode(ctx context.Context, node *NodeInfo, maxNodeID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ztask_nodes WHERE expires_at < NOW()`); err != nil {
		return 0, fmt.Errorf("failed to cleanup expired nodes: %w", err)
	}

	var nodeID sql.NullInt64
	err = tx.QueryRowContext(ctx, `
        SELECT MIN(candidate.id)
        FROM generate_series(0, $1::bigint) AS candidate(id)
        LEFT JOIN ztask_nodes n ON n.node_id = candidate.id
        WHERE n.node_id IS NULL
    `, maxNodeID).Scan(&nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to find free node id: %w", err)
	}
	if !nodeID.Valid {
		return 0, fmt.Errorf("no available node id, max=%d", maxNodeID)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO ztask_nodes (node_id, hostname, ip, service, pid, last_seen, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, nodeID.Int64, node.Hostname, node.IP, node.Service, node.PID, node.LastSeen, node.ExpiresAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert node: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nodeID.Int64, nil
}

// RenewNode 续租，租约已过期时返回错误
func (s *PostgresStorage) RenewNode(ctx context.Context, nodeID int64, ttl time.Duration) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE ztask_nodes
        SET last_seen = NOW(), expires_at = NOW() + ($1 * INTERVAL '1 millisecond')
        WHERE node_id = $2 AND expires_at > NOW()
    `, ttl.Milliseconds(), nodeID)
	if err != nil {
		return fmt.Errorf("failed to renew node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("node not found or expired: %d", nodeID)
	}
	return nil
}

// ReleaseNode 删除租约
func (s *PostgresStorage) ReleaseNode(ctx context.Context, nodeID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ztask_nodes WHERE node_id = $1`, nodeID); err != nil {
		return fmt.Errorf("failed to release node: %w", err)
	}
	return nil
}

// Close 关闭自己打开的连接
func (s *PostgresStorage) Close() error {
	if s.ownedDB {
		return s.db.Close()
	}
	return nil
}
