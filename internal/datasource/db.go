package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultTable 调度引擎元数据库中的数据源表
const DefaultTable = "t_ds_datasource"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// DBConfig 元数据库配置
type DBConfig struct {
	Driver       string // postgres, mysql, sqlite3
	DSN          string
	Table        string
	MaxOpenConns int
	MaxIdleConns int
}

// DBLookup 直接查询调度引擎元数据库
type DBLookup struct {
	db      *sqlx.DB
	query   string
	ownedDB bool
}

type datasourceRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	Type int    `db:"type"`
}

// NewDBLookup 打开元数据库连接
func NewDBLookup(ctx context.Context, cfg DBConfig) (*DBLookup, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("datasource dsn is required")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping metadata database: %w", err)
	}

	l, err := NewDBLookupFromDB(db, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.ownedDB = true
	return l, nil
}

// NewDBLookupFromDB 复用已有连接
func NewDBLookupFromDB(db *sqlx.DB, table string) (*DBLookup, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid datasource table name %q", table)
	}
	return &DBLookup{
		db:    db,
		query: db.Rebind(fmt.Sprintf("SELECT id, name, type FROM %s WHERE name = ?", table)),
	}, nil
}

// Lookup 按名称查询
func (l *DBLookup) Lookup(ctx context.Context, name string) (Record, error) {
	var row datasourceRow
	if err := l.db.GetContext(ctx, &row, l.query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Record{}, fmt.Errorf("query datasource %q: %w", name, err)
	}

	typeName, ok := TypeName(row.Type)
	if !ok {
		return Record{}, fmt.Errorf("datasource %q has unknown type code %d", name, row.Type)
	}
	return Record{ID: row.ID, Name: row.Name, Type: typeName}, nil
}

// Close 关闭自己打开的连接
func (l *DBLookup) Close() error {
	if l.ownedDB {
		return l.db.Close()
	}
	return nil
}
