// Package spool 在队列不可用时把任务定义暂存到本地 WAL，恢复后按写入顺序重放
package spool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/tidwall/wal"

	"github.com/tiz36/ztask/internal/log"
)

// Config 暂存配置
type Config struct {
	Dir    string
	NoSync bool
}

// Entry 暂存的任务定义
type Entry struct {
	TaskID     string          `json:"task_id"`
	Code       int64           `json:"code"`
	Version    int             `json:"version"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	SpooledAt  time.Time       `json:"spooled_at"`
}

// Spool 基于 tidwall/wal 的暂存区
type Spool struct {
	mu     sync.Mutex
	cfg    Config
	log    *wal.Log
	last   uint64
	logger log.Logger
}

// Open 打开暂存目录，已有条目保留到下次重放
func Open(cfg Config, logger log.Logger) (*Spool, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("spool dir is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Spool{cfg: cfg, logger: logger}
	if err := s.open(); err != nil {
		return nil, err
	}
	s.logger.Info("spool initialized", "dir", cfg.Dir, "lastIndex", s.last)
	return s, nil
}

func (s *Spool) open() error {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create spool directory: %w", err)
	}
	opts := *wal.DefaultOptions
	opts.NoSync = s.cfg.NoSync
	l, err := wal.Open(s.cfg.Dir, &opts)
	if err != nil {
		return fmt.Errorf("open spool: %w", err)
	}
	last, err := l.LastIndex()
	if err != nil {
		_ = l.Close()
		return fmt.Errorf("read spool index: %w", err)
	}
	s.log = l
	s.last = last
	return nil
}

// Append 追加一条记录
func (s *Spool) Append(e Entry) (uint64, error) {
	if e.SpooledAt.IsZero() {
		e.SpooledAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal spool entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.log.Write(s.last+1, data); err != nil {
		return 0, fmt.Errorf("write spool entry: %w", err)
	}
	s.last++
	return s.last, nil
}

// Len 待重放条数
func (s *Spool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending()
}

func (s *Spool) pending() int {
	first, err := s.log.FirstIndex()
	if err != nil || first == 0 || s.last == 0 {
		return 0
	}
	return int(s.last - first + 1)
}

// Replay 按写入顺序交给 fn 处理
//
// 遇到第一个失败即停止，已处理的条目从头部截断；全部成功后清空暂存区。
// 无法解析的条目记录日志后跳过。
func (s *Spool) Replay(ctx context.Context, fn func(ctx context.Context, e Entry) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, err := s.log.FirstIndex()
	if err != nil {
		return 0, fmt.Errorf("read spool index: %w", err)
	}
	if first == 0 || s.last == 0 {
		return 0, nil
	}

	replayed := 0
	for i := first; i <= s.last; i++ {
		if err := ctx.Err(); err != nil {
			return replayed, s.truncate(first, i, err)
		}

		data, err := s.log.Read(i)
		if err != nil {
			return replayed, s.truncate(first, i, fmt.Errorf("read spool entry %d: %w", i, err))
		}

		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			s.logger.Warn("skip corrupt spool entry", "index", i, "error", err)
			continue
		}

		if err := fn(ctx, e); err != nil {
			return replayed, s.truncate(first, i, fmt.Errorf("replay %s: %w", e.TaskID, err))
		}
		replayed++
	}

	if err := s.reset(); err != nil {
		return replayed, err
	}
	s.logger.Info("spool replay completed", "replayed", replayed)
	return replayed, nil
}

// truncate 丢弃 index 之前已处理的条目
func (s *Spool) truncate(first, index uint64, cause error) error {
	if index > first {
		if err := s.log.TruncateFront(index); err != nil {
			s.logger.Error("failed to truncate spool", "index", index, "error", err)
		}
	}
	return cause
}

// segmentPattern WAL 段文件及截断时的临时文件
var segmentPattern = regexp.MustCompile(`^([0-9]{20}(\.START|\.END)?|TEMP)$`)

// reset TruncateFront 至少保留一条，清空时只删除 WAL 段文件后重新打开
func (s *Spool) reset() error {
	if err := s.log.Close(); err != nil {
		return fmt.Errorf("close spool: %w", err)
	}
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return fmt.Errorf("clear spool: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !segmentPattern.MatchString(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.Dir, e.Name())); err != nil {
			return fmt.Errorf("clear spool: %w", err)
		}
	}
	return s.open()
}

// Close 关闭
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Close()
}
