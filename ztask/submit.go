package ztask

import (
	"context"
	"time"

	"github.com/tiz36/ztask/internal/log"
	"github.com/tiz36/ztask/internal/queue"
	"github.com/tiz36/ztask/internal/spool"
)

const (
	outcomeEnqueued  = "enqueued"
	outcomeDuplicate = "duplicate"
	outcomeSpooled   = "spooled"
	outcomeFailed    = "failed"
)

// publisher 队列投递端
type publisher interface {
	EnqueueDefinition(ctx context.Context, payload *queue.DefinitionPayload) (queue.EnqueueResult, error)
}

// queueSubmitter 先投递队列，失败时写入暂存区
type queueSubmitter struct {
	queue   publisher
	spool   *spool.Spool
	logger  log.Logger
	metrics *metrics
	now     func() time.Time
}

func (s *queueSubmitter) Submit(ctx context.Context, def *TaskDefinition, doc []byte) (SubmitResult, error) {
	if s.queue == nil && s.spool == nil {
		return SubmitResult{}, wrapError(CodeNotConfigured, "neither queue nor spool is configured", nil)
	}

	taskID := queue.TaskID(def.Code, def.Version)
	res := SubmitResult{TaskID: taskID, At: s.now()}

	var enqueueErr error
	if s.queue != nil {
		qr, err := s.queue.EnqueueDefinition(ctx, &queue.DefinitionPayload{
			TaskID:     taskID,
			Code:       def.Code,
			Version:    def.Version,
			Name:       def.Name,
			Definition: doc,
			CreatedAt:  res.At,
		})
		if err == nil {
			res.Queue = qr.Queue
			res.Duplicate = qr.Duplicate
			if qr.Duplicate {
				s.metrics.recordSubmit(outcomeDuplicate)
				s.logger.Info("task definition already enqueued", "task_id", taskID)
			} else {
				s.metrics.recordSubmit(outcomeEnqueued)
				s.logger.Info("task definition enqueued", "task_id", taskID, "queue", qr.Queue)
			}
			return res, nil
		}
		enqueueErr = err
		s.logger.Warn("enqueue task definition failed", "task_id", taskID, "error", err)
	}

	if s.spool == nil {
		s.metrics.recordSubmit(outcomeFailed)
		return SubmitResult{}, wrapError(CodeSubmitFailed, "enqueue task definition "+taskID, enqueueErr)
	}

	if _, err := s.spool.Append(spool.Entry{
		TaskID:     taskID,
		Code:       def.Code,
		Version:    def.Version,
		Name:       def.Name,
		Definition: doc,
		SpooledAt:  res.At,
	}); err != nil {
		s.metrics.recordSubmit(outcomeFailed)
		s.logger.Error("spool task definition failed", "task_id", taskID, "error", err)
		return SubmitResult{}, wrapError(CodeSubmitFailed, "spool task definition "+taskID, err)
	}

	s.metrics.setSpoolPending(s.spool.Len())
	s.metrics.recordSubmit(outcomeSpooled)
	s.logger.Info("task definition spooled", "task_id", taskID)
	res.Spooled = true
	return res, nil
}

// replay 重新投递暂存区内容
func (s *queueSubmitter) replay(ctx context.Context) (int, error) {
	if s.spool == nil {
		return 0, wrapError(CodeNotConfigured, "spool is not configured", nil)
	}
	if s.queue == nil {
		return 0, wrapError(CodeNotConfigured, "queue is not configured", nil)
	}

	n, err := s.spool.Replay(ctx, func(ctx context.Context, e spool.Entry) error {
		qr, err := s.queue.EnqueueDefinition(ctx, &queue.DefinitionPayload{
			TaskID:     e.TaskID,
			Code:       e.Code,
			Version:    e.Version,
			Name:       e.Name,
			Definition: e.Definition,
			CreatedAt:  e.SpooledAt,
		})
		if err != nil {
			return err
		}
		if qr.Duplicate {
			s.metrics.recordSubmit(outcomeDuplicate)
		} else {
			s.metrics.recordSubmit(outcomeEnqueued)
		}
		return nil
	})
	s.metrics.setSpoolPending(s.spool.Len())
	if err != nil {
		s.logger.Warn("spool replay stopped", "replayed", n, "error", err)
		return n, wrapError(CodeSubmitFailed, "replay spool", err)
	}
	return n, nil
}
