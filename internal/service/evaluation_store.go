package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/repository"
	"edtech_eval_backend/internal/util"
	"edtech_eval_backend/pkg/logger"
	"edtech_eval_backend/pkg/monitoring"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EvaluationRepository evaluations 集合的整文档读写
type EvaluationRepository interface {
	Insert(ctx context.Context, rec *model.EvaluationRecord) error
	FindByID(ctx context.Context, evalID string) (*model.EvaluationRecord, error)
	FindByStudent(ctx context.Context, studentID string) ([]model.EvaluationRecord, error)
}

// SleepFunc 可替换的等待函数，ctx 取消时提前返回
type SleepFunc func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EvaluationStore 写入带指数退避重试，读取失败降级为空结果
type EvaluationStore struct {
	repo        EvaluationRepository
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
}

func NewEvaluationStore(repo EvaluationRepository, cfg config.PersistenceConfig) *EvaluationStore {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &EvaluationStore{
		repo:        repo,
		maxAttempts: attempts,
		baseDelay:   cfg.BaseDelay(),
		sleep:       contextSleep,
	}
}

// WithSleep 测试中替换等待函数
func (s *EvaluationStore) WithSleep(fn SleepFunc) *EvaluationStore {
	if fn != nil {
		s.sleep = fn
	}
	return s
}

// Save 瞬时错误最多尝试 maxAttempts 次，每次间隔翻倍；最终失败返回 PersistenceError
func (s *EvaluationStore) Save(ctx context.Context, rec *model.EvaluationRecord) error {
	doc := rec.Clone()
	delay := s.baseDelay

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.repo.Insert(ctx, doc)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			break
		}
		if attempt == s.maxAttempts {
			break
		}

		logger.Log.Warn("Evaluation save failed, retrying",
			zap.String("eval_id", rec.EvalID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if serr := s.sleep(ctx, delay); serr != nil {
			err = serr
			break
		}
		delay *= 2
	}

	monitoring.PersistFailures.Inc()
	return util.NewPersistenceError(fmt.Sprintf("failed to save evaluation %s", rec.EvalID), err)
}

// FindByID 不存在或存储不可用时返回 false
func (s *EvaluationStore) FindByID(ctx context.Context, evalID string) (*model.EvaluationRecord, bool) {
	rec, err := s.repo.FindByID(ctx, evalID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Log.Warn("Evaluation lookup failed",
				zap.String("eval_id", evalID),
				zap.Error(err),
			)
		}
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	return rec.Clone(), true
}

// FindByStudent 存储不可用时返回空列表
func (s *EvaluationStore) FindByStudent(ctx context.Context, studentID string) []model.EvaluationRecord {
	recs, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		logger.Log.Warn("Student evaluations lookup failed",
			zap.String("student_id", studentID),
			zap.Error(err),
		)
		return []model.EvaluationRecord{}
	}

	out := make([]model.EvaluationRecord, 0, len(recs))
	for i := range recs {
		out = append(out, *recs[i].Clone())
	}
	return out
}

// isTransient 连接类错误可重试，数据类错误直接失败
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"too many connections",
		"server has gone away",
		"invalid connection",
		"deadlock",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
