package service

import (
	"context"
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/repository"
	"edtech_eval_backend/internal/util"
	"edtech_eval_backend/pkg/logger"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PaperRepository papers 集合的整文档读写
type PaperRepository interface {
	Create(ctx context.Context, paper *model.QuestionPaper) error
	FindByID(ctx context.Context, id string) (*model.QuestionPaper, error)
	ListRecent(ctx context.Context, limit int) ([]model.PaperSummary, error)
}

// PaperService 试卷读写，Redis 可选，作为读穿缓存
type PaperService struct {
	Repo  PaperRepository
	Redis *redis.Client
	TTL   time.Duration
}

func NewPaperService(repo PaperRepository, rdb *redis.Client, ttl time.Duration) *PaperService {
	return &PaperService{Repo: repo, Redis: rdb, TTL: ttl}
}

func paperCacheKey(id string) string {
	return "paper:" + id
}

// CreatePaper 生成 id、去掉重复题目并补齐总分
func (s *PaperService) CreatePaper(ctx context.Context, paper *model.QuestionPaper) (*model.QuestionPaper, error) {
	if paper == nil || len(paper.Questions) == 0 {
		return nil, util.NewValidationError("paper must contain at least one question")
	}

	p := paper.Clone()
	if strings.TrimSpace(p.ID) == "" {
		p.ID = model.GenerateUUID()
	}

	// 题干相同（忽略大小写）的题目只保留第一道
	seen := make(map[string]bool, len(p.Questions))
	kept := p.Questions[:0]
	for _, q := range p.Questions {
		key := strings.ToLower(strings.TrimSpace(q.Text))
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, q)
	}
	p.Questions = kept

	p.Normalize()
	if idx, dup := p.DuplicateIndex(); dup {
		return nil, util.NewValidationError(fmt.Sprintf("duplicate q_index %d in paper", idx))
	}
	if p.TotalMarks == nil {
		total := p.SumMarks()
		p.TotalMarks = &total
	}
	p.CreatedAt = time.Now()

	if err := s.Repo.Create(ctx, p); err != nil {
		return nil, util.NewInternalError("failed to save paper", err)
	}

	logger.Log.Info("Paper created",
		zap.String("paper_id", p.ID),
		zap.Int("questions", len(p.Questions)),
	)
	return p, nil
}

// GetPaper 不存在时返回 NotFoundError，存储故障返回 InternalError
func (s *PaperService) GetPaper(ctx context.Context, id string) (*model.QuestionPaper, error) {
	if p := s.cached(ctx, id); p != nil {
		return p, nil
	}

	p, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, util.NewNotFoundError(util.ErrPaperNotFound.Error(), util.ErrPaperNotFound)
		}
		return nil, util.NewInternalError(util.ErrStoreUnavailable.Error(), err)
	}

	s.cache(ctx, p)
	return p, nil
}

func (s *PaperService) ListPapers(ctx context.Context) ([]model.PaperSummary, error) {
	papers, err := s.Repo.ListRecent(ctx, util.RecentPapersLimit)
	if err != nil {
		return nil, util.NewInternalError(util.ErrStoreUnavailable.Error(), err)
	}
	return papers, nil
}

func (s *PaperService) cached(ctx context.Context, id string) *model.QuestionPaper {
	if s.Redis == nil {
		return nil
	}
	val, err := s.Redis.Get(ctx, paperCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("Paper cache read failed", zap.String("paper_id", id), zap.Error(err))
		}
		return nil
	}
	var p model.QuestionPaper
	if err := json.Unmarshal(val, &p); err != nil {
		return nil
	}
	return &p
}

func (s *PaperService) cache(ctx context.Context, p *model.QuestionPaper) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, paperCacheKey(p.ID), data, s.TTL).Err(); err != nil {
		logger.Log.Warn("Paper cache write failed", zap.String("paper_id", p.ID), zap.Error(err))
	}
}
