package service

import (
	"context"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/repository"
	"math"
	"sync"
	"time"
)

// fakeEmbedder 按文本查表返回向量，未登记的文本返回 nil
type fakeEmbedder struct {
	vectors map[string]Embedding
	panics  bool
	calls   int
	texts   [][]string
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) []Embedding {
	f.calls++
	f.texts = append(f.texts, texts)
	if f.panics {
		panic("provider exploded")
	}
	out := make([]Embedding, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out
}

// vecForSimilarity 与 (1,0) 的余弦相似度为 s（浮点误差内）
func vecForSimilarity(s float64) Embedding {
	return Embedding{s, math.Sqrt(1 - s*s)}
}

type fakePaperRepo struct {
	mu      sync.Mutex
	papers  map[string]*model.QuestionPaper
	findErr error
	created []*model.QuestionPaper
}

func newFakePaperRepo(papers ...*model.QuestionPaper) *fakePaperRepo {
	r := &fakePaperRepo{papers: map[string]*model.QuestionPaper{}}
	for _, p := range papers {
		r.papers[p.ID] = p
	}
	return r
}

func (r *fakePaperRepo) Create(ctx context.Context, paper *model.QuestionPaper) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.papers[paper.ID] = paper.Clone()
	r.created = append(r.created, paper.Clone())
	return nil
}

func (r *fakePaperRepo) FindByID(ctx context.Context, id string) (*model.QuestionPaper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.papers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *fakePaperRepo) ListRecent(ctx context.Context, limit int) ([]model.PaperSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.PaperSummary{}
	for _, p := range r.papers {
		out = append(out, model.PaperSummary{ID: p.ID, Title: p.Title, QuestionCount: len(p.Questions)})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeEvalRepo struct {
	mu        sync.Mutex
	records   map[string]*model.EvaluationRecord
	insertErr []error
	inserts   int
	findErr   error
	honorCtx  bool
	ctxErrs   []error
}

func newFakeEvalRepo() *fakeEvalRepo {
	return &fakeEvalRepo{records: map[string]*model.EvaluationRecord{}}
}

func (r *fakeEvalRepo) Insert(ctx context.Context, rec *model.EvaluationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if err := ctx.Err(); r.honorCtx && err != nil {
		r.ctxErrs = append(r.ctxErrs, err)
		return err
	}
	if len(r.insertErr) > 0 {
		err := r.insertErr[0]
		r.insertErr = r.insertErr[1:]
		if err != nil {
			return err
		}
	}
	r.records[rec.EvalID] = rec
	return nil
}

func (r *fakeEvalRepo) FindByID(ctx context.Context, evalID string) (*model.EvaluationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.records[evalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (r *fakeEvalRepo) FindByStudent(ctx context.Context, studentID string) ([]model.EvaluationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := []model.EvaluationRecord{}
	for _, rec := range r.records {
		if rec.StudentID == studentID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func noSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func testPersistence() config.PersistenceConfig {
	return config.PersistenceConfig{MaxAttempts: 3, BaseDelayMS: 100}
}
