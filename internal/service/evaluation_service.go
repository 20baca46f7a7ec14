package service

import (
	"context"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/util"
	"edtech_eval_backend/pkg/logger"
	"edtech_eval_backend/pkg/monitoring"
	"edtech_eval_backend/pkg/tracing"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Embedder 批量向量化，返回与输入等长的结果，失败位置为 nil
type Embedder interface {
	Name() string
	EmbedBatch(ctx context.Context, texts []string) []Embedding
}

// EvaluateRequest 评测请求，paper_id 与 paper 二选一
type EvaluateRequest struct {
	StudentID string                  `json:"student_id"`
	PaperID   string                  `json:"paper_id"`
	Paper     *model.QuestionPaper    `json:"paper"`
	Answers   []model.SubmittedAnswer `json:"answers"`
}

// MockQuestion 模拟测验中的一道题，题目和答案一起提交
type MockQuestion struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Type          string  `json:"type"`
	Marks         float64 `json:"marks"`
	CorrectAnswer string  `json:"correct_answer"`
	StudentAnswer string  `json:"student_answer"`
}

// UnmarshalJSON marks 缺省为 1，无法解析时为 0
func (m *MockQuestion) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            json.RawMessage `json:"id"`
		Question      string          `json:"question"`
		Type          string          `json:"type"`
		Marks         json.RawMessage `json:"marks"`
		CorrectAnswer string          `json:"correct_answer"`
		Answer        string          `json:"answer"`
		StudentAnswer string          `json:"student_answer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.ID = strings.Trim(strings.TrimSpace(string(raw.ID)), `"`)
	m.Question = raw.Question
	m.Type = raw.Type
	m.CorrectAnswer = raw.CorrectAnswer
	if m.CorrectAnswer == "" {
		m.CorrectAnswer = raw.Answer
	}
	m.StudentAnswer = raw.StudentAnswer

	m.Marks = 1
	if len(raw.Marks) > 0 && string(raw.Marks) != "null" {
		marks, ok := util.ParseNumber(raw.Marks)
		if !ok || marks < 0 {
			marks = 0
		}
		m.Marks = marks
	}
	return nil
}

type MockRequest struct {
	Questions []MockQuestion `json:"questions"`
}

type MockQuestionResult struct {
	ID string `json:"id"`
	model.EvaluationDetail
}

type MockResult struct {
	TotalQuestions  int                  `json:"total_questions"`
	TotalMarks      float64              `json:"total_marks"`
	TotalScore      float64              `json:"total_score"`
	CorrectAnswers  int                  `json:"correct_answers"`
	Percentage      float64              `json:"percentage"`
	QuestionResults []MockQuestionResult `json:"question_results"`
}

// EvaluationService 单次提交的评测流程：校验、拆分、批量打分、汇总、落库
type EvaluationService struct {
	papers   *PaperService
	store    *EvaluationStore
	embedder Embedder
	archive  *ArchiveService
	policy   atomic.Pointer[ScoringPolicy]
	now      func() time.Time

	persistTimeout time.Duration
}

const defaultPersistTimeout = 30 * time.Second

func NewEvaluationService(
	papers *PaperService,
	store *EvaluationStore,
	embedder Embedder,
	archive *ArchiveService,
	policy *ScoringPolicy,
) *EvaluationService {
	if policy == nil {
		policy = DefaultScoringPolicy()
	}
	s := &EvaluationService{
		papers:   papers,
		store:    store,
		embedder: embedder,
		archive:  archive,
		now:      time.Now,

		persistTimeout: defaultPersistTimeout,
	}
	s.policy.Store(policy)
	return s
}

// UpdateScoring 配置热更新，进行中的评测继续使用旧评分表
func (s *EvaluationService) UpdateScoring(cfg config.ScoringConfig) {
	s.policy.Store(NewScoringPolicy(cfg))
	logger.Log.Info("Scoring thresholds updated",
		zap.Float64("excellent", cfg.Excellent),
		zap.Float64("partial", cfg.Partial),
		zap.Float64("attempted", cfg.Attempted),
	)
}

func (s *EvaluationService) Policy() *ScoringPolicy {
	return s.policy.Load()
}

// Evaluate 对一次提交评测并保存；保存失败只记录日志，仍返回完整记录
func (s *EvaluationService) Evaluate(ctx context.Context, req *EvaluateRequest) (rec *model.EvaluationRecord, err error) {
	ctx, span := tracing.StartSpan(ctx, "evaluation.evaluate",
		attribute.String("student_id", req.StudentID),
		attribute.String("paper_id", req.PaperID),
	)
	defer func() {
		monitoring.EvaluationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		tracing.EndSpan(span, err)
	}()

	policy := s.policy.Load()

	paper, err := s.resolvePaper(ctx, req)
	if err != nil {
		return nil, err
	}
	answers := make(map[int]string, len(req.Answers))
	for _, a := range req.Answers {
		if a.QIndex < 1 {
			continue
		}
		answers[a.QIndex] = a.StudentAnswer
	}
	if len(answers) == 0 {
		return nil, util.NewValidationError("answers must contain at least one entry with q_index >= 1")
	}

	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		studentID = util.AnonymousStudentID
	}

	logger.Log.Info("Evaluation started",
		zap.String("student_id", studentID),
		zap.String("paper_id", paper.ID),
		zap.Int("questions", len(paper.Questions)),
		zap.Int("answers", len(answers)),
	)

	details := s.scorePaper(ctx, policy, paper, answers)

	totalScore := 0.0
	for _, d := range details {
		totalScore += d.ScoreAwarded
	}
	totalScore = util.Round(totalScore, 2)
	totalMarks := paper.TotalMaxMarks()

	rec = &model.EvaluationRecord{
		EvalID:     model.GenerateUUID(),
		StudentID:  studentID,
		PaperID:    paper.ID,
		PaperTitle: paper.Title,
		Timestamp:  s.now(),
		TotalMarks: totalMarks,
		TotalScore: totalScore,
		Percentage: model.Percentage(totalScore, totalMarks),
		Details:    details,
	}

	s.persist(ctx, rec)

	logger.Log.Info("Evaluation completed",
		zap.String("eval_id", rec.EvalID),
		zap.String("student_id", studentID),
		zap.Float64("total_score", rec.TotalScore),
		zap.Float64("total_marks", rec.TotalMarks),
		zap.Float64("percentage", rec.Percentage),
	)
	return rec.Clone(), nil
}

// EvaluateMock 模拟测验评测，不落库
func (s *EvaluationService) EvaluateMock(ctx context.Context, req *MockRequest) (*MockResult, error) {
	if req == nil || len(req.Questions) == 0 {
		return nil, util.NewValidationError("questions must contain at least one entry")
	}

	paper := &model.QuestionPaper{Title: "Mock Test"}
	answers := make(map[int]string, len(req.Questions))
	for i, q := range req.Questions {
		paper.Questions = append(paper.Questions, model.Question{
			Index:  i + 1,
			Text:   q.Question,
			Type:   q.Type,
			Marks:  q.Marks,
			Answer: q.CorrectAnswer,
		})
		answers[i+1] = q.StudentAnswer
	}

	details := s.scorePaper(ctx, s.policy.Load(), paper, answers)

	result := &MockResult{
		TotalQuestions:  len(details),
		QuestionResults: make([]MockQuestionResult, 0, len(details)),
	}
	for i, d := range details {
		result.TotalMarks += d.Marks
		result.TotalScore += d.ScoreAwarded
		if d.Marks > 0 && d.ScoreAwarded == d.Marks {
			result.CorrectAnswers++
		}
		id := req.Questions[i].ID
		if id == "" {
			id = fmt.Sprintf("%d", i+1)
		}
		result.QuestionResults = append(result.QuestionResults, MockQuestionResult{ID: id, EvaluationDetail: d})
	}
	result.TotalScore = util.Round(result.TotalScore, 2)
	result.Percentage = model.Percentage(result.TotalScore, result.TotalMarks)
	return result, nil
}

// GetEvaluation 不存在或存储不可用时返回 NotFoundError
func (s *EvaluationService) GetEvaluation(ctx context.Context, evalID string) (*model.EvaluationRecord, error) {
	rec, ok := s.store.FindByID(ctx, evalID)
	if !ok {
		return nil, util.NewNotFoundError(util.ErrEvaluationNotFound.Error(), util.ErrEvaluationNotFound)
	}
	return rec, nil
}

// StudentHistory 学生历史评测摘要，不含明细
func (s *EvaluationService) StudentHistory(ctx context.Context, studentID string) []model.EvaluationRecord {
	recs := s.store.FindByStudent(ctx, studentID)
	out := make([]model.EvaluationRecord, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].Summary())
	}
	return out
}

func (s *EvaluationService) resolvePaper(ctx context.Context, req *EvaluateRequest) (*model.QuestionPaper, error) {
	paperID := strings.TrimSpace(req.PaperID)

	var paper *model.QuestionPaper
	switch {
	case paperID != "" && req.Paper != nil:
		return nil, util.NewValidationError("provide either paper_id or paper, not both")
	case req.Paper != nil:
		paper = req.Paper.Clone()
	case paperID != "":
		p, err := s.papers.GetPaper(ctx, paperID)
		if err != nil {
			return nil, err
		}
		paper = p.Clone()
	default:
		return nil, util.NewValidationError("paper_id or paper is required")
	}

	if len(paper.Questions) == 0 {
		return nil, util.NewValidationError("paper must contain at least one question")
	}
	paper.Normalize()
	if idx, dup := paper.DuplicateIndex(); dup {
		return nil, util.NewValidationError(fmt.Sprintf("duplicate q_index %d in paper", idx))
	}
	return paper, nil
}

// scorePaper 按试卷顺序生成明细：选择题立即判分，主观题合并为一次向量请求
func (s *EvaluationService) scorePaper(ctx context.Context, policy *ScoringPolicy, paper *model.QuestionPaper, answers map[int]string) []model.EvaluationDetail {
	details := make([]model.EvaluationDetail, len(paper.Questions))
	var pending []int

	for i, q := range paper.Questions {
		d := model.EvaluationDetail{
			QIndex:        q.Index,
			Question:      q.Text,
			Type:          q.Type,
			Marks:         q.Marks,
			StudentAnswer: answers[q.Index],
			CorrectAnswer: q.Answer,
		}
		if model.IsObjectiveType(q.Type) {
			d.ScoreAwarded, d.Feedback = policy.ScoreObjective(d.StudentAnswer, d.CorrectAnswer, d.Marks)
			d.Method = model.MethodRule
			monitoring.ScoredAnswers.WithLabelValues(model.MethodRule).Inc()
		} else {
			pending = append(pending, i)
		}
		details[i] = d
	}

	if len(pending) > 0 {
		s.scoreSubjective(ctx, policy, details, pending)
	}
	return details
}

func (s *EvaluationService) scoreSubjective(ctx context.Context, policy *ScoringPolicy, details []model.EvaluationDetail, pending []int) {
	texts := make([]string, 0, 2*len(pending))
	for _, i := range pending {
		texts = append(texts, details[i].StudentAnswer, details[i].CorrectAnswer)
	}

	ctx, span := tracing.StartSpan(ctx, "evaluation.embed_batch",
		attribute.Int("texts", len(texts)),
	)
	vectors, err := s.embedSafely(ctx, texts)
	tracing.EndSpan(span, err)

	if err != nil {
		logger.Log.Error("Embedding batch aborted, using fallback scoring",
			zap.Int("subjective", len(pending)),
			zap.Error(err),
		)
		for _, i := range pending {
			s.applyFallback(policy, &details[i])
		}
		return
	}

	fallbacks := 0
	for k, i := range pending {
		a, b := vectorAt(vectors, 2*k), vectorAt(vectors, 2*k+1)
		d := &details[i]
		if a == nil || b == nil {
			s.applyFallback(policy, d)
			fallbacks++
			continue
		}
		sim := CosineSimilarity(a, b)
		rounded := util.Round(sim, 3)
		d.Similarity = &rounded
		d.ScoreAwarded, d.Feedback = policy.ScoreSubjective(&sim, d.Marks)
		d.Method = model.MethodEmbedding
		monitoring.ScoredAnswers.WithLabelValues(model.MethodEmbedding).Inc()
	}

	if fallbacks > 0 {
		logger.Log.Warn("Fallback scoring used for subjective answers",
			zap.Int("fallback", fallbacks),
			zap.Int("subjective", len(pending)),
		)
	}
}

func (s *EvaluationService) applyFallback(policy *ScoringPolicy, d *model.EvaluationDetail) {
	d.Similarity = nil
	d.ScoreAwarded, d.Feedback = policy.ScoreFallback(d.StudentAnswer, d.CorrectAnswer, d.Marks)
	d.Method = model.MethodFallback
	monitoring.ScoredAnswers.WithLabelValues(model.MethodFallback).Inc()
}

// embedSafely 向量服务 panic 时转为错误，整批走降级评分
func (s *EvaluationService) embedSafely(ctx context.Context, texts []string) (vectors []Embedding, err error) {
	if s.embedder == nil {
		return nil, util.NewInternalError("embedding provider not configured", nil)
	}
	defer func() {
		if r := recover(); r != nil {
			vectors = nil
			err = util.NewInternalError(fmt.Sprintf("embedding batch panicked: %v", r), nil)
		}
	}()
	return s.embedder.EmbedBatch(ctx, texts), nil
}

func vectorAt(vectors []Embedding, i int) Embedding {
	if i < 0 || i >= len(vectors) {
		return nil
	}
	return vectors[i]
}

func (s *EvaluationService) persist(ctx context.Context, rec *model.EvaluationRecord) {
	if s.store == nil {
		return
	}
	// 打分已完成，客户端断开也要落库，单独限时
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "evaluation.persist", attribute.String("eval_id", rec.EvalID))
	err := s.store.Save(ctx, rec)
	tracing.EndSpan(span, err)

	if err != nil {
		logger.Log.Error("Evaluation not persisted",
			zap.String("eval_id", rec.EvalID),
			zap.String("student_id", rec.StudentID),
			zap.Error(err),
		)
		return
	}
	s.archive.ArchiveAsync(rec)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch util.KindOf(err) {
	case util.KindValidation:
		return "invalid"
	case util.KindNotFound:
		return "not_found"
	default:
		return "error"
	}
}
