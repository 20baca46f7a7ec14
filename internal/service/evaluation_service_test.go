package service

import (
	"context"
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/util"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	deadlockRef     = "Deadlock occurs when processes wait circularly"
	deadlockStudent = "Processes wait for each other in a cycle"
)

type evalFixture struct {
	svc      *EvaluationService
	evalRepo *fakeEvalRepo
	embedder *fakeEmbedder
}

func newEvalFixture(embedder *fakeEmbedder, papers ...*model.QuestionPaper) *evalFixture {
	if embedder == nil {
		embedder = &fakeEmbedder{vectors: map[string]Embedding{}}
	}
	evalRepo := newFakeEvalRepo()
	var delays []time.Duration
	store := NewEvaluationStore(evalRepo, testPersistence()).WithSleep(noSleep(&delays))
	papersSvc := NewPaperService(newFakePaperRepo(papers...), nil, 0)
	return &evalFixture{
		svc:      NewEvaluationService(papersSvc, store, embedder, nil, DefaultScoringPolicy()),
		evalRepo: evalRepo,
		embedder: embedder,
	}
}

func subjectivePaper(marks float64) *model.QuestionPaper {
	return &model.QuestionPaper{
		ID:    "os-1",
		Title: "Operating Systems",
		Questions: []model.Question{
			{Index: 1, Text: "Explain deadlock.", Type: "Short", Marks: marks, Answer: deadlockRef},
		},
	}
}

func similarityEmbedder(student string, sim float64) *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string]Embedding{
		student:     vecForSimilarity(sim),
		deadlockRef: {1, 0},
	}}
}

func TestEvaluateMCQPrefixedAnswer(t *testing.T) {
	paper := &model.QuestionPaper{
		ID:    "mcq-1",
		Title: "Quiz",
		Questions: []model.Question{
			{Index: 1, Text: "Pick one", Type: "MCQ", Marks: 1, Answer: "A"},
		},
	}
	f := newEvalFixture(nil, paper)

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		StudentID: "s1",
		PaperID:   "mcq-1",
		Answers:   []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "a) option text"}},
	})

	require.NoError(t, err)
	require.Len(t, rec.Details, 1)
	d := rec.Details[0]
	assert.Equal(t, 1.0, d.ScoreAwarded)
	assert.Equal(t, FeedbackCorrect, d.Feedback)
	assert.Equal(t, model.MethodRule, d.Method)
	assert.Nil(t, d.Similarity)
	assert.Equal(t, 0, f.embedder.calls)
}

func TestEvaluateSubjectiveExcellent(t *testing.T) {
	f := newEvalFixture(similarityEmbedder(deadlockStudent, 0.9), subjectivePaper(10))

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		StudentID: "s1",
		PaperID:   "os-1",
		Answers:   []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: deadlockStudent}},
	})

	require.NoError(t, err)
	d := rec.Details[0]
	assert.Equal(t, 10.0, d.ScoreAwarded)
	assert.Equal(t, FeedbackExcellent, d.Feedback)
	assert.Equal(t, model.MethodEmbedding, d.Method)
	require.NotNil(t, d.Similarity)
	assert.Equal(t, 0.9, *d.Similarity)
	assert.Equal(t, 100.0, rec.Percentage)
}

func TestEvaluateSubjectivePartial(t *testing.T) {
	f := newEvalFixture(similarityEmbedder(deadlockStudent, 0.72), subjectivePaper(10))

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		PaperID: "os-1",
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: deadlockStudent}},
	})

	require.NoError(t, err)
	d := rec.Details[0]
	assert.Equal(t, 6.0, d.ScoreAwarded)
	assert.Equal(t, FeedbackPartial, d.Feedback)
	assert.Equal(t, 0.72, *d.Similarity)
	assert.Equal(t, util.AnonymousStudentID, rec.StudentID)
}

func TestEvaluateBatchPanicFallsBack(t *testing.T) {
	f := newEvalFixture(&fakeEmbedder{panics: true}, subjectivePaper(10))

	var rec *model.EvaluationRecord
	var err error
	require.NotPanics(t, func() {
		rec, err = f.svc.Evaluate(context.Background(), &EvaluateRequest{
			PaperID: "os-1",
			Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "deadlock circular wait"}},
		})
	})

	require.NoError(t, err)
	d := rec.Details[0]
	assert.Equal(t, 7.0, d.ScoreAwarded)
	assert.Contains(t, d.Feedback, "fallback")
	assert.Equal(t, model.MethodFallback, d.Method)
	assert.Nil(t, d.Similarity)
	assert.Equal(t, 1, f.evalRepo.inserts)
}

func TestEvaluateNullEmbeddingsFallBack(t *testing.T) {
	f := newEvalFixture(&fakeEmbedder{vectors: map[string]Embedding{deadlockRef: {1, 0}}}, subjectivePaper(10))

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		PaperID: "os-1",
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "deadlock circular wait"}},
	})

	require.NoError(t, err)
	assert.Equal(t, 7.0, rec.Details[0].ScoreAwarded)
	assert.Equal(t, FeedbackFallbackPartial, rec.Details[0].Feedback)
}

func TestEvaluatePaperNotFound(t *testing.T) {
	f := newEvalFixture(nil)

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		PaperID: "missing",
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "A"}},
	})

	assert.Nil(t, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrNotFound))
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
	assert.Equal(t, 0, f.evalRepo.inserts)
}

func TestEvaluateIntakeValidation(t *testing.T) {
	f := newEvalFixture(nil, subjectivePaper(10))
	answers := []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "x"}}

	cases := map[string]*EvaluateRequest{
		"neither paper nor id": {Answers: answers},
		"both paper and id":    {PaperID: "os-1", Paper: subjectivePaper(10), Answers: answers},
		"no answers":           {PaperID: "os-1"},
		"only invalid q_index": {PaperID: "os-1", Answers: []model.SubmittedAnswer{{QIndex: 0, StudentAnswer: "A"}, {QIndex: -2, StudentAnswer: "B"}}},
		"empty paper":          {Paper: &model.QuestionPaper{Title: "empty"}, Answers: answers},
		"duplicate q_index": {
			Paper: &model.QuestionPaper{Questions: []model.Question{
				{Index: 1, Type: "MCQ", Marks: 1, Answer: "A"},
				{Index: 1, Type: "MCQ", Marks: 1, Answer: "B"},
			}},
			Answers: answers,
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rec, err := f.svc.Evaluate(context.Background(), req)
			assert.Nil(t, rec)
			assert.True(t, errors.Is(err, util.ErrValidation), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.evalRepo.inserts)
}

func TestEvaluatePaperStoreOutageIsInternal(t *testing.T) {
	repo := newFakePaperRepo()
	repo.findErr = errors.New("connection refused")
	var delays []time.Duration
	svc := NewEvaluationService(
		NewPaperService(repo, nil, 0),
		NewEvaluationStore(newFakeEvalRepo(), testPersistence()).WithSleep(noSleep(&delays)),
		&fakeEmbedder{},
		nil,
		nil,
	)

	_, err := svc.Evaluate(context.Background(), &EvaluateRequest{
		PaperID: "os-1",
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "x"}},
	})
	assert.Equal(t, util.KindInternal, util.KindOf(err))
}

func mixedPaper() *model.QuestionPaper {
	return &model.QuestionPaper{
		ID:    "mixed",
		Title: "Mixed",
		Questions: []model.Question{
			{Index: 1, Text: "q1", Type: "MCQ", Marks: 2, Answer: "B) second"},
			{Index: 2, Text: "q2", Type: "Short", Marks: 10, Answer: deadlockRef},
			{Index: 3, Text: "q3", Type: "multiple choice", Marks: 3, Answer: "C"},
			{Index: 4, Text: "q4", Type: "Long", Marks: 5, Answer: "Threads share an address space"},
		},
	}
}

func TestEvaluateMixedPaperTotals(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string]Embedding{
		deadlockStudent:                  vecForSimilarity(0.9),
		deadlockRef:                      {1, 0},
		"threads use separate memory":    vecForSimilarity(0.6),
		"Threads share an address space": {1, 0},
	}}
	f := newEvalFixture(embedder, mixedPaper())

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		StudentID: "stu-7",
		PaperID:   "mixed",
		Answers: []model.SubmittedAnswer{
			{QIndex: 4, StudentAnswer: "threads use separate memory"},
			{QIndex: 1, StudentAnswer: "b"},
			{QIndex: 2, StudentAnswer: deadlockStudent},
			{QIndex: 3, StudentAnswer: "A"},
		},
	})
	require.NoError(t, err)

	require.Len(t, rec.Details, 4)
	for i, d := range rec.Details {
		assert.Equal(t, i+1, d.QIndex, "details follow paper order")
	}
	assert.Equal(t, 2.0, rec.Details[0].ScoreAwarded)
	assert.Equal(t, 10.0, rec.Details[1].ScoreAwarded)
	assert.Equal(t, 0.0, rec.Details[2].ScoreAwarded)
	assert.Equal(t, 1.5, rec.Details[3].ScoreAwarded)

	sum := 0.0
	for _, d := range rec.Details {
		sum += d.ScoreAwarded
		assert.GreaterOrEqual(t, d.ScoreAwarded, 0.0)
		assert.LessOrEqual(t, d.ScoreAwarded, d.Marks)
	}
	assert.InDelta(t, sum, rec.TotalScore, 1e-9)
	assert.Equal(t, 20.0, rec.TotalMarks)
	assert.Equal(t, 67.5, rec.Percentage)

	// 主观题按 [学生, 参考, 学生, 参考] 交错发送，只调用一次
	require.Equal(t, 1, f.embedder.calls)
	assert.Equal(t, []string{
		deadlockStudent, deadlockRef,
		"threads use separate memory", "Threads share an address space",
	}, f.embedder.texts[0])
}

func TestEvaluateDeclaredTotalMarks(t *testing.T) {
	paper := mixedPaper()
	total := 40.0
	paper.TotalMarks = &total
	f := newEvalFixture(nil, paper)

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		PaperID: "mixed",
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "B"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0, rec.TotalMarks)
	assert.Equal(t, util.Round(100*rec.TotalScore/40, 2), rec.Percentage)
}

func TestEvaluateZeroMaxMarks(t *testing.T) {
	f := newEvalFixture(nil)
	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		Paper: &model.QuestionPaper{Questions: []model.Question{
			{Index: 1, Type: "MCQ", Marks: 0, Answer: "A"},
		}},
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "A"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.TotalMarks)
	assert.Equal(t, 0.0, rec.Percentage)
}

func TestEvaluateDuplicateAnswersLastWins(t *testing.T) {
	paper := &model.QuestionPaper{Questions: []model.Question{
		{Index: 1, Type: "MCQ", Marks: 1, Answer: "A"},
		{Index: 2, Type: "MCQ", Marks: 1, Answer: "B"},
	}}
	f := newEvalFixture(nil)

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		Paper: paper,
		Answers: []model.SubmittedAnswer{
			{QIndex: 1, StudentAnswer: "C"},
			{QIndex: 1, StudentAnswer: "A"},
			{QIndex: 0, StudentAnswer: "B"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "A", rec.Details[0].StudentAnswer)
	assert.Equal(t, 1.0, rec.Details[0].ScoreAwarded)
	assert.Equal(t, "", rec.Details[1].StudentAnswer)
	assert.Equal(t, FeedbackAnswerMissing, rec.Details[1].Feedback)
}

func TestEvaluateMalformedMarksClampedToZero(t *testing.T) {
	f := newEvalFixture(nil)
	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		Paper: &model.QuestionPaper{Questions: []model.Question{
			{Index: 1, Type: "MCQ", Marks: -5, Answer: "A"},
			{Index: 2, Type: "MCQ", Marks: 2, Answer: "A"},
		}},
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "A"}, {QIndex: 2, StudentAnswer: "A"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Details[0].Marks)
	assert.Equal(t, 0.0, rec.Details[0].ScoreAwarded)
	assert.Equal(t, 2.0, rec.TotalMarks)
}

func TestEvaluatePersistenceFailureStillReturnsRecord(t *testing.T) {
	f := newEvalFixture(nil, subjectivePaper(10))
	f.evalRepo.insertErr = []error{errors.New("Error 1062: Duplicate entry")}

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		PaperID: "os-1",
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "deadlock circular wait"}},
	})

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.EvalID)
	assert.Len(t, rec.Details, 1)
	assert.Equal(t, 1, f.evalRepo.inserts)
	assert.Empty(t, f.evalRepo.records)
}

func TestEvaluateReturnsIndependentSnapshot(t *testing.T) {
	f := newEvalFixture(similarityEmbedder(deadlockStudent, 0.9), subjectivePaper(10))

	rec, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		StudentID: "s1",
		PaperID:   "os-1",
		Answers:   []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: deadlockStudent}},
	})
	require.NoError(t, err)

	rec.Details[0].ScoreAwarded = 0
	*rec.Details[0].Similarity = 0

	stored, err := f.svc.GetEvaluation(context.Background(), rec.EvalID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stored.Details[0].ScoreAwarded)
	assert.Equal(t, 0.9, *stored.Details[0].Similarity)
}

func TestEvaluateFreshIDs(t *testing.T) {
	f := newEvalFixture(nil, subjectivePaper(10))
	req := &EvaluateRequest{
		PaperID: "os-1",
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "x"}},
	}

	a, err := f.svc.Evaluate(context.Background(), req)
	require.NoError(t, err)
	b, err := f.svc.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a.EvalID, b.EvalID)
}

func TestUpdateScoringAppliesToNewEvaluations(t *testing.T) {
	f := newEvalFixture(similarityEmbedder(deadlockStudent, 0.9), subjectivePaper(10))
	req := &EvaluateRequest{
		PaperID: "os-1",
		Answers: []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: deadlockStudent}},
	}

	cfg := f.svc.Policy().Config()
	cfg.Excellent = 0.95
	f.svc.UpdateScoring(cfg)

	rec, err := f.svc.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 6.0, rec.Details[0].ScoreAwarded)
	assert.Equal(t, FeedbackPartial, rec.Details[0].Feedback)
}

func TestEvaluateMock(t *testing.T) {
	f := newEvalFixture(similarityEmbedder(deadlockStudent, 0.9))

	result, err := f.svc.EvaluateMock(context.Background(), &MockRequest{Questions: []MockQuestion{
		{ID: "q-a", Type: "MCQ", Marks: 1, CorrectAnswer: "A", StudentAnswer: "A"},
		{Type: "mcq", Marks: 1, CorrectAnswer: "B", StudentAnswer: "C"},
		{ID: "q-c", Type: "Short", Marks: 10, CorrectAnswer: deadlockRef, StudentAnswer: deadlockStudent},
	}})

	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalQuestions)
	assert.Equal(t, 12.0, result.TotalMarks)
	assert.Equal(t, 11.0, result.TotalScore)
	assert.Equal(t, 2, result.CorrectAnswers)
	assert.Equal(t, 91.67, result.Percentage)
	assert.Equal(t, "q-a", result.QuestionResults[0].ID)
	assert.Equal(t, "2", result.QuestionResults[1].ID)
	assert.Equal(t, 0, f.evalRepo.inserts)

	_, err = f.svc.EvaluateMock(context.Background(), &MockRequest{})
	assert.True(t, errors.Is(err, util.ErrValidation))
}

func TestStudentHistoryReturnsSummaries(t *testing.T) {
	f := newEvalFixture(nil, subjectivePaper(10))
	_, err := f.svc.Evaluate(context.Background(), &EvaluateRequest{
		StudentID: "s9",
		PaperID:   "os-1",
		Answers:   []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "x"}},
	})
	require.NoError(t, err)

	history := f.svc.StudentHistory(context.Background(), "s9")
	require.Len(t, history, 1)
	assert.Nil(t, history[0].Details)
	assert.Equal(t, "os-1", history[0].PaperID)

	assert.Empty(t, f.svc.StudentHistory(context.Background(), "nobody"))
}

func TestGetEvaluationNotFound(t *testing.T) {
	f := newEvalFixture(nil)
	_, err := f.svc.GetEvaluation(context.Background(), "nope")
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
}

func TestEvaluatePersistsAfterClientDisconnect(t *testing.T) {
	paper := &model.QuestionPaper{
		ID:        "mcq-1",
		Questions: []model.Question{{Index: 1, Type: "MCQ", Marks: 1, Answer: "A"}},
	}
	f := newEvalFixture(nil, paper)
	f.evalRepo.honorCtx = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := f.svc.Evaluate(ctx, &EvaluateRequest{
		StudentID: "s1",
		PaperID:   "mcq-1",
		Answers:   []model.SubmittedAnswer{{QIndex: 1, StudentAnswer: "A"}},
	})
	require.NoError(t, err)

	assert.Empty(t, f.evalRepo.ctxErrs)
	assert.Equal(t, 1, f.evalRepo.inserts)
	assert.Contains(t, f.evalRepo.records, rec.EvalID)
}
