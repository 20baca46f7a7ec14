package service

import (
	"context"
	"database/sql/driver"
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/util"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id, student string) *model.EvaluationRecord {
	sim := 0.91
	return &model.EvaluationRecord{
		EvalID:     id,
		StudentID:  student,
		PaperID:    "p1",
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		TotalMarks: 10,
		TotalScore: 10,
		Percentage: 100,
		Details: []model.EvaluationDetail{
			{QIndex: 1, Marks: 10, ScoreAwarded: 10, Similarity: &sim, Feedback: FeedbackExcellent},
		},
	}
}

func TestSaveRetriesTransientErrors(t *testing.T) {
	repo := newFakeEvalRepo()
	repo.insertErr = []error{driver.ErrBadConn, errors.New("dial tcp: connection refused")}
	var delays []time.Duration
	store := NewEvaluationStore(repo, testPersistence()).WithSleep(noSleep(&delays))

	err := store.Save(context.Background(), sampleRecord("e1", "s1"))

	require.NoError(t, err)
	assert.Equal(t, 3, repo.inserts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
	assert.Contains(t, repo.records, "e1")
}

func TestSaveExhaustsRetries(t *testing.T) {
	repo := newFakeEvalRepo()
	repo.insertErr = []error{driver.ErrBadConn, driver.ErrBadConn, driver.ErrBadConn, driver.ErrBadConn}
	var delays []time.Duration
	store := NewEvaluationStore(repo, testPersistence()).WithSleep(noSleep(&delays))

	err := store.Save(context.Background(), sampleRecord("e1", "s1"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrPersistence))
	assert.True(t, errors.Is(err, driver.ErrBadConn))
	assert.Equal(t, 3, repo.inserts)
	assert.Len(t, delays, 2)
}

func TestSaveNonTransientFailsImmediately(t *testing.T) {
	repo := newFakeEvalRepo()
	repo.insertErr = []error{errors.New("Error 1062: Duplicate entry 'e1' for key 'PRIMARY'")}
	var delays []time.Duration
	store := NewEvaluationStore(repo, testPersistence()).WithSleep(noSleep(&delays))

	err := store.Save(context.Background(), sampleRecord("e1", "s1"))

	assert.Equal(t, util.KindPersistence, util.KindOf(err))
	assert.Equal(t, 1, repo.inserts)
	assert.Empty(t, delays)
}

func TestSaveStopsWhenContextCancelled(t *testing.T) {
	repo := newFakeEvalRepo()
	repo.insertErr = []error{driver.ErrBadConn, driver.ErrBadConn, driver.ErrBadConn}
	store := NewEvaluationStore(repo, testPersistence())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Save(ctx, sampleRecord("e1", "s1"))

	assert.True(t, errors.Is(err, util.ErrPersistence))
	assert.Equal(t, 1, repo.inserts)
}

func TestSaveStoresIndependentCopy(t *testing.T) {
	repo := newFakeEvalRepo()
	store := NewEvaluationStore(repo, testPersistence())
	rec := sampleRecord("e1", "s1")

	require.NoError(t, store.Save(context.Background(), rec))
	rec.Details[0].ScoreAwarded = 0

	got, ok := store.FindByID(context.Background(), "e1")
	require.True(t, ok)
	assert.Equal(t, 10.0, got.Details[0].ScoreAwarded)
}

func TestLookupsDegradeOnStoreOutage(t *testing.T) {
	repo := newFakeEvalRepo()
	repo.records["e1"] = sampleRecord("e1", "s1")
	repo.findErr = errors.New("connection refused")
	store := NewEvaluationStore(repo, testPersistence())

	rec, ok := store.FindByID(context.Background(), "e1")
	assert.False(t, ok)
	assert.Nil(t, rec)

	recs := store.FindByStudent(context.Background(), "s1")
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestFindByStudent(t *testing.T) {
	repo := newFakeEvalRepo()
	repo.records["e1"] = sampleRecord("e1", "s1")
	repo.records["e2"] = sampleRecord("e2", "s1")
	repo.records["e3"] = sampleRecord("e3", "s2")
	store := NewEvaluationStore(repo, testPersistence())

	recs := store.FindByStudent(context.Background(), "s1")
	assert.Len(t, recs, 2)

	*recs[0].Details[0].Similarity = 0
	assert.Equal(t, 0.91, *repo.records[recs[0].EvalID].Details[0].Similarity)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(driver.ErrBadConn))
	assert.True(t, isTransient(errors.New("write: broken pipe")))
	assert.True(t, isTransient(errors.New("Error 1040: Too many connections")))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(errors.New("Error 1406: Data too long")))
	assert.False(t, isTransient(nil))
}
