package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestScoreObjective(t *testing.T) {
	p := DefaultScoringPolicy()

	cases := []struct {
		name     string
		student  string
		ref      string
		award    float64
		feedback string
	}{
		{"exact letter", "A", "A", 2, FeedbackCorrect},
		{"prefixed answer", "a) option text", "A", 2, FeedbackCorrect},
		{"reference prefixed", "c", "C) Preemption", 2, FeedbackCorrect},
		{"wrong letter", "B", "A", 0, FeedbackIncorrect},
		{"blank student", "  ", "A", 0, FeedbackAnswerMissing},
		{"blank reference", "A", "", 0, FeedbackAnswerMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			award, feedback := p.ScoreObjective(tc.student, tc.ref, 2)
			assert.Equal(t, tc.award, award)
			assert.Equal(t, tc.feedback, feedback)
		})
	}
}

func TestScoreObjectiveNeverFractional(t *testing.T) {
	p := DefaultScoringPolicy()
	for _, student := range []string{"A", "b", "c) x", "", "zzz", "1"} {
		award, _ := p.ScoreObjective(student, "A", 3.5)
		assert.Contains(t, []float64{0, 3.5}, award)
	}
}

func TestScoreSubjectiveBoundaries(t *testing.T) {
	p := DefaultScoringPolicy()
	const eps = 1e-9

	cases := []struct {
		sim      float64
		award    float64
		feedback string
	}{
		{0.85 + eps, 10, FeedbackExcellent},
		{0.85, 10, FeedbackExcellent},
		{0.85 - eps, 6, FeedbackPartial},
		{0.70 + eps, 6, FeedbackPartial},
		{0.70, 6, FeedbackPartial},
		{0.70 - eps, 3, FeedbackAttempted},
		{0.55 + eps, 3, FeedbackAttempted},
		{0.55, 3, FeedbackAttempted},
		{0.55 - eps, 0, FeedbackOffTopic},
		{-0.4, 0, FeedbackOffTopic},
		{1, 10, FeedbackExcellent},
	}
	for _, tc := range cases {
		award, feedback := p.ScoreSubjective(ptr(tc.sim), 10)
		assert.Equal(t, tc.award, award, "similarity %v", tc.sim)
		assert.Equal(t, tc.feedback, feedback, "similarity %v", tc.sim)
	}
}

func TestScoreSubjectiveRoundsPartialAwards(t *testing.T) {
	p := DefaultScoringPolicy()

	award, _ := p.ScoreSubjective(ptr(0.75), 7)
	assert.Equal(t, 4.2, award)

	award, _ = p.ScoreSubjective(ptr(0.6), 3.33)
	assert.Equal(t, 1.0, award)
}

func TestScoreSubjectiveNilSimilarity(t *testing.T) {
	award, feedback := DefaultScoringPolicy().ScoreSubjective(nil, 10)
	assert.Equal(t, 0.0, award)
	assert.Equal(t, FeedbackEmbeddingFailed, feedback)
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Deadlock occurs when processes wait circularly")
	assert.Len(t, tokens, 5)
	for _, want := range []string{"deadlock", "occur", "process", "wait", "circular"} {
		assert.Contains(t, tokens, want)
	}

	assert.Contains(t, Tokenize("class"), "class")
	assert.Contains(t, Tokenize("uses"), "use")
	assert.Empty(t, Tokenize("the of and"))
}

func TestOverlapRatioClamped(t *testing.T) {
	ref := Tokenize("alpha beta")
	student := Tokenize("alpha alpha alpha beta beta gamma")
	assert.Equal(t, 1.0, OverlapRatio(student, ref))
	assert.Equal(t, 0.0, OverlapRatio(student, map[string]struct{}{}))
}

func TestScoreFallback(t *testing.T) {
	p := DefaultScoringPolicy()

	t.Run("high overlap", func(t *testing.T) {
		award, feedback := p.ScoreFallback("deadlock circular wait", "deadlock occurs when processes wait circularly", 10)
		assert.Equal(t, 7.0, award)
		assert.Equal(t, FeedbackFallbackPartial, feedback)
		assert.Contains(t, feedback, "fallback")
	})

	t.Run("low overlap", func(t *testing.T) {
		award, feedback := p.ScoreFallback("deadlock happens", "deadlock occurs when processes wait circularly", 10)
		assert.Equal(t, 1.0, award)
		assert.Equal(t, FeedbackFallbackInsufficient, feedback)
	})

	t.Run("medium overlap", func(t *testing.T) {
		award, feedback := p.ScoreFallback("processes deadlock", "deadlock occurs when processes wait circularly", 10)
		assert.Equal(t, 4.0, award)
		assert.Equal(t, FeedbackFallbackAttempted, feedback)
	})

	t.Run("blank answer", func(t *testing.T) {
		award, feedback := p.ScoreFallback("   ", "deadlock", 10)
		assert.Equal(t, 0.0, award)
		assert.Equal(t, FeedbackFallbackNoAnswer, feedback)
	})

	t.Run("reference without tokens", func(t *testing.T) {
		award, feedback := p.ScoreFallback("something", "the of", 10)
		assert.Equal(t, 0.0, award)
		assert.Equal(t, FeedbackFallbackNoReference, feedback)
	})
}

func TestScoringPolicyFromConfig(t *testing.T) {
	cfg := DefaultScoringPolicy().Config()
	cfg.Excellent = 0.95
	p := NewScoringPolicy(cfg)

	award, feedback := p.ScoreSubjective(ptr(0.9), 10)
	require.Equal(t, FeedbackPartial, feedback)
	assert.Equal(t, 6.0, award)
}
