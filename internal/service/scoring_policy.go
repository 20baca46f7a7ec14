package service

import (
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/util"
	"strings"
	"unicode"
)

// 反馈文案，下游报表按原文匹配
const (
	FeedbackCorrect       = "Correct"
	FeedbackIncorrect     = "Incorrect"
	FeedbackAnswerMissing = "Answer missing"

	FeedbackExcellent       = "Excellent"
	FeedbackPartial         = "Partially correct"
	FeedbackAttempted       = "Attempted but insufficient"
	FeedbackOffTopic        = "Incorrect / off-topic"
	FeedbackEmbeddingFailed = "Embedding failed"

	FeedbackFallbackPartial      = "Partially correct (fallback evaluation)"
	FeedbackFallbackAttempted    = "Attempted (fallback evaluation)"
	FeedbackFallbackInsufficient = "Insufficient (fallback evaluation)"
	FeedbackFallbackNoAnswer     = "No answer provided (fallback evaluation)"
	FeedbackFallbackNoReference  = "Could not evaluate (fallback evaluation)"
)

// ScoringPolicy 评分表，创建后只读，可在多个评测间共享
type ScoringPolicy struct {
	cfg config.ScoringConfig
}

func NewScoringPolicy(cfg config.ScoringConfig) *ScoringPolicy {
	return &ScoringPolicy{cfg: cfg}
}

// DefaultScoringPolicy 默认阈值 0.85 / 0.70 / 0.55
func DefaultScoringPolicy() *ScoringPolicy {
	return NewScoringPolicy(config.ScoringConfig{
		Excellent:          0.85,
		Partial:            0.70,
		Attempted:          0.55,
		PartialRatio:       0.6,
		AttemptedRatio:     0.3,
		FallbackHigh:       0.6,
		FallbackLow:        0.3,
		FallbackHighRatio:  0.7,
		FallbackLowRatio:   0.4,
		FallbackFloorRatio: 0.1,
	})
}

func (p *ScoringPolicy) Config() config.ScoringConfig {
	return p.cfg
}

// ScoreObjective 选择题只有满分或 0 分
func (p *ScoringPolicy) ScoreObjective(student, reference string, maxMarks float64) (float64, string) {
	if strings.TrimSpace(student) == "" || strings.TrimSpace(reference) == "" {
		return 0, FeedbackAnswerMissing
	}
	if NormalizeAnswer(student) == NormalizeAnswer(reference) {
		return maxMarks, FeedbackCorrect
	}
	return 0, FeedbackIncorrect
}

// ScoreSubjective similarity 为 nil 表示向量不可用
func (p *ScoringPolicy) ScoreSubjective(similarity *float64, maxMarks float64) (float64, string) {
	if similarity == nil {
		return 0, FeedbackEmbeddingFailed
	}
	s := *similarity
	switch {
	case s >= p.cfg.Excellent:
		return maxMarks, FeedbackExcellent
	case s >= p.cfg.Partial:
		return util.Round(p.cfg.PartialRatio*maxMarks, 2), FeedbackPartial
	case s >= p.cfg.Attempted:
		return util.Round(p.cfg.AttemptedRatio*maxMarks, 2), FeedbackAttempted
	default:
		return 0, FeedbackOffTopic
	}
}

// ScoreFallback 向量服务不可用时按关键词重合率评分
func (p *ScoringPolicy) ScoreFallback(student, reference string, maxMarks float64) (float64, string) {
	if strings.TrimSpace(student) == "" {
		return 0, FeedbackFallbackNoAnswer
	}
	refTokens := Tokenize(reference)
	if len(refTokens) == 0 {
		return 0, FeedbackFallbackNoReference
	}

	ratio := OverlapRatio(Tokenize(student), refTokens)
	switch {
	case ratio >= p.cfg.FallbackHigh:
		return util.Round(p.cfg.FallbackHighRatio*maxMarks, 2), FeedbackFallbackPartial
	case ratio >= p.cfg.FallbackLow:
		return util.Round(p.cfg.FallbackLowRatio*maxMarks, 2), FeedbackFallbackAttempted
	default:
		return util.Round(p.cfg.FallbackFloorRatio*maxMarks, 2), FeedbackFallbackInsufficient
	}
}

// OverlapRatio |student ∩ reference| / |reference|，结果限制在 [0,1]
func OverlapRatio(student, reference map[string]struct{}) float64 {
	if len(reference) == 0 {
		return 0
	}
	hit := 0
	for tok := range reference {
		if _, ok := student[tok]; ok {
			hit++
		}
	}
	ratio := float64(hit) / float64(len(reference))
	if ratio > 1 {
		return 1
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"by": true, "with": true, "from": true, "as": true, "into": true,
	"it": true, "its": true, "this": true, "that": true, "these": true, "those": true,
	"when": true, "where": true, "which": true, "who": true, "what": true, "how": true,
	"if": true, "then": true, "than": true, "so": true, "not": true, "no": true,
	"do": true, "does": true, "did": true, "has": true, "have": true, "had": true,
	"can": true, "will": true, "would": true, "should": true, "there": true, "their": true,
	"they": true, "we": true, "you": true, "he": true, "she": true, "i": true,
}

// 只去掉一个后缀，且剩余长度至少为 3
var suffixes = []string{"ly", "ing", "ed", "es", "s"}

func stem(word string) string {
	for _, suf := range suffixes {
		if !strings.HasSuffix(word, suf) {
			continue
		}
		if suf == "s" && strings.HasSuffix(word, "ss") {
			continue
		}
		if len(word)-len(suf) >= 3 {
			return word[:len(word)-len(suf)]
		}
	}
	return word
}

// Tokenize 小写、按非字母数字切分、去停用词并做简单词干化
func Tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		out[stem(f)] = struct{}{}
	}
	return out
}
