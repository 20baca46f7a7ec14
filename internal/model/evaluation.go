package model

import (
	"edtech_eval_backend/internal/util"
	"encoding/json"
	"math"
	"time"
)

// 评分方式，便于下游区分模型评分和降级评分
const (
	MethodRule      = "rule"
	MethodEmbedding = "embedding"
	MethodFallback  = "fallback"
)

// SubmittedAnswer 学生作答，q_index 从 1 开始
type SubmittedAnswer struct {
	QIndex        int    `json:"q_index"`
	StudentAnswer string `json:"student_answer"`
}

// UnmarshalJSON 容忍字符串形式的 q_index 和非字符串答案，非法题号记为 0
func (a *SubmittedAnswer) UnmarshalJSON(data []byte) error {
	var raw struct {
		QIndex        json.RawMessage `json:"q_index"`
		StudentAnswer json.RawMessage `json:"student_answer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.QIndex = 0
	if idx, ok := util.ParseNumber(raw.QIndex); ok && idx == math.Trunc(idx) && idx >= 1 && idx <= math.MaxInt32 {
		a.QIndex = int(idx)
	}

	a.StudentAnswer = ""
	if len(raw.StudentAnswer) > 0 && string(raw.StudentAnswer) != "null" {
		var s string
		if err := json.Unmarshal(raw.StudentAnswer, &s); err == nil {
			a.StudentAnswer = s
		} else {
			a.StudentAnswer = string(raw.StudentAnswer)
		}
	}
	return nil
}

// EvaluationDetail 单题评测结果，ScoreAwarded 始终来自评分策略
type EvaluationDetail struct {
	QIndex        int      `json:"q_index"`
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Marks         float64  `json:"marks"`
	StudentAnswer string   `json:"student_answer"`
	CorrectAnswer string   `json:"correct_answer"`
	Similarity    *float64 `json:"similarity"`
	ScoreAwarded  float64  `json:"score_awarded"`
	Feedback      string   `json:"feedback"`
	Method        string   `json:"method"`
}

// EvaluationRecord 一次提交的完整评测记录，持久化后不可修改
type EvaluationRecord struct {
	EvalID     string             `json:"eval_id"`
	StudentID  string             `json:"student_id"`
	PaperID    string             `json:"paper_id"`
	PaperTitle string             `json:"paper_title"`
	Timestamp  time.Time          `json:"timestamp"`
	TotalMarks float64            `json:"total_marks"`
	TotalScore float64            `json:"total_score"`
	Percentage float64            `json:"percentage"`
	Details    []EvaluationDetail `json:"details,omitempty"`
}

// Clone 深拷贝，返回给调用方的记录不共享可变引用
func (r *EvaluationRecord) Clone() *EvaluationRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Details != nil {
		cp.Details = make([]EvaluationDetail, len(r.Details))
		for i, d := range r.Details {
			if d.Similarity != nil {
				sim := *d.Similarity
				d.Similarity = &sim
			}
			cp.Details[i] = d
		}
	}
	return &cp
}

// Summary 不含明细的记录，用于学生历史列表
func (r *EvaluationRecord) Summary() EvaluationRecord {
	s := *r
	s.Details = nil
	return s
}

// Percentage 总分为 0 时返回 0
func Percentage(awarded, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return util.Round(100*awarded/max, 2)
}
