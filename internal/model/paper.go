package model

import (
	"edtech_eval_backend/internal/util"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type QuestionType string

const (
	QuestionMCQ        QuestionType = "MCQ"
	QuestionShort      QuestionType = "Short"
	QuestionLong       QuestionType = "Long"
	QuestionSubjective QuestionType = "Subjective"
)

// objectiveTypes 按小写比较，兼容出题端不同的写法
var objectiveTypes = map[string]bool{
	"mcq":             true,
	"multiple":        true,
	"choice":          true,
	"multiple choice": true,
	"multiple_choice": true,
	"single_choice":   true,
	"single choice":   true,
}

// IsObjectiveType 判断题型是否按选择题规则评分
func IsObjectiveType(t string) bool {
	return objectiveTypes[strings.ToLower(strings.TrimSpace(t))]
}

// Question 试卷中的一道题，Index 从 1 开始且在试卷内唯一
type Question struct {
	Index  int     `json:"q_index,omitempty" yaml:"q_index"`
	Text   string  `json:"question" yaml:"question"`
	Type   string  `json:"type" yaml:"type"`
	Marks  float64 `json:"marks" yaml:"marks"`
	Answer string  `json:"answer" yaml:"answer"`
}

// UnmarshalJSON 兼容 correct_answer 字段和非数字分值，无法解析的分值记为 0
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index         json.RawMessage `json:"q_index"`
		Text          string          `json:"question"`
		Prompt        string          `json:"prompt"`
		Type          string          `json:"type"`
		Marks         json.RawMessage `json:"marks"`
		Answer        string          `json:"answer"`
		CorrectAnswer string          `json:"correct_answer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	q.Text = raw.Text
	if q.Text == "" {
		q.Text = raw.Prompt
	}
	q.Type = raw.Type
	q.Answer = raw.Answer
	if q.Answer == "" {
		q.Answer = raw.CorrectAnswer
	}
	if idx, ok := util.ParseNumber(raw.Index); ok && idx >= 1 && idx <= math.MaxInt32 && idx == math.Trunc(idx) {
		q.Index = int(idx)
	} else {
		q.Index = 0
	}
	q.Marks, _ = util.ParseNumber(raw.Marks)
	return nil
}

// QuestionPaper 由出题端生成，评测开始后不再修改
type QuestionPaper struct {
	ID         string     `json:"id,omitempty" yaml:"id"`
	Title      string     `json:"title" yaml:"title"`
	Questions  []Question `json:"questions" yaml:"questions"`
	TotalMarks *float64   `json:"total_marks,omitempty" yaml:"total_marks"`
	CreatedAt  time.Time  `json:"created_at" yaml:"-"`
}

func (p *QuestionPaper) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string          `json:"id"`
		LegacyID   string          `json:"_id"`
		Title      string          `json:"title"`
		Questions  []Question      `json:"questions"`
		TotalMarks json.RawMessage `json:"total_marks"`
		CreatedAt  *time.Time      `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.ID = raw.ID
	if p.ID == "" {
		p.ID = raw.LegacyID
	}
	p.Title = raw.Title
	p.Questions = raw.Questions
	p.TotalMarks = nil
	if total, ok := util.ParseNumber(raw.TotalMarks); ok {
		p.TotalMarks = &total
	}
	if raw.CreatedAt != nil {
		p.CreatedAt = *raw.CreatedAt
	}
	return nil
}

// Normalize 为缺失的题号按顺序补齐，并把异常分值压到 0
func (p *QuestionPaper) Normalize() {
	for i := range p.Questions {
		q := &p.Questions[i]
		if q.Index < 1 {
			q.Index = i + 1
		}
		if q.Marks < 0 || math.IsNaN(q.Marks) || math.IsInf(q.Marks, 0) {
			q.Marks = 0
		}
	}
	if p.TotalMarks != nil && (*p.TotalMarks < 0 || math.IsNaN(*p.TotalMarks)) {
		p.TotalMarks = nil
	}
}

// DuplicateIndex 返回第一个重复的题号
func (p *QuestionPaper) DuplicateIndex() (int, bool) {
	seen := make(map[int]bool, len(p.Questions))
	for _, q := range p.Questions {
		if seen[q.Index] {
			return q.Index, true
		}
		seen[q.Index] = true
	}
	return 0, false
}

// SumMarks 各题分值之和
func (p *QuestionPaper) SumMarks() float64 {
	total := 0.0
	for _, q := range p.Questions {
		total += q.Marks
	}
	return total
}

// TotalMaxMarks 优先使用试卷声明的总分
func (p *QuestionPaper) TotalMaxMarks() float64 {
	if p.TotalMarks != nil {
		return *p.TotalMarks
	}
	return p.SumMarks()
}

func (p *QuestionPaper) Clone() *QuestionPaper {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Questions = append([]Question(nil), p.Questions...)
	if p.TotalMarks != nil {
		total := *p.TotalMarks
		cp.TotalMarks = &total
	}
	return &cp
}

// PaperSummary 试卷列表项
type PaperSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	TotalMarks    float64   `json:"total_marks"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type paperFile struct {
	Papers []QuestionPaper `yaml:"papers"`
}

// LoadPapersYAML 读取 papers: [...] 格式的试卷文件
func LoadPapersYAML(r io.Reader) ([]QuestionPaper, error) {
	var f paperFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode papers yaml: %w", err)
	}
	for i := range f.Papers {
		f.Papers[i].Normalize()
	}
	return f.Papers, nil
}
