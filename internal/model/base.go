package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentBase 文档表公共字段，整份文档以 JSON 存放在 Document 列
type DocumentBase struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Document  datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

func (b *DocumentBase) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return
}

// PaperDocument papers 集合
type PaperDocument struct {
	DocumentBase
	Title         string  `gorm:"size:255" json:"title"`
	TotalMarks    float64 `json:"totalMarks"`
	QuestionCount int     `json:"questionCount"`
}

func (PaperDocument) TableName() string {
	return "papers"
}

// EvaluationDocument evaluations 集合，只整体写入不做局部更新
type EvaluationDocument struct {
	DocumentBase
	StudentID  string  `gorm:"index;size:64" json:"studentId"`
	PaperID    string  `gorm:"index;size:64" json:"paperId"`
	Percentage float64 `json:"percentage"`
}

func (EvaluationDocument) TableName() string {
	return "evaluations"
}

func GenerateUUID() string {
	return uuid.New().String()
}
