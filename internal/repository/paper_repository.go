package repository

import (
	"context"
	"edtech_eval_backend/internal/model"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound 文档不存在
var ErrNotFound = fmt.Errorf("document not found: %w", gorm.ErrRecordNotFound)

type PaperRepository struct {
	DB *gorm.DB
}

func NewPaperRepository(db *gorm.DB) *PaperRepository {
	return &PaperRepository{DB: db}
}

func (r *PaperRepository) Create(ctx context.Context, paper *model.QuestionPaper) error {
	doc, err := json.Marshal(paper)
	if err != nil {
		return err
	}
	row := &model.PaperDocument{
		DocumentBase: model.DocumentBase{
			ID:        paper.ID,
			Document:  doc,
			CreatedAt: paper.CreatedAt,
		},
		Title:         paper.Title,
		TotalMarks:    paper.TotalMaxMarks(),
		QuestionCount: len(paper.Questions),
	}
	return r.DB.WithContext(ctx).Create(row).Error
}

func (r *PaperRepository) FindByID(ctx context.Context, id string) (*model.QuestionPaper, error) {
	var row model.PaperDocument
	err := r.DB.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var paper model.QuestionPaper
	if err := json.Unmarshal(row.Document, &paper); err != nil {
		return nil, fmt.Errorf("decode paper %s: %w", id, err)
	}
	if paper.ID == "" {
		paper.ID = row.ID
	}
	return &paper, nil
}

// ListRecent 按创建时间倒序，只读取摘要列
func (r *PaperRepository) ListRecent(ctx context.Context, limit int) ([]model.PaperSummary, error) {
	var rows []model.PaperDocument
	err := r.DB.WithContext(ctx).
		Select("id", "title", "total_marks", "question_count", "created_at").
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.PaperSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.PaperSummary{
			ID:            row.ID,
			Title:         row.Title,
			TotalMarks:    row.TotalMarks,
			QuestionCount: row.QuestionCount,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, nil
}
