package repository

import (
	"context"
	"edtech_eval_backend/internal/model"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type EvaluationRepository struct {
	DB *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{DB: db}
}

// Insert 整份写入，记录创建后不再更新
func (r *EvaluationRepository) Insert(ctx context.Context, rec *model.EvaluationRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	row := &model.EvaluationDocument{
		DocumentBase: model.DocumentBase{
			ID:        rec.EvalID,
			Document:  doc,
			CreatedAt: rec.Timestamp,
		},
		StudentID:  rec.StudentID,
		PaperID:    rec.PaperID,
		Percentage: rec.Percentage,
	}
	return r.DB.WithContext(ctx).Create(row).Error
}

func (r *EvaluationRepository) FindByID(ctx context.Context, evalID string) (*model.EvaluationRecord, error) {
	var row model.EvaluationDocument
	err := r.DB.WithContext(ctx).First(&row, "id = ?", evalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeEvaluation(row)
}

func (r *EvaluationRepository) FindByStudent(ctx context.Context, studentID string) ([]model.EvaluationRecord, error) {
	var rows []model.EvaluationDocument
	err := r.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.EvaluationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeEvaluation(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *EvaluationRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func decodeEvaluation(row model.EvaluationDocument) (*model.EvaluationRecord, error) {
	var rec model.EvaluationRecord
	if err := json.Unmarshal(row.Document, &rec); err != nil {
		return nil, fmt.Errorf("decode evaluation %s: %w", row.ID, err)
	}
	return &rec, nil
}
