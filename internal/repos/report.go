package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/types"
)

type ReportRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Report, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Report, error)
	// NextUnmatched returns the oldest approved report not yet swept by the
	// matcher, or nil when the backlog is empty.
	NextUnmatched(ctx context.Context, tx *gorm.DB) (*types.Report, error)
	MarkMatched(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
	SaveEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, embedding []byte) error
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

func (r *reportRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Report, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Report
	if err := transaction.WithContext(ctx).
		Preload("ImageHashes").
		Where("id = ?", id).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reportRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Report, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Report
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Preload("ImageHashes").
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *reportRepo) NextUnmatched(ctx context.Context, tx *gorm.DB) (*types.Report, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Report
	err := transaction.WithContext(ctx).
		Preload("ImageHashes").
		Where("status = ? AND matched_at IS NULL", types.ReportStatusApproved).
		Order("created_at ASC").
		First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reportRepo) MarkMatched(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Report{}).
		Where("id = ?", id).
		Update("matched_at", at).Error
}

func (r *reportRepo) SaveEmbedding(ctx context.Context, tx *gorm.DB, id uuid.UUID, embedding []byte) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Report{}).
		Where("id = ?", id).
		Update("embedding", embedding).Error
}
