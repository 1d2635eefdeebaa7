package repos

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/types"
)

// ErrDuplicateMatch is returned when a Match for an existing unordered pair
// is created a second time. Creation is rejected, not silently ignored, so
// callers can skip re-notification.
var ErrDuplicateMatch = errors.New("match already exists for report pair")

type MatchRepo interface {
	// Create inserts a candidate match. The pair must already be normalized
	// (types.NormalizePair); the unique pair index maps concurrent double
	// inserts to ErrDuplicateMatch.
	Create(ctx context.Context, tx *gorm.DB, m *types.Match) (*types.Match, error)
	// FindByPair looks up the match for an unordered report pair; nil when
	// none exists.
	FindByPair(ctx context.Context, tx *gorm.DB, x, y uuid.UUID) (*types.Match, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Match, error)
	ListByReport(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) ([]*types.Match, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	MarkNotified(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type matchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMatchRepo(db *gorm.DB, baseLog *logger.Logger) MatchRepo {
	return &matchRepo{db: db, log: baseLog.With("repo", "MatchRepo")}
}

func (r *matchRepo) Create(ctx context.Context, tx *gorm.DB, m *types.Match) (*types.Match, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateMatch
		}
		return nil, err
	}
	return m, nil
}

func (r *matchRepo) FindByPair(ctx context.Context, tx *gorm.DB, x, y uuid.UUID) (*types.Match, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	a, b := types.NormalizePair(x, y)
	var out types.Match
	err := transaction.WithContext(ctx).
		Where("report_a_id = ? AND report_b_id = ?", a, b).
		First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *matchRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Match, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Match
	if err := transaction.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *matchRepo) ListByReport(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) ([]*types.Match, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Match
	if err := transaction.WithContext(ctx).
		Where("report_a_id = ? OR report_b_id = ?", reportID, reportID).
		Order("total_score DESC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *matchRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Match{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *matchRepo) MarkNotified(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Match{}).
		Where("id = ?", id).
		Update("notified", true).Error
}

// isUniqueViolation detects the duplicate-pair constraint on postgres
// (SQLSTATE 23505) and on the sqlite driver used by tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.TrimSpace(pgErr.Code) == "23505" {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
