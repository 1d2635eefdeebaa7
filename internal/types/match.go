package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MatchStatusCandidate  = "candidate"
	MatchStatusPromoted   = "promoted"
	MatchStatusSuppressed = "suppressed"
	MatchStatusDismissed  = "dismissed"
)

// Match materializes one pipeline candidate. The pair is unordered: it is
// stored normalized (ReportAID < ReportBID) and the composite unique index
// on (report_a_id, report_b_id) is the duplicate-prevention backstop.
// SourceReportID records which side initiated the pipeline run.
type Match struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReportAID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_match_pair" json:"report_a_id"`
	ReportBID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_match_pair" json:"report_b_id"`
	SourceReportID uuid.UUID `gorm:"type:uuid;not null;index" json:"source_report_id"`
	TextScore      *float64  `gorm:"column:text_score" json:"text_score,omitempty"`
	ImageScore     *float64  `gorm:"column:image_score" json:"image_score,omitempty"`
	GeoScore       *float64  `gorm:"column:geo_score" json:"geo_score,omitempty"`
	TimeScore      *float64  `gorm:"column:time_score" json:"time_score,omitempty"`
	TotalScore     float64   `gorm:"column:total_score;not null" json:"total_score"`
	Explanation    string    `gorm:"column:explanation" json:"explanation"`
	Status         string    `gorm:"column:status;not null;index;default:candidate" json:"status"`
	Notified       bool      `gorm:"column:notified;not null;default:false" json:"notified"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Match) TableName() string {
	return "match"
}

// NormalizePair orders an unordered report pair deterministically so both
// directions of the same pair map to one row.
func NormalizePair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if strings.Compare(x.String(), y.String()) <= 0 {
		return x, y
	}
	return y, x
}

// ValidMatchStatus reports whether s is one of the lifecycle states.
func ValidMatchStatus(s string) bool {
	switch s {
	case MatchStatusCandidate, MatchStatusPromoted, MatchStatusSuppressed, MatchStatusDismissed:
		return true
	default:
		return false
	}
}
