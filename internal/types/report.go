package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ReportTypeLost  = "lost"
	ReportTypeFound = "found"
)

const (
	ReportStatusPending  = "pending"
	ReportStatusApproved = "approved"
	ReportStatusRejected = "rejected"
)

// Report is a lost or found item submission. The matching engine reads
// reports but never mutates anything except the matched_at bookkeeping
// stamp and embedding backfill.
type Report struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Type        string            `gorm:"column:type;not null;index" json:"type"`
	Category    string            `gorm:"column:category;not null" json:"category"`
	Title       string            `gorm:"column:title;not null" json:"title"`
	Description string            `gorm:"column:description" json:"description"`
	Colors      datatypes.JSON    `gorm:"type:jsonb;column:colors" json:"colors"`
	Embedding   datatypes.JSON    `gorm:"type:jsonb;column:embedding" json:"embedding"`
	Lat         *float64          `gorm:"column:lat" json:"lat,omitempty"`
	Lng         *float64          `gorm:"column:lng" json:"lng,omitempty"`
	City        string            `gorm:"column:city" json:"city,omitempty"`
	OccurredAt  time.Time         `gorm:"column:occurred_at;not null" json:"occurred_at"`
	Status      string            `gorm:"column:status;not null;index" json:"status"`
	MatchedAt   *time.Time        `gorm:"column:matched_at;index" json:"matched_at,omitempty"`
	ImageHashes []ReportImageHash `gorm:"constraint:OnDelete:CASCADE;foreignKey:ReportID;references:ID" json:"image_hashes,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (Report) TableName() string {
	return "report"
}

// OppositeType returns the report type a match candidate must have.
func OppositeType(t string) string {
	if strings.EqualFold(strings.TrimSpace(t), ReportTypeLost) {
		return ReportTypeFound
	}
	return ReportTypeLost
}

// EmbeddingVector decodes the stored embedding column. Returns nil when the
// report has no embedding or the payload does not parse.
func (r *Report) EmbeddingVector() []float32 {
	if r == nil || len(r.Embedding) == 0 {
		return nil
	}
	var out []float32
	if err := json.Unmarshal(r.Embedding, &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ColorTags decodes the stored color tag array, lower-cased.
func (r *Report) ColorTags() []string {
	if r == nil || len(r.Colors) == 0 {
		return nil
	}
	var raw []string
	if err := json.Unmarshal(r.Colors, &raw); err != nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Matchable reports whether the report may participate in matching at all.
func (r *Report) Matchable() bool {
	return r != nil && r.Status == ReportStatusApproved
}
