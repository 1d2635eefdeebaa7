package types

import (
	"time"

	"github.com/google/uuid"
)

// ReportImageHash holds the perceptual hashes computed for one uploaded
// image. Hashes are fixed-length hex strings; a column is empty when the
// hash provider did not produce that hash kind.
type ReportImageHash struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReportID uuid.UUID `gorm:"type:uuid;not null;index" json:"report_id"`
	PHash    string    `gorm:"column:phash" json:"phash,omitempty"`
	DHash    string    `gorm:"column:dhash" json:"dhash,omitempty"`
	AvgHash  string    `gorm:"column:avg_hash" json:"avg_hash,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ReportImageHash) TableName() string {
	return "report_image_hash"
}

// Empty reports whether no hash kind is present at all.
func (h ReportImageHash) Empty() bool {
	return h.PHash == "" && h.DHash == "" && h.AvgHash == ""
}
