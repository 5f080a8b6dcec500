package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Review struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MissionID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_triple" json:"mission_id"`
	ReviewerID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_triple" json:"reviewer_id"`
	ReviewedUserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_triple;index" json:"reviewed_user_id"`

	Score   int            `gorm:"not null" json:"score"` // 1-5
	Comment string         `gorm:"type:text" json:"comment"`
	Detail  datatypes.JSON `json:"detail,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ReviewDetail holds the optional sub-scores, each 1-5 when present.
type ReviewDetail struct {
	Communication   *int `json:"communication,omitempty" validate:"omitempty,min=1,max=5"`
	Quality         *int `json:"quality,omitempty" validate:"omitempty,min=1,max=5"`
	Timeliness      *int `json:"timeliness,omitempty" validate:"omitempty,min=1,max=5"`
	Professionalism *int `json:"professionalism,omitempty" validate:"omitempty,min=1,max=5"`
}
