// internal/models/mission.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type MissionStatus string

const (
	MissionOpen       MissionStatus = "OPEN"        // accepting applications
	MissionInProgress MissionStatus = "IN_PROGRESS" // freelance assigned
	MissionCompleted  MissionStatus = "COMPLETED"   // delivery accepted by the client
	MissionCancelled  MissionStatus = "CANCELLED"   // mediation only
)

type Mission struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"client_id"`
	FreelanceID *uuid.UUID `gorm:"type:uuid;index" json:"freelance_id,omitempty"`

	Title       string         `gorm:"type:varchar(200);not null" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Category    string         `gorm:"type:varchar(80);index;not null" json:"category"`
	Skills      pq.StringArray `gorm:"type:text[]" json:"skills"`
	Budget      int64          `gorm:"not null" json:"budget"`
	Deadline    time.Time      `gorm:"not null" json:"deadline"`
	IsUrgent    bool           `gorm:"not null" json:"is_urgent"`

	Status            MissionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ApplicationsCount int           `gorm:"not null" json:"applications_count"`
	ViewsCount        int           `gorm:"not null" json:"views_count"`

	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsParty reports whether userID is the mission's client or assigned freelance.
func (m *Mission) IsParty(userID uuid.UUID) bool {
	return m.ClientID == userID || (m.FreelanceID != nil && *m.FreelanceID == userID)
}

// OtherParty returns the counterpart of userID, or uuid.Nil when there is none.
func (m *Mission) OtherParty(userID uuid.UUID) uuid.UUID {
	switch {
	case m.FreelanceID == nil:
		return uuid.Nil
	case m.ClientID == userID:
		return *m.FreelanceID
	case *m.FreelanceID == userID:
		return m.ClientID
	}
	return uuid.Nil
}

type Application struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MissionID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_applications_mission_freelance" json:"mission_id"`
	FreelanceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_applications_mission_freelance;index" json:"freelance_id"`

	CoverLetter      string         `gorm:"type:text;not null" json:"cover_letter"`
	ProposedBudget   int64          `gorm:"not null" json:"proposed_budget"`
	ProposedDeadline time.Time      `gorm:"not null" json:"proposed_deadline"`
	PortfolioURL     string         `gorm:"type:text" json:"portfolio_url,omitempty"`
	Attachments      datatypes.JSON `json:"attachments,omitempty"` // ["uploads/…", …]

	CreatedAt time.Time `json:"created_at"`

	Freelance *User `gorm:"foreignKey:FreelanceID" json:"freelance,omitempty"`
}
