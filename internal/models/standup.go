package models

import (
	"time"

	"gorm.io/gorm"
)

type StandupConfig struct {
	gorm.Model
	ProjectID           uint     `gorm:"uniqueIndex" json:"project_id"`
	Time                string   `gorm:"default:09:00" json:"time"`
	Timezone            string   `gorm:"default:UTC" json:"timezone"`
	WorkingDays         []string `gorm:"type:text;serializer:json" json:"working_days"`
	ResponseWindowHours int      `gorm:"default:2" json:"response_window_hours"`
	IsActive            bool     `gorm:"index" json:"is_active"`
	Questions           []string `gorm:"type:text;serializer:json" json:"questions"`
}

func (c StandupConfig) ResponseWindow() time.Duration {
	return time.Duration(c.ResponseWindowHours) * time.Hour
}

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// StandupSession is one collection window per config and local calendar day.
type StandupSession struct {
	ID        uint          `gorm:"primarykey" json:"id"`
	ConfigID  uint          `gorm:"not null;uniqueIndex:idx_session_config_day" json:"config_id"`
	ProjectID uint          `gorm:"not null;index" json:"project_id"`
	LocalDate string        `gorm:"not null;uniqueIndex:idx_session_config_day" json:"local_date"`
	OpenedAt  time.Time     `gorm:"not null" json:"opened_at"`
	ExpiresAt time.Time     `gorm:"not null;index" json:"expires_at"`
	ClosedAt  *time.Time    `json:"closed_at"`
	Status    SessionStatus `gorm:"type:varchar(16);not null;default:active;index" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (s StandupSession) IsActive() bool {
	return s.Status == SessionActive
}

type StandupResponse struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	SessionID     uint      `gorm:"not null;uniqueIndex:idx_response_session_participant" json:"session_id"`
	ParticipantID string    `gorm:"not null;uniqueIndex:idx_response_session_participant" json:"participant_id"`
	Yesterday     string    `gorm:"type:text" json:"yesterday"`
	Today         string    `gorm:"type:text" json:"today"`
	Blockers      string    `gorm:"type:text" json:"blockers"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
