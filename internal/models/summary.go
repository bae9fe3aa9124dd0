package models

import (
	"time"

	"gorm.io/datatypes"
)

type SummarySource string

const (
	SummaryFromSummarizer SummarySource = "summarizer"
	SummaryFromTemplate   SummarySource = "fallback"
	SummaryEmpty          SummarySource = "empty"
)

type BlockerItem struct {
	ParticipantID string `json:"participant_id"`
	Issue         string `json:"issue"`
}

// StandupSummary is written once when its session closes and never updated.
type StandupSummary struct {
	ID           uint                             `gorm:"primarykey" json:"id"`
	SessionID    uint                             `gorm:"not null;uniqueIndex" json:"session_id"`
	SummaryText  string                           `gorm:"type:text" json:"summary_text"`
	BlockersJSON datatypes.JSONSlice[BlockerItem] `json:"blockers_json"`
	Source       SummarySource                    `gorm:"type:varchar(16)" json:"source"`
	CreatedAt    time.Time                        `json:"created_at"`
}
