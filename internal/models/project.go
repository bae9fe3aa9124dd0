package models

import "gorm.io/gorm"

type Project struct {
	gorm.Model
	Name            string          `gorm:"uniqueIndex" json:"name"`
	ReportChannelID string          `json:"report_channel_id"`
	Members         []ProjectMember `gorm:"foreignKey:ProjectID" json:"members"`
}

type ProjectMember struct {
	gorm.Model
	ProjectID uint   `gorm:"uniqueIndex:idx_member_project_user" json:"project_id"`
	UserID    string `gorm:"uniqueIndex:idx_member_project_user" json:"user_id"`
	Timezone  string `gorm:"default:UTC" json:"timezone"`
}

type TicketStatus string

const (
	TicketTodo       TicketStatus = "todo"
	TicketInProgress TicketStatus = "in_progress"
	TicketReview     TicketStatus = "review"
	TicketDone       TicketStatus = "done"
)

type Ticket struct {
	gorm.Model
	ProjectID uint         `gorm:"index" json:"project_id"`
	Title     string       `gorm:"index;not null" json:"title"`
	Status    TicketStatus `gorm:"type:varchar(16);default:todo" json:"status"`
}
