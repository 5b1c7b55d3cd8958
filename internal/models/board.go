package models

import (
	"time"

	"gorm.io/gorm"
)

// Board represents a synced issue-tracker board.
type Board struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	JiraID       int64          `gorm:"uniqueIndex;not null" json:"jira_id"`
	Name         string         `gorm:"size:200;not null" json:"name"`
	Type         string         `gorm:"size:20;not null" json:"type"` // scrum, kanban
	ProjectKey   string         `gorm:"size:100;index" json:"project_key"`
	LastSyncedAt *time.Time     `json:"last_synced_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Board) TableName() string { return "boards" }

// Sprint represents a synced sprint belonging to a scrum board.
type Sprint struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	JiraID       int64          `gorm:"uniqueIndex;not null" json:"jira_id"`
	BoardID      uint           `gorm:"index;not null" json:"board_id"`
	Name         string         `gorm:"size:200;not null" json:"name"`
	State        string         `gorm:"size:20;index" json:"state"` // future, active, closed
	Goal         string         `gorm:"type:text" json:"goal"`
	StartDate    *time.Time     `json:"start_date"`
	EndDate      *time.Time     `json:"end_date"`
	CompleteDate *time.Time     `json:"complete_date"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Sprint) TableName() string { return "sprints" }
