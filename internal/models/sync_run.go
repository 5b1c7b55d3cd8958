package models

import "time"

// SyncRun records one pass of the board synchronizer.
type SyncRun struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"` // uuid
	BoardID       uint       `gorm:"index" json:"board_id"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	IssuesSynced  int        `json:"issues_synced"`
	SprintsSynced int        `json:"sprints_synced"`
	EntriesSynced int        `json:"entries_synced"`
	Success       bool       `json:"success"`
	Error         string     `gorm:"type:text" json:"error"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (SyncRun) TableName() string { return "sync_runs" }
