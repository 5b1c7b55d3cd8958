package models

import (
	"time"

	"gorm.io/gorm"
)

// Issue represents a synced issue-tracker work item. The sync service owns
// the lifecycle; the metrics engines only read these records.
type Issue struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	JiraID        int64          `gorm:"uniqueIndex;not null" json:"jira_id"`
	Key           string         `gorm:"uniqueIndex;size:50;not null" json:"key"`
	BoardID       uint           `gorm:"index" json:"board_id"`
	SprintJiraID  *int64         `gorm:"index" json:"sprint_jira_id"` // current sprint association
	Type          string         `gorm:"size:100" json:"type"`
	Status        string         `gorm:"size:100;index" json:"status"`
	Priority      string         `gorm:"size:50" json:"priority"`
	Assignee      string         `gorm:"size:200" json:"assignee"`
	Reporter      string         `gorm:"size:200" json:"reporter"`
	StoryPoints   *float64       `json:"story_points"`
	ParentKey     string         `gorm:"size:50" json:"parent_key"`
	Labels        string         `gorm:"size:1000" json:"labels"`     // comma-separated
	Components    string         `gorm:"size:1000" json:"components"` // comma-separated
	Blocked       bool           `gorm:"default:false" json:"blocked"`
	Flagged       bool           `gorm:"default:false" json:"flagged"`
	JiraCreatedAt time.Time      `gorm:"index" json:"jira_created_at"`
	JiraUpdatedAt time.Time      `json:"jira_updated_at"`
	ResolvedAt    *time.Time     `json:"resolved_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Issue) TableName() string { return "issues" }

// Changelog entry classifications derived at sync time.
const (
	ChangeSprintAdded        = "sprint_added"
	ChangeSprintRemoved      = "sprint_removed"
	ChangeSprintChanged      = "sprint_changed"
	ChangeStoryPointsChanged = "story_points_changed"
	ChangeOther              = "other"
)

// ChangelogEntry is one field change from an issue's history. Entries are
// append-only; the derived fields (ChangeType, from/to sprint ids, points
// delta) are computed once during sync.
type ChangelogEntry struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	IssueID      uint       `gorm:"index;not null" json:"issue_id"`
	Field        string     `gorm:"size:100;index" json:"field"`
	FromValue    string     `gorm:"size:1000" json:"from_value"`
	ToValue      string     `gorm:"size:1000" json:"to_value"`
	Author       string     `gorm:"size:200" json:"author"`
	ChangedAt    time.Time  `gorm:"index;not null" json:"changed_at"`
	ChangeType   string     `gorm:"size:50;index" json:"change_type"`
	FromSprintID *int64     `gorm:"index" json:"from_sprint_id"`
	ToSprintID   *int64     `gorm:"index" json:"to_sprint_id"`
	PointsDelta  *float64   `json:"points_delta"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (ChangelogEntry) TableName() string { return "changelog_entries" }
