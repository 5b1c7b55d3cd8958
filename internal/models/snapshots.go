package models

import "time"

// SprintMetrics is the computed snapshot for one sprint. At most one row
// exists per sprint; recalculation overwrites the previous snapshot.
// Breakdown maps and member sets are stored as JSON text.
type SprintMetrics struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SprintID     uint      `gorm:"uniqueIndex;not null" json:"sprint_id"`
	CalculatedAt time.Time `gorm:"not null" json:"calculated_at"`

	Velocity           float64 `json:"velocity"`
	ChurnRate          float64 `json:"churn_rate"`
	CompletionRate     float64 `json:"completion_rate"`
	ScopeChangePercent float64 `json:"scope_change_percent"`

	TotalStoryPoints     float64 `json:"total_story_points"`
	CompletedStoryPoints float64 `json:"completed_story_points"`
	AddedStoryPoints     float64 `json:"added_story_points"`
	RemovedStoryPoints   float64 `json:"removed_story_points"`
	AddedIssues          int     `json:"added_issues"`
	RemovedIssues        int     `json:"removed_issues"`
	TotalIssues          int     `json:"total_issues"`
	CompletedIssues      int     `json:"completed_issues"`

	IssueTypeBreakdown   string `gorm:"type:text" json:"issue_type_breakdown"`
	PriorityBreakdown    string `gorm:"type:text" json:"priority_breakdown"`
	AssigneeBreakdown    string `gorm:"type:text" json:"assignee_breakdown"`
	StoryPointsBreakdown string `gorm:"type:text" json:"story_points_breakdown"`

	AverageCycleTime *float64 `json:"average_cycle_time"` // days
	MedianCycleTime  *float64 `json:"median_cycle_time"`
	AverageLeadTime  *float64 `json:"average_lead_time"`
	MedianLeadTime   *float64 `json:"median_lead_time"`

	DefectLeakageRate float64 `json:"defect_leakage_rate"`
	QualityRate       float64 `json:"quality_rate"`
	TotalDefects      int     `json:"total_defects"`
	CompletedDefects  int     `json:"completed_defects"`

	Commentary      string `gorm:"type:text" json:"commentary"`
	Recommendations string `gorm:"type:text" json:"recommendations"` // JSON array
	Priority        string `gorm:"size:20" json:"priority"`          // low, medium, high, critical
	Sentiment       string `gorm:"size:20" json:"sentiment"`         // positive, neutral, warning, negative

	TeamMembers string `gorm:"type:text" json:"team_members"` // JSON array

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SprintMetrics) TableName() string { return "sprint_metrics" }

// BoardMetrics aggregates a board's sprint snapshots. One row per board.
type BoardMetrics struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BoardID      uint      `gorm:"uniqueIndex;not null" json:"board_id"`
	CalculatedAt time.Time `gorm:"not null" json:"calculated_at"`

	AvgVelocity          float64  `json:"avg_velocity"`
	AvgChurnRate         float64  `json:"avg_churn_rate"`
	AvgCompletionRate    float64  `json:"avg_completion_rate"`
	AvgCycleTime         *float64 `json:"avg_cycle_time"`
	AvgLeadTime          *float64 `json:"avg_lead_time"`
	AvgDefectLeakageRate float64  `json:"avg_defect_leakage_rate"`
	AvgQualityRate       float64  `json:"avg_quality_rate"`

	TotalSprints     int `json:"total_sprints"`
	ActiveSprints    int `json:"active_sprints"`
	CompletedSprints int `json:"completed_sprints"`

	PredictedVelocity float64 `json:"predicted_velocity"`
	VelocityTrend     string  `gorm:"size:10" json:"velocity_trend"`   // up, down, stable
	ChurnRateTrend    string  `gorm:"size:10" json:"churn_rate_trend"` // up, down, stable

	TeamMembers      string  `gorm:"type:text" json:"team_members"` // JSON array
	TotalStoryPoints float64 `json:"total_story_points"`
	TotalDefects     int     `json:"total_defects"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BoardMetrics) TableName() string { return "board_metrics" }

// KanbanMetrics is the continuous-flow snapshot for a kanban board.
type KanbanMetrics struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BoardID      uint      `gorm:"uniqueIndex;not null" json:"board_id"`
	CalculatedAt time.Time `gorm:"not null" json:"calculated_at"`

	TotalIssues     int `json:"total_issues"`
	TodoCount       int `json:"todo_count"`
	InProgressCount int `json:"in_progress_count"`
	DoneCount       int `json:"done_count"`
	BlockedCount    int `json:"blocked_count"`
	FlaggedCount    int `json:"flagged_count"`

	AvgCycleTime    *float64 `json:"avg_cycle_time"`
	MedianCycleTime *float64 `json:"median_cycle_time"`
	AvgLeadTime     *float64 `json:"avg_lead_time"`
	MedianLeadTime  *float64 `json:"median_lead_time"`

	WeeklyThroughput  string `gorm:"type:text" json:"weekly_throughput"`  // JSON array, 12 entries oldest-first
	MonthlyThroughput string `gorm:"type:text" json:"monthly_throughput"` // JSON array, 6 entries oldest-first

	WipViolations  int    `json:"wip_violations"`
	WipUtilization string `gorm:"type:text" json:"wip_utilization"` // JSON map column -> utilization

	FlowEfficiency float64 `json:"flow_efficiency"`

	AvgAgeInProgress *float64 `json:"avg_age_in_progress"` // days
	MaxAgeInProgress *float64 `json:"max_age_in_progress"`

	TypeBreakdown     string `gorm:"type:text" json:"type_breakdown"`
	PriorityBreakdown string `gorm:"type:text" json:"priority_breakdown"`
	AssigneeBreakdown string `gorm:"type:text" json:"assignee_breakdown"`

	ColumnMetrics string `gorm:"type:text" json:"column_metrics"` // JSON array of per-column metrics

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (KanbanMetrics) TableName() string { return "kanban_metrics" }
