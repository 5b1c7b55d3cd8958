package metrics

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rickar/cal/v2"
	"gorm.io/gorm"

	"github.com/sprintlens/sprintlens/internal/config"
	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/pkg/logger"
)

// ErrNotFound signals that the requested sprint or board does not exist, or
// that a kanban board has no issues to measure. Batch callers skip and
// continue on it rather than aborting.
var ErrNotFound = errors.New("metrics: not found")

// Service loads domain records, runs the pure engines and persists one
// snapshot per entity. Recalculation always supersedes the prior snapshot.
// Concurrent recalculation of the same entity is last-write-wins; callers
// that need stronger guarantees must serialize.
type Service struct {
	db        *gorm.DB
	wipPolicy WipLimitPolicy
	ratio     float64
	calendar  *cal.BusinessCalendar
}

func NewService(db *gorm.DB, cfg config.MetricsConfig) *Service {
	return &Service{
		db:        db,
		wipPolicy: NewWipLimitPolicy(cfg.WipLimits),
		ratio:     cfg.ActiveTimeRatio,
		calendar:  NewBusinessCalendar(cfg.HolidayRegion),
	}
}

// RecalculateSprint recomputes and upserts the metrics snapshot for one
// sprint. Commentary generation is best-effort: a panic there is recovered
// and the snapshot is saved without narrative.
func (s *Service) RecalculateSprint(sprintID uint) (*models.SprintMetrics, error) {
	var sprint models.Sprint
	if err := s.db.First(&sprint, sprintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	issues, err := s.loadSprintIssues(sprint.JiraID)
	if err != nil {
		return nil, err
	}
	entries, extra, err := s.loadChangelog(sprint.JiraID, issues)
	if err != nil {
		return nil, err
	}

	result := CalculateSprintMetrics(sprint, issues, extra, entries)

	snapshot := models.SprintMetrics{
		SprintID:     sprint.ID,
		CalculatedAt: time.Now(),

		Velocity:           result.Velocity,
		ChurnRate:          result.ChurnRate,
		CompletionRate:     result.CompletionRate,
		ScopeChangePercent: result.ScopeChangePercent,

		TotalStoryPoints:     result.TotalStoryPoints,
		CompletedStoryPoints: result.CompletedStoryPoints,
		AddedStoryPoints:     result.AddedStoryPoints,
		RemovedStoryPoints:   result.RemovedStoryPoints,
		AddedIssues:          result.AddedIssues,
		RemovedIssues:        result.RemovedIssues,
		TotalIssues:          result.TotalIssues,
		CompletedIssues:      result.CompletedIssues,

		IssueTypeBreakdown:   toJSON(result.IssueTypeBreakdown),
		PriorityBreakdown:    toJSON(result.PriorityBreakdown),
		AssigneeBreakdown:    toJSON(result.AssigneeBreakdown),
		StoryPointsBreakdown: toJSON(result.StoryPointsBreakdown),

		AverageCycleTime: result.AverageCycleTime,
		MedianCycleTime:  result.MedianCycleTime,
		AverageLeadTime:  result.AverageLeadTime,
		MedianLeadTime:   result.MedianLeadTime,

		DefectLeakageRate: result.DefectLeakageRate,
		QualityRate:       result.QualityRate,
		TotalDefects:      result.TotalDefects,
		CompletedDefects:  result.CompletedDefects,

		TeamMembers: toJSON(result.TeamMembers),
	}

	s.enrichWithCommentary(&snapshot, sprint, result)

	if err := s.upsertSprintMetrics(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// enrichWithCommentary fills the narrative fields. Failures are logged and
// swallowed so the numeric snapshot still gets saved.
func (s *Service) enrichWithCommentary(snapshot *models.SprintMetrics, sprint models.Sprint, result *SprintMetricsResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Uint("sprint_id", sprint.ID).Msg("commentary generation failed")
		}
	}()

	c := GenerateCommentary(sprint, result, time.Now(), s.calendar)
	snapshot.Commentary = c.Commentary
	snapshot.Recommendations = toJSON(c.Recommendations)
	snapshot.Priority = c.Priority
	snapshot.Sentiment = c.Sentiment
}

// RecalculateBoard ensures every sprint of the board has a snapshot, then
// aggregates them. Sprints whose recalculation fails are skipped, not fatal.
func (s *Service) RecalculateBoard(boardID uint) (*models.BoardMetrics, error) {
	var board models.Board
	if err := s.db.First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sprints []models.Sprint
	if err := s.db.Where("board_id = ?", board.ID).
		Order("start_date ASC, jira_id ASC").
		Find(&sprints).Error; err != nil {
		return nil, err
	}

	snapshots := make([]models.SprintMetrics, 0, len(sprints))
	for _, sprint := range sprints {
		var snap models.SprintMetrics
		err := s.db.Where("sprint_id = ?", sprint.ID).First(&snap).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fresh, calcErr := s.RecalculateSprint(sprint.ID)
			if calcErr != nil {
				logger.Warn().Err(calcErr).Uint("sprint_id", sprint.ID).Msg("skipping sprint in board aggregation")
				continue
			}
			snap = *fresh
		} else if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	result := CalculateBoardMetrics(board, sprints, snapshots)

	snapshot := models.BoardMetrics{
		BoardID:      board.ID,
		CalculatedAt: time.Now(),

		AvgVelocity:          result.AvgVelocity,
		AvgChurnRate:         result.AvgChurnRate,
		AvgCompletionRate:    result.AvgCompletionRate,
		AvgCycleTime:         result.AvgCycleTime,
		AvgLeadTime:          result.AvgLeadTime,
		AvgDefectLeakageRate: result.AvgDefectLeakageRate,
		AvgQualityRate:       result.AvgQualityRate,

		TotalSprints:     result.TotalSprints,
		ActiveSprints:    result.ActiveSprints,
		CompletedSprints: result.CompletedSprints,

		PredictedVelocity: result.PredictedVelocity,
		VelocityTrend:     result.VelocityTrend,
		ChurnRateTrend:    result.ChurnRateTrend,

		TeamMembers:      toJSON(result.TeamMembers),
		TotalStoryPoints: result.TotalStoryPoints,
		TotalDefects:     result.TotalDefects,
	}

	if err := s.upsertBoardMetrics(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// RecalculateKanban recomputes the continuous-flow snapshot for a board. A
// board with no issues yields ErrNotFound.
func (s *Service) RecalculateKanban(boardID uint) (*models.KanbanMetrics, error) {
	var board models.Board
	if err := s.db.First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var issues []models.Issue
	if err := s.db.Where("board_id = ?", board.ID).Find(&issues).Error; err != nil {
		return nil, err
	}

	result, err := CalculateKanbanMetrics(issues, time.Now(), s.wipPolicy, s.ratio)
	if err != nil {
		return nil, err
	}

	snapshot := models.KanbanMetrics{
		BoardID:      board.ID,
		CalculatedAt: time.Now(),

		TotalIssues:     result.TotalIssues,
		TodoCount:       result.TodoCount,
		InProgressCount: result.InProgressCount,
		DoneCount:       result.DoneCount,
		BlockedCount:    result.BlockedCount,
		FlaggedCount:    result.FlaggedCount,

		AvgCycleTime:    result.AvgCycleTime,
		MedianCycleTime: result.MedianCycleTime,
		AvgLeadTime:     result.AvgLeadTime,
		MedianLeadTime:  result.MedianLeadTime,

		WeeklyThroughput:  toJSON(result.WeeklyThroughput),
		MonthlyThroughput: toJSON(result.MonthlyThroughput),

		WipViolations:  result.WipViolations,
		WipUtilization: toJSON(result.WipUtilization),

		FlowEfficiency: result.FlowEfficiency,

		AvgAgeInProgress: result.AvgAgeInProgress,
		MaxAgeInProgress: result.MaxAgeInProgress,

		TypeBreakdown:     toJSON(result.TypeBreakdown),
		PriorityBreakdown: toJSON(result.PriorityBreakdown),
		AssigneeBreakdown: toJSON(result.AssigneeBreakdown),

		ColumnMetrics: toJSON(result.ColumnMetrics),
	}

	if err := s.upsertKanbanMetrics(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// RecalculateAllForBoard refreshes whichever pipeline fits the board type.
func (s *Service) RecalculateAllForBoard(boardID uint) error {
	var board models.Board
	if err := s.db.First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if board.Type == "kanban" {
		_, err := s.RecalculateKanban(board.ID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	_, err := s.RecalculateBoard(board.ID)
	return err
}

// loadSprintIssues fetches the issues currently associated with a sprint.
func (s *Service) loadSprintIssues(sprintJiraID int64) ([]models.Issue, error) {
	var issues []models.Issue
	err := s.db.Where("sprint_jira_id = ?", sprintJiraID).Find(&issues).Error
	return issues, err
}

// loadChangelog returns the changelog entries relevant to a sprint's churn:
// any entry moving an issue into or out of the sprint, plus story-point
// changes on the sprint's current issues. It also returns issues referenced
// by the entries but no longer in the sprint, so removed scope keeps its
// story-point weight.
func (s *Service) loadChangelog(sprintJiraID int64, issues []models.Issue) ([]models.ChangelogEntry, []models.Issue, error) {
	issueIDs := make([]uint, 0, len(issues))
	seen := make(map[uint]bool, len(issues))
	for _, issue := range issues {
		issueIDs = append(issueIDs, issue.ID)
		seen[issue.ID] = true
	}

	query := s.db.Where("from_sprint_id = ? OR to_sprint_id = ?", sprintJiraID, sprintJiraID)
	if len(issueIDs) > 0 {
		query = query.Or("change_type = ? AND issue_id IN ?", models.ChangeStoryPointsChanged, issueIDs)
	}

	var entries []models.ChangelogEntry
	if err := query.Order("changed_at ASC").Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	var missing []uint
	for _, entry := range entries {
		if !seen[entry.IssueID] {
			seen[entry.IssueID] = true
			missing = append(missing, entry.IssueID)
		}
	}
	var extra []models.Issue
	if len(missing) > 0 {
		if err := s.db.Where("id IN ?", missing).Find(&extra).Error; err != nil {
			return nil, nil, err
		}
	}
	return entries, extra, nil
}

func (s *Service) upsertSprintMetrics(snapshot *models.SprintMetrics) error {
	var existing models.SprintMetrics
	err := s.db.Where("sprint_id = ?", snapshot.SprintID).First(&existing).Error
	if err == nil {
		snapshot.ID = existing.ID
		snapshot.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.Save(snapshot).Error
}

func (s *Service) upsertBoardMetrics(snapshot *models.BoardMetrics) error {
	var existing models.BoardMetrics
	err := s.db.Where("board_id = ?", snapshot.BoardID).First(&existing).Error
	if err == nil {
		snapshot.ID = existing.ID
		snapshot.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.Save(snapshot).Error
}

func (s *Service) upsertKanbanMetrics(snapshot *models.KanbanMetrics) error {
	var existing models.KanbanMetrics
	err := s.db.Where("board_id = ?", snapshot.BoardID).First(&existing).Error
	if err == nil {
		snapshot.ID = existing.ID
		snapshot.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.Save(snapshot).Error
}

// toJSON serializes breakdown maps and member lists for their text columns.
// The inputs are plain maps and slices, so marshalling cannot fail in
// practice; an error still degrades to an empty string rather than aborting.
func toJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
