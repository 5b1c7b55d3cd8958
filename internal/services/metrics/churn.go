package metrics

import (
	"time"

	"github.com/sprintlens/sprintlens/internal/models"
)

// ChurnResult accumulates scope movement in and out of a sprint during its
// time window. All fields are non-negative by construction.
type ChurnResult struct {
	AddedStoryPoints   float64 `json:"added_story_points"`
	RemovedStoryPoints float64 `json:"removed_story_points"`
	AddedIssues        int     `json:"added_issues"`
	RemovedIssues      int     `json:"removed_issues"`
}

// ComputeChurn walks the changelog entries whose timestamp falls inside
// [windowStart, windowEnd] and tallies issues and story points moved into or
// out of the sprint identified by sprintJiraID. The issues slice supplies
// current story points and sprint association; it may contain issues no
// longer in the sprint. An empty changelog yields an all-zero result and the
// caller falls back to the undelivered-scope approximation.
func ComputeChurn(entries []models.ChangelogEntry, issues []models.Issue, sprintJiraID int64, windowStart, windowEnd time.Time) ChurnResult {
	var result ChurnResult
	if len(entries) == 0 {
		return result
	}

	byID := make(map[uint]*models.Issue, len(issues))
	for i := range issues {
		byID[issues[i].ID] = &issues[i]
	}

	points := func(issueID uint) float64 {
		if issue, ok := byID[issueID]; ok && issue.StoryPoints != nil {
			return *issue.StoryPoints
		}
		return 0
	}

	for _, entry := range entries {
		if entry.ChangedAt.Before(windowStart) || entry.ChangedAt.After(windowEnd) {
			continue
		}

		switch entry.ChangeType {
		case models.ChangeSprintAdded:
			if entry.ToSprintID != nil && *entry.ToSprintID == sprintJiraID {
				result.AddedIssues++
				result.AddedStoryPoints += points(entry.IssueID)
			}
		case models.ChangeSprintRemoved:
			if entry.FromSprintID != nil && *entry.FromSprintID == sprintJiraID {
				result.RemovedIssues++
				result.RemovedStoryPoints += points(entry.IssueID)
			}
		case models.ChangeSprintChanged:
			to := entry.ToSprintID != nil && *entry.ToSprintID == sprintJiraID
			from := entry.FromSprintID != nil && *entry.FromSprintID == sprintJiraID
			switch {
			case to && from:
				// moved within the same sprint, no net effect
			case to:
				result.AddedIssues++
				result.AddedStoryPoints += points(entry.IssueID)
			case from:
				result.RemovedIssues++
				result.RemovedStoryPoints += points(entry.IssueID)
			}
		case models.ChangeStoryPointsChanged:
			issue, ok := byID[entry.IssueID]
			if !ok || issue.SprintJiraID == nil || *issue.SprintJiraID != sprintJiraID {
				continue
			}
			if entry.PointsDelta == nil {
				continue
			}
			if delta := *entry.PointsDelta; delta > 0 {
				result.AddedStoryPoints += delta
			} else if delta < 0 {
				result.RemovedStoryPoints += -delta
			}
		}
	}

	return result
}
