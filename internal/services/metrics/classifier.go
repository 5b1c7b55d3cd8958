package metrics

import (
	"strings"

	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/pkg/logger"
)

// WorkflowBucket is the coarse workflow position of an issue, derived from
// its free-text status. Unknown statuses land in BucketUncategorized and are
// excluded from the todo/in-progress/done counts.
type WorkflowBucket int

const (
	BucketUncategorized WorkflowBucket = iota
	BucketTodo
	BucketInProgress
	BucketDone
)

var (
	todoKeywords       = []string{"to do", "todo", "backlog"}
	inProgressKeywords = []string{"progress", "development", "review"}
	doneKeywords       = []string{"done", "complete", "closed"}

	// strictCompletedStatuses are the only statuses the sprint engine counts
	// as delivered. This is intentionally stricter than the keyword buckets:
	// a "Ready for release" status is in-flight for a sprint even though a
	// kanban board may treat it as nearly done.
	strictCompletedStatuses = map[string]bool{
		"done":     true,
		"closed":   true,
		"resolved": true,
	}

	// qualityExcludedTypes are issue types that don't represent delivered
	// work units, so they never enter the defect-leakage denominator.
	qualityExcludedTypes = map[string]bool{
		"release": true,
		"spike":   true,
		"bug":     true,
	}
)

// IsSubTask reports whether the issue type names a sub-task, tolerating the
// common separator and casing variants ("Sub-task", "subtask", "Sub task").
// Sub-tasks double-count their parent's work and are excluded from every
// sprint, board and kanban metric.
func IsSubTask(issueType string) bool {
	t := strings.ToLower(issueType)
	t = strings.ReplaceAll(t, "-", "")
	t = strings.ReplaceAll(t, " ", "")
	return t == "subtask"
}

// FilterOutSubTasks returns the issues with sub-tasks removed, preserving
// the relative order of the rest.
func FilterOutSubTasks(issues []models.Issue) []models.Issue {
	filtered := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		if !IsSubTask(issue.Type) {
			filtered = append(filtered, issue)
		}
	}
	if removed := len(issues) - len(filtered); removed > 0 {
		logger.Debug().Int("removed", removed).Msg("excluded sub-tasks from metrics input")
	}
	return filtered
}

// FilterForQualityMetrics returns the issues that count as delivered work
// for quality purposes, excluding Release, Sub-task, Spike and Bug types.
func FilterForQualityMetrics(issues []models.Issue) []models.Issue {
	filtered := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		if IsSubTask(issue.Type) || qualityExcludedTypes[strings.ToLower(issue.Type)] {
			continue
		}
		filtered = append(filtered, issue)
	}
	return filtered
}

// FilterDefectIssues returns the issues typed exactly "Defect". Bugs are
// tracked separately and do not count as process-quality failures.
func FilterDefectIssues(issues []models.Issue) []models.Issue {
	filtered := make([]models.Issue, 0)
	for _, issue := range issues {
		if issue.Type == "Defect" {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// ClassifyWorkflowStatus maps a free-text status to a workflow bucket by
// case-insensitive keyword match. It is total: anything unmatched is
// uncategorized, never an error.
func ClassifyWorkflowStatus(status string) WorkflowBucket {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		return BucketUncategorized
	}
	for _, kw := range doneKeywords {
		if strings.Contains(s, kw) {
			return BucketDone
		}
	}
	for _, kw := range inProgressKeywords {
		if strings.Contains(s, kw) {
			return BucketInProgress
		}
	}
	for _, kw := range todoKeywords {
		if strings.Contains(s, kw) {
			return BucketTodo
		}
	}
	return BucketUncategorized
}

// Two completion policies coexist on purpose. IsStrictlyCompleted is the
// sprint engine's rule: an issue is delivered only when its whole status is
// Done, Closed or Resolved (any casing). IsKeywordCompleted is the kanban
// flow rule: any done-keyword status counts. Unifying them would silently
// change sprint-vs-kanban semantics.

// IsStrictlyCompleted reports whether the status is an exact terminal
// status token (case-insensitive whole-string match).
func IsStrictlyCompleted(status string) bool {
	return strictCompletedStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// IsKeywordCompleted reports whether the status lands in the done bucket.
func IsKeywordCompleted(status string) bool {
	return ClassifyWorkflowStatus(status) == BucketDone
}
