package metrics

import (
	"sort"

	"github.com/sprintlens/sprintlens/internal/models"
)

// Story-point size buckets for the points breakdown.
const (
	SizeSmall  = "Small"  // (0, 3]
	SizeMedium = "Medium" // (3, 5]
	SizeLarge  = "Large"  // (5, ∞)
)

// SprintMetricsResult holds the computed metrics for one sprint before they
// are serialized into a persisted snapshot.
type SprintMetricsResult struct {
	Velocity           float64
	ChurnRate          float64
	CompletionRate     float64
	ScopeChangePercent float64

	TotalStoryPoints     float64
	CompletedStoryPoints float64
	AddedStoryPoints     float64
	RemovedStoryPoints   float64
	AddedIssues          int
	RemovedIssues        int
	TotalIssues          int
	CompletedIssues      int

	IssueTypeBreakdown   map[string]int
	PriorityBreakdown    map[string]int
	AssigneeBreakdown    map[string]int
	StoryPointsBreakdown map[string]float64

	AverageCycleTime *float64
	MedianCycleTime  *float64
	AverageLeadTime  *float64
	MedianLeadTime   *float64

	DefectLeakageRate float64
	QualityRate       float64
	TotalDefects      int
	CompletedDefects  int

	TeamMembers []string
}

// CalculateSprintMetrics computes the full metric set for a sprint from its
// current issue set and changelog. Sub-tasks are filtered out first. An
// empty issue set yields a zero-filled result (quality 100) rather than an
// error, so a quiet sprint never breaks board aggregation. Churn comes from
// the changelog when the sprint has a time window and entries exist;
// otherwise the undelivered-scope approximation is used. related carries
// issues the changelog references but that are no longer in the sprint;
// they contribute story points to removed-scope accounting only, never to
// totals or breakdowns.
func CalculateSprintMetrics(sprint models.Sprint, issues []models.Issue, related []models.Issue, entries []models.ChangelogEntry) *SprintMetricsResult {
	issues = FilterOutSubTasks(issues)

	result := &SprintMetricsResult{
		IssueTypeBreakdown:   map[string]int{},
		PriorityBreakdown:    map[string]int{},
		AssigneeBreakdown:    map[string]int{},
		StoryPointsBreakdown: map[string]float64{},
		QualityRate:          100,
		TeamMembers:          []string{},
	}
	if len(issues) == 0 {
		return result
	}

	var cycleSamples []float64
	members := map[string]bool{}

	for _, issue := range issues {
		result.TotalIssues++
		points := 0.0
		if issue.StoryPoints != nil {
			points = *issue.StoryPoints
		}
		result.TotalStoryPoints += points

		completed := IsStrictlyCompleted(issue.Status)
		if completed {
			result.CompletedIssues++
			result.CompletedStoryPoints += points

			if days := durationDays(issue.JiraCreatedAt, completionDate(issue.ResolvedAt, issue.JiraUpdatedAt)); days > 0 {
				cycleSamples = append(cycleSamples, days)
			}
		}

		result.IssueTypeBreakdown[issue.Type]++
		result.PriorityBreakdown[issue.Priority]++
		assignee := issue.Assignee
		if assignee == "" {
			assignee = "Unassigned"
		}
		result.AssigneeBreakdown[assignee]++

		switch {
		case points <= 0: // unestimated, skip
		case points <= 3:
			result.StoryPointsBreakdown[SizeSmall] += points
		case points <= 5:
			result.StoryPointsBreakdown[SizeMedium] += points
		default:
			result.StoryPointsBreakdown[SizeLarge] += points
		}

		if issue.Assignee != "" {
			members[issue.Assignee] = true
		}
		if issue.Reporter != "" {
			members[issue.Reporter] = true
		}
	}

	// Velocity degrades to an issue-count proxy when nothing is estimated.
	if result.TotalStoryPoints > 0 {
		result.Velocity = result.CompletedStoryPoints
		result.CompletionRate = round1(result.CompletedStoryPoints / result.TotalStoryPoints * 100)
	} else {
		result.Velocity = float64(result.CompletedIssues)
	}

	churned := false
	if sprint.StartDate != nil && sprint.EndDate != nil && len(entries) > 0 {
		churn := ComputeChurn(entries, append(issues, related...), sprint.JiraID, *sprint.StartDate, *sprint.EndDate)
		result.AddedStoryPoints = churn.AddedStoryPoints
		result.RemovedStoryPoints = churn.RemovedStoryPoints
		result.AddedIssues = churn.AddedIssues
		result.RemovedIssues = churn.RemovedIssues
		if result.TotalStoryPoints > 0 {
			result.ChurnRate = round1((churn.AddedStoryPoints + churn.RemovedStoryPoints) / result.TotalStoryPoints * 100)
		}
		churned = true
	}
	if !churned && result.TotalStoryPoints > 0 {
		// No changelog window: treat undelivered scope as churned.
		result.ChurnRate = round1((result.TotalStoryPoints - result.CompletedStoryPoints) / result.TotalStoryPoints * 100)
	}
	result.ScopeChangePercent = result.ChurnRate

	// Lead time is creation-to-completion; cycle time uses the same samples
	// until status-transition durations are tracked.
	result.AverageCycleTime = meanOf(cycleSamples)
	result.MedianCycleTime = medianOf(cycleSamples)
	result.AverageLeadTime = meanOf(cycleSamples)
	result.MedianLeadTime = medianOf(cycleSamples)

	defects := FilterDefectIssues(issues)
	result.TotalDefects = len(defects)
	for _, d := range defects {
		if IsStrictlyCompleted(d.Status) {
			result.CompletedDefects++
		}
	}
	if denominator := len(FilterForQualityMetrics(issues)); denominator > 0 {
		result.DefectLeakageRate = round1(float64(result.TotalDefects) / float64(denominator) * 100)
		result.QualityRate = 100 - result.DefectLeakageRate
	}

	for member := range members {
		result.TeamMembers = append(result.TeamMembers, member)
	}
	sort.Strings(result.TeamMembers)

	return result
}
