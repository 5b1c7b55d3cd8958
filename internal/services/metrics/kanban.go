package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/sprintlens/sprintlens/internal/models"
)

// WipLimitPolicy resolves a column name to its WIP limit. ok is false for
// unbounded columns.
type WipLimitPolicy func(column string) (limit int, ok bool)

// DefaultWipLimits is the built-in keyword table used when no configuration
// overrides it.
var DefaultWipLimits = map[string]int{
	"progress":    5,
	"development": 5,
	"review":      3,
	"testing":     3,
	"deploy":      2,
	"release":     2,
}

// NewWipLimitPolicy builds a policy from a keyword->limit table: a column is
// limited by the first keyword its lowercased name contains. A nil table
// falls back to DefaultWipLimits.
func NewWipLimitPolicy(table map[string]int) WipLimitPolicy {
	if table == nil {
		table = DefaultWipLimits
	}
	keywords := make([]string, 0, len(table))
	for kw := range table {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords) // deterministic lookup order

	return func(column string) (int, bool) {
		name := strings.ToLower(column)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return table[kw], true
			}
		}
		return 0, false
	}
}

// DefaultActiveTimeRatio is the assumed share of lead time spent on active
// work when status-transition durations are not tracked.
const DefaultActiveTimeRatio = 0.6

// ColumnMetric describes one board column (a distinct status value).
type ColumnMetric struct {
	Name         string   `json:"name"`
	IssueCount   int      `json:"issue_count"`
	AverageAge   *float64 `json:"average_age"` // days, nil when empty
	OldestAge    *float64 `json:"oldest_age"`
	WipLimit     int      `json:"wip_limit"` // 0 means unbounded
	WipViolation bool     `json:"wip_violation"`
}

// WipUtilization is usage of one limited column, as a percentage of its limit.
type WipUtilization struct {
	IssueCount  int     `json:"issue_count"`
	Limit       int     `json:"limit"`
	Utilization float64 `json:"utilization"`
}

// KanbanMetricsResult holds the continuous-flow metrics for a board.
type KanbanMetricsResult struct {
	TotalIssues     int
	TodoCount       int
	InProgressCount int
	DoneCount       int
	BlockedCount    int
	FlaggedCount    int

	AvgCycleTime    *float64
	MedianCycleTime *float64
	AvgLeadTime     *float64
	MedianLeadTime  *float64

	WeeklyThroughput  []int // 12 entries, oldest first
	MonthlyThroughput []int // 6 entries, oldest first

	WipViolations  int
	WipUtilization map[string]WipUtilization

	FlowEfficiency float64

	AvgAgeInProgress *float64
	MaxAgeInProgress *float64

	TypeBreakdown     map[string]int
	PriorityBreakdown map[string]int
	AssigneeBreakdown map[string]int

	ColumnMetrics []ColumnMetric
}

const (
	weeklyBuckets  = 12
	monthlyBuckets = 6
)

// CalculateKanbanMetrics computes flow metrics for a kanban board's issue
// set at the given instant. Sub-tasks are excluded first; a board with no
// remaining issues returns ErrNotFound (an unpopulated board is "not yet set
// up", unlike a quiet sprint which zero-fills). activeRatio is the assumed
// active share of lead time; pass 0 to use DefaultActiveTimeRatio.
func CalculateKanbanMetrics(issues []models.Issue, now time.Time, wipPolicy WipLimitPolicy, activeRatio float64) (*KanbanMetricsResult, error) {
	issues = FilterOutSubTasks(issues)
	if len(issues) == 0 {
		return nil, ErrNotFound
	}
	if wipPolicy == nil {
		wipPolicy = NewWipLimitPolicy(nil)
	}
	if activeRatio <= 0 || activeRatio > 1 {
		activeRatio = DefaultActiveTimeRatio
	}

	result := &KanbanMetricsResult{
		TotalIssues:       len(issues),
		WipUtilization:    map[string]WipUtilization{},
		TypeBreakdown:     map[string]int{},
		PriorityBreakdown: map[string]int{},
		AssigneeBreakdown: map[string]int{},
	}

	var leadSamples []float64
	var ages []float64
	columns := map[string][]models.Issue{}

	for _, issue := range issues {
		switch ClassifyWorkflowStatus(issue.Status) {
		case BucketTodo:
			result.TodoCount++
		case BucketInProgress:
			result.InProgressCount++
		case BucketDone:
			result.DoneCount++
		}
		if issue.Blocked {
			result.BlockedCount++
		}
		if issue.Flagged {
			result.FlaggedCount++
		}

		if isFlowCompleted(issue) {
			if days := durationDays(issue.JiraCreatedAt, completionDate(issue.ResolvedAt, issue.JiraUpdatedAt)); days > 0 {
				leadSamples = append(leadSamples, days)
			}
		} else {
			if age := durationDays(issue.JiraCreatedAt, now); age > 0 {
				ages = append(ages, age)
			}
		}

		result.TypeBreakdown[issue.Type]++
		result.PriorityBreakdown[issue.Priority]++
		assignee := issue.Assignee
		if assignee == "" {
			assignee = "Unassigned"
		}
		result.AssigneeBreakdown[assignee]++

		columns[issue.Status] = append(columns[issue.Status], issue)
	}

	// Cycle time shares the lead-time samples until transitions are tracked.
	result.AvgCycleTime = meanOf(leadSamples)
	result.MedianCycleTime = medianOf(leadSamples)
	result.AvgLeadTime = meanOf(leadSamples)
	result.MedianLeadTime = medianOf(leadSamples)

	result.WeeklyThroughput = weeklyThroughput(issues, now)
	result.MonthlyThroughput = monthlyThroughput(issues, now)

	computeColumns(result, columns, now, wipPolicy)

	// Flow efficiency approximates active time as a fixed share of lead
	// time per completed issue; without transition timestamps the ratio is
	// an assumption, not a measurement.
	if len(leadSamples) > 0 {
		var totalLead, totalActive float64
		for _, lead := range leadSamples {
			totalLead += lead
			totalActive += lead * activeRatio
		}
		result.FlowEfficiency = round1(totalActive / totalLead * 100)
	}

	result.AvgAgeInProgress = meanOf(ages)
	if len(ages) > 0 {
		max := ages[0]
		for _, a := range ages[1:] {
			if a > max {
				max = a
			}
		}
		result.MaxAgeInProgress = &max
	}

	return result, nil
}

// isFlowCompleted is the kanban completion rule: a done-keyword status or a
// recorded resolution both count.
func isFlowCompleted(issue models.Issue) bool {
	return IsKeywordCompleted(issue.Status) || issue.ResolvedAt != nil
}

// weeklyThroughput counts completed issues in twelve consecutive 7-day
// windows walking back from now, oldest bucket first. The length is fixed
// regardless of issue count. Windows are half-open so no completion is
// counted twice; the newest window additionally includes its end, which is
// now itself.
func weeklyThroughput(issues []models.Issue, now time.Time) []int {
	buckets := make([]int, weeklyBuckets)
	for i := 0; i < weeklyBuckets; i++ {
		start := now.AddDate(0, 0, -7*(weeklyBuckets-i))
		end := start.AddDate(0, 0, 7)
		buckets[i] = countCompletedIn(issues, start, end, i == weeklyBuckets-1)
	}
	return buckets
}

// monthlyThroughput counts completed issues per calendar month for the six
// months ending with the current one, oldest first.
func monthlyThroughput(issues []models.Issue, now time.Time) []int {
	buckets := make([]int, monthlyBuckets)
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < monthlyBuckets; i++ {
		start := current.AddDate(0, -(monthlyBuckets - 1 - i), 0)
		end := start.AddDate(0, 1, 0)
		buckets[i] = countCompletedIn(issues, start, end, false)
	}
	return buckets
}

// countCompletedIn counts completions in [start, end), or [start, end] when
// includeEnd is set.
func countCompletedIn(issues []models.Issue, start, end time.Time, includeEnd bool) int {
	count := 0
	for _, issue := range issues {
		if !isFlowCompleted(issue) {
			continue
		}
		done := completionDate(issue.ResolvedAt, issue.JiraUpdatedAt)
		if done.Before(start) {
			continue
		}
		if done.Before(end) || (includeEnd && done.Equal(end)) {
			count++
		}
	}
	return count
}

func computeColumns(result *KanbanMetricsResult, columns map[string][]models.Issue, now time.Time, wipPolicy WipLimitPolicy) {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		issues := columns[name]
		column := ColumnMetric{Name: name, IssueCount: len(issues)}

		var ages []float64
		for _, issue := range issues {
			if age := durationDays(issue.JiraCreatedAt, now); age > 0 {
				ages = append(ages, age)
			}
		}
		column.AverageAge = meanOf(ages)
		if len(ages) > 0 {
			oldest := ages[0]
			for _, a := range ages[1:] {
				if a > oldest {
					oldest = a
				}
			}
			column.OldestAge = &oldest
		}

		if limit, ok := wipPolicy(name); ok {
			column.WipLimit = limit
			column.WipViolation = len(issues) > limit
			if column.WipViolation {
				result.WipViolations++
			}
			result.WipUtilization[name] = WipUtilization{
				IssueCount:  len(issues),
				Limit:       limit,
				Utilization: round1(float64(len(issues)) / float64(limit) * 100),
			}
		}

		result.ColumnMetrics = append(result.ColumnMetrics, column)
	}
}
