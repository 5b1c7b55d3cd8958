package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"

	"github.com/sprintlens/sprintlens/internal/models"
)

// Priority and sentiment tags attached to a sprint commentary.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"

	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentWarning  = "warning"
	SentimentNegative = "negative"
)

// Commentary is the narrative enrichment derived from a sprint's numbers.
type Commentary struct {
	Commentary      string
	Recommendations []string
	Priority        string
	Sentiment       string
}

// severities holds the per-dimension scores, 0 (best) to 4 (worst).
type severities struct {
	velocity   int
	completion int
	churn      int
	scope      int
	cycleTime  int
	leadTime   int
	quality    int
}

func (s severities) mean() float64 {
	return float64(s.velocity+s.completion+s.churn+s.scope+s.cycleTime+s.leadTime+s.quality) / 7
}

// GenerateCommentary renders the narrative, recommendations and
// priority/sentiment tags for a sprint's metrics. calendar may be nil, in
// which case the active-sprint outlook falls back to weekend-only skipping.
// The function is pure given a fixed now.
func GenerateCommentary(sprint models.Sprint, m *SprintMetricsResult, now time.Time, calendar *cal.BusinessCalendar) Commentary {
	active := sprint.State == "active"
	progress, hasProgress := sprintProgress(sprint, now)

	sev := scoreSeverities(m, active, progress, hasProgress)
	meanSev := sev.mean()

	c := Commentary{
		Sentiment: sentimentFor(meanSev),
		Priority:  priorityFor(meanSev, sev, active),
	}

	var parts []string

	// Fixed narrative order: status, overall performance, churn,
	// completion gap, scope, cycle time, quality, active outlook.
	parts = append(parts, statusSentence(sprint, progress, hasProgress))
	parts = append(parts, overallSentence(m))

	if sev.churn >= 1 && (m.AddedStoryPoints > 0 || m.RemovedStoryPoints > 0) {
		parts = append(parts, fmt.Sprintf("Scope churn reached %.1f%% of committed points (%.1f added, %.1f removed).",
			m.ChurnRate, m.AddedStoryPoints, m.RemovedStoryPoints))
	}

	if gap := completionGapSentence(m, active, progress, hasProgress); gap != "" {
		parts = append(parts, gap)
	}

	if sev.scope >= 1 && m.ScopeChangePercent > 0 {
		parts = append(parts, fmt.Sprintf("Overall scope changed by %.1f%% since the sprint was planned.", m.ScopeChangePercent))
	}

	if sev.cycleTime >= 1 && m.AverageCycleTime != nil {
		parts = append(parts, fmt.Sprintf("Average cycle time is %.1f days per completed issue.", *m.AverageCycleTime))
	}

	if sev.quality >= 1 && m.TotalDefects > 0 {
		parts = append(parts, fmt.Sprintf("%d defects were found among the delivered work (leakage %.1f%%).",
			m.TotalDefects, m.DefectLeakageRate))
	}

	if active {
		if outlook := outlookSentence(sprint, m, now, progress, hasProgress, calendar); outlook != "" {
			parts = append(parts, outlook)
		}
	}

	c.Commentary = strings.Join(parts, " ")
	c.Recommendations = recommendationsFor(sev, active)
	return c
}

// sprintProgress returns the elapsed share of the sprint window as a
// percentage, clamped to [0, 100].
func sprintProgress(sprint models.Sprint, now time.Time) (float64, bool) {
	if sprint.StartDate == nil || sprint.EndDate == nil {
		return 0, false
	}
	total := sprint.EndDate.Sub(*sprint.StartDate)
	if total <= 0 {
		return 0, false
	}
	elapsed := now.Sub(*sprint.StartDate)
	progress := float64(elapsed) / float64(total) * 100
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return progress, true
}

func scoreSeverities(m *SprintMetricsResult, active bool, progress float64, hasProgress bool) severities {
	var sev severities

	if m.TotalStoryPoints > 0 {
		efficiency := m.Velocity / m.TotalStoryPoints * 100
		sev.velocity = stepDescending(efficiency, 95, 80, 65, 45)
	}

	if active && hasProgress {
		// An active sprint is judged against elapsed time, not an absolute
		// bar: severity grows with the points the team is trailing by.
		gap := progress - m.CompletionRate
		switch {
		case gap <= 5:
			sev.completion = 0
		case gap <= 15:
			sev.completion = 1
		case gap <= 30:
			sev.completion = 2
		default:
			sev.completion = 3
		}
	} else {
		sev.completion = stepDescending(m.CompletionRate, 90, 75, 60, 40)
	}

	sev.churn = stepAscending(m.ChurnRate, 5, 15, 25, 40)

	switch {
	case m.ScopeChangePercent < 5:
		sev.scope = 0
	case m.ScopeChangePercent < 15:
		sev.scope = 1
	case m.ScopeChangePercent < 30:
		sev.scope = 2
	default:
		sev.scope = 3
	}

	// Missing timing data carries no penalty.
	if m.AverageCycleTime != nil {
		switch ct := *m.AverageCycleTime; {
		case ct <= 2:
			sev.cycleTime = 0
		case ct <= 5:
			sev.cycleTime = 1
		case ct <= 10:
			sev.cycleTime = 2
		default:
			sev.cycleTime = 3
		}
	}
	if m.AverageLeadTime != nil {
		switch lt := *m.AverageLeadTime; {
		case lt <= 5:
			sev.leadTime = 0
		case lt <= 10:
			sev.leadTime = 1
		case lt <= 20:
			sev.leadTime = 2
		default:
			sev.leadTime = 3
		}
	}

	sev.quality = stepDescending(m.QualityRate, 95, 90, 80, 70)

	return sev
}

// stepDescending scores a "higher is better" value: 0 when >= t0, rising to
// 4 when below t3.
func stepDescending(v, t0, t1, t2, t3 float64) int {
	switch {
	case v >= t0:
		return 0
	case v >= t1:
		return 1
	case v >= t2:
		return 2
	case v >= t3:
		return 3
	default:
		return 4
	}
}

// stepAscending scores a "lower is better" value.
func stepAscending(v, t0, t1, t2, t3 float64) int {
	switch {
	case v < t0:
		return 0
	case v < t1:
		return 1
	case v < t2:
		return 2
	case v < t3:
		return 3
	default:
		return 4
	}
}

func sentimentFor(meanSev float64) string {
	switch {
	case meanSev >= 3:
		return SentimentNegative
	case meanSev >= 2:
		return SentimentWarning
	case meanSev <= 0.5:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

func priorityFor(meanSev float64, sev severities, active bool) string {
	priority := PriorityLow
	switch {
	case meanSev >= 3:
		priority = PriorityCritical
	case meanSev >= 2:
		priority = PriorityHigh
	}

	// Single bad dimensions escalate even when the mean looks calm.
	if sev.quality >= 3 {
		return PriorityCritical
	}
	if priority == PriorityCritical {
		return priority
	}
	if sev.churn >= 3 || sev.scope >= 2 || sev.cycleTime >= 3 || sev.quality >= 2 || (active && sev.completion >= 3) {
		return PriorityHigh
	}
	return priority
}

func statusSentence(sprint models.Sprint, progress float64, hasProgress bool) string {
	switch sprint.State {
	case "active":
		if hasProgress {
			return fmt.Sprintf("Sprint %q is active, %.0f%% of its window elapsed.", sprint.Name, progress)
		}
		return fmt.Sprintf("Sprint %q is active.", sprint.Name)
	case "closed":
		return fmt.Sprintf("Sprint %q is closed.", sprint.Name)
	default:
		return fmt.Sprintf("Sprint %q has not started.", sprint.Name)
	}
}

func overallSentence(m *SprintMetricsResult) string {
	if m.TotalStoryPoints > 0 {
		return fmt.Sprintf("The team completed %.1f of %.1f committed story points (%.1f%%), across %d of %d issues.",
			m.CompletedStoryPoints, m.TotalStoryPoints, m.CompletionRate, m.CompletedIssues, m.TotalIssues)
	}
	return fmt.Sprintf("No story-point estimates are present; %d of %d issues are complete (velocity counted in issues: %.0f).",
		m.CompletedIssues, m.TotalIssues, m.Velocity)
}

// completionGapSentence flags when issue completion and story-point
// completion diverge (large items staying open), or an active sprint
// trailing its timeline.
func completionGapSentence(m *SprintMetricsResult, active bool, progress float64, hasProgress bool) string {
	if active && hasProgress {
		if gap := progress - m.CompletionRate; gap > 5 {
			return fmt.Sprintf("Completion is trailing sprint progress by %.0f percentage points.", gap)
		}
	}
	if m.TotalIssues > 0 && m.TotalStoryPoints > 0 {
		issueRate := float64(m.CompletedIssues) / float64(m.TotalIssues) * 100
		if diff := issueRate - m.CompletionRate; diff > 20 {
			return "Issues are closing faster than story points, which suggests the largest items are still open."
		}
	}
	return ""
}

func outlookSentence(sprint models.Sprint, m *SprintMetricsResult, now time.Time, progress float64, hasProgress bool, calendar *cal.BusinessCalendar) string {
	if sprint.EndDate == nil || !now.Before(*sprint.EndDate) {
		return ""
	}
	days := workingDaysBetween(now, *sprint.EndDate, calendar)
	if !hasProgress || progress <= 0 {
		return fmt.Sprintf("%d working days remain in the sprint.", days)
	}
	projected := m.CompletedStoryPoints / (progress / 100)
	return fmt.Sprintf("%d working days remain; at the current pace the sprint projects to roughly %.0f story points.", days, projected)
}

// workingDaysBetween counts workdays in (from, to]. Without a calendar only
// weekends are skipped.
func workingDaysBetween(from, to time.Time, calendar *cal.BusinessCalendar) int {
	days := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if calendar != nil {
			if calendar.IsWorkday(d) {
				days++
			}
		} else if !cal.IsWeekend(d) {
			days++
		}
	}
	return days
}

func recommendationsFor(sev severities, active bool) []string {
	recs := []string{}
	if sev.churn >= 2 || sev.scope >= 2 {
		recs = append(recs, "Review mid-sprint scope changes with the product owner and tighten sprint-planning commitments.")
	}
	if sev.completion >= 2 {
		if active {
			recs = append(recs, "Re-check sprint scope against remaining capacity and consider descoping at-risk items.")
		} else {
			recs = append(recs, "Run a retrospective on why committed work was not completed.")
		}
	}
	if sev.cycleTime >= 2 || sev.leadTime >= 2 {
		recs = append(recs, "Break down large issues; long cycle times usually point at oversized work items or hidden blockers.")
	}
	if sev.quality >= 2 {
		recs = append(recs, "Schedule root-cause analysis for recent defects and reinforce definition-of-done checks.")
	}
	if sev.velocity >= 3 {
		recs = append(recs, "Compare committed versus historical velocity; the sprint may be consistently overcommitted.")
	}
	return recs
}
