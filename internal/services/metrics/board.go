package metrics

import (
	"encoding/json"
	"sort"

	"github.com/sprintlens/sprintlens/internal/models"
)

// Trend tags reflect the raw numeric direction of the recent window; the
// dashboard decides whether "up" is good (velocity) or bad (churn).
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// trendWindow is how many snapshots each side of the trend comparison uses;
// classification needs a full window on both sides.
const trendWindow = 3

// BoardMetricsResult aggregates a board's sprint snapshots.
type BoardMetricsResult struct {
	AvgVelocity          float64
	AvgChurnRate         float64
	AvgCompletionRate    float64
	AvgCycleTime         *float64
	AvgLeadTime          *float64
	AvgDefectLeakageRate float64
	AvgQualityRate       float64

	TotalSprints     int
	ActiveSprints    int
	CompletedSprints int

	PredictedVelocity float64
	VelocityTrend     string
	ChurnRateTrend    string

	TeamMembers      []string
	TotalStoryPoints float64
	TotalDefects     int
}

// CalculateBoardMetrics rolls up sprint snapshots for a board. Snapshots
// must be ordered chronologically (oldest first); trend classification
// compares the most recent three against the three before them and needs at
// least six snapshots to say anything other than stable. A board with no
// snapshots gets a zero-filled result with quality 100.
func CalculateBoardMetrics(board models.Board, sprints []models.Sprint, snapshots []models.SprintMetrics) *BoardMetricsResult {
	result := &BoardMetricsResult{
		VelocityTrend:  TrendStable,
		ChurnRateTrend: TrendStable,
		AvgQualityRate: 100,
		TeamMembers:    []string{},
	}

	result.TotalSprints = len(sprints)
	for _, sprint := range sprints {
		switch sprint.State {
		case "active":
			result.ActiveSprints++
		case "closed":
			result.CompletedSprints++
		}
	}

	if len(snapshots) == 0 {
		return result
	}

	var velocities, churnRates, completionRates, leakageRates, qualityRates []float64
	var cycleTimes, leadTimes []float64
	members := map[string]bool{}

	for _, snap := range snapshots {
		velocities = append(velocities, snap.Velocity)
		churnRates = append(churnRates, snap.ChurnRate)
		completionRates = append(completionRates, snap.CompletionRate)
		leakageRates = append(leakageRates, snap.DefectLeakageRate)
		qualityRates = append(qualityRates, snap.QualityRate)
		if snap.AverageCycleTime != nil {
			cycleTimes = append(cycleTimes, *snap.AverageCycleTime)
		}
		if snap.AverageLeadTime != nil {
			leadTimes = append(leadTimes, *snap.AverageLeadTime)
		}
		result.TotalStoryPoints += snap.TotalStoryPoints
		result.TotalDefects += snap.TotalDefects

		var names []string
		if snap.TeamMembers != "" {
			if err := json.Unmarshal([]byte(snap.TeamMembers), &names); err == nil {
				for _, name := range names {
					members[name] = true
				}
			}
		}
	}

	result.AvgVelocity = round1(mean(velocities))
	result.AvgChurnRate = round1(mean(churnRates))
	result.AvgCompletionRate = round1(mean(completionRates))
	result.AvgDefectLeakageRate = round1(mean(leakageRates))
	result.AvgQualityRate = round1(mean(qualityRates))
	// Boards without timing data contribute nothing, not zero.
	result.AvgCycleTime = meanOf(cycleTimes)
	result.AvgLeadTime = meanOf(leadTimes)

	result.VelocityTrend = classifyTrend(velocities)
	result.ChurnRateTrend = classifyTrend(churnRates)
	result.PredictedVelocity = round1(predictVelocity(velocities))

	for member := range members {
		result.TeamMembers = append(result.TeamMembers, member)
	}
	sort.Strings(result.TeamMembers)

	return result
}

// classifyTrend compares the mean of the newest trendWindow values with the
// mean of the trendWindow values before them. A ±10% band around the
// previous mean counts as stable.
func classifyTrend(values []float64) string {
	if len(values) < 2*trendWindow {
		return TrendStable
	}
	recent := mean(values[len(values)-trendWindow:])
	previous := mean(values[len(values)-2*trendWindow : len(values)-trendWindow])
	switch {
	case recent > previous*1.1:
		return TrendUp
	case recent < previous*0.9:
		return TrendDown
	default:
		return TrendStable
	}
}

// predictVelocity is a naive moving-average forecast: the mean of the last
// three sprint velocities, or the overall mean when fewer exist.
func predictVelocity(velocities []float64) float64 {
	if len(velocities) == 0 {
		return 0
	}
	if len(velocities) < trendWindow {
		return mean(velocities)
	}
	return mean(velocities[len(velocities)-trendWindow:])
}
