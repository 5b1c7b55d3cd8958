package metrics

import (
	"testing"

	"github.com/sprintlens/sprintlens/internal/models"
)

func snapshotsWithVelocities(velocities ...float64) []models.SprintMetrics {
	snaps := make([]models.SprintMetrics, len(velocities))
	for i, v := range velocities {
		snaps[i] = models.SprintMetrics{Velocity: v, QualityRate: 100}
	}
	return snaps
}

func TestCalculateBoardMetrics_ZeroSprints(t *testing.T) {
	m := CalculateBoardMetrics(models.Board{Name: "Fresh"}, nil, nil)

	if m.TotalSprints != 0 || m.AvgVelocity != 0 {
		t.Errorf("expected zero-filled result, got %+v", m)
	}
	if m.AvgQualityRate != 100 {
		t.Errorf("AvgQualityRate = %.1f, expected 100", m.AvgQualityRate)
	}
	if m.VelocityTrend != TrendStable || m.ChurnRateTrend != TrendStable {
		t.Errorf("trends should be stable with no data, got %q / %q", m.VelocityTrend, m.ChurnRateTrend)
	}
}

func TestCalculateBoardMetrics_SprintCounts(t *testing.T) {
	sprints := []models.Sprint{
		{State: "closed"}, {State: "closed"}, {State: "active"}, {State: "future"},
	}

	m := CalculateBoardMetrics(models.Board{}, sprints, nil)

	if m.TotalSprints != 4 {
		t.Errorf("TotalSprints = %d, expected 4", m.TotalSprints)
	}
	if m.ActiveSprints != 1 {
		t.Errorf("ActiveSprints = %d, expected 1", m.ActiveSprints)
	}
	if m.CompletedSprints != 2 {
		t.Errorf("CompletedSprints = %d, expected 2", m.CompletedSprints)
	}
}

func TestCalculateBoardMetrics_Averages(t *testing.T) {
	snaps := []models.SprintMetrics{
		{Velocity: 20, ChurnRate: 10, CompletionRate: 80, QualityRate: 90, DefectLeakageRate: 10, TotalStoryPoints: 25, TotalDefects: 2},
		{Velocity: 30, ChurnRate: 20, CompletionRate: 90, QualityRate: 100, DefectLeakageRate: 0, TotalStoryPoints: 35, TotalDefects: 0,
			AverageCycleTime: f64(4), AverageLeadTime: f64(4)},
	}

	m := CalculateBoardMetrics(models.Board{}, nil, snaps)

	if m.AvgVelocity != 25 {
		t.Errorf("AvgVelocity = %.1f, expected 25", m.AvgVelocity)
	}
	if m.AvgChurnRate != 15 {
		t.Errorf("AvgChurnRate = %.1f, expected 15", m.AvgChurnRate)
	}
	if m.AvgCompletionRate != 85 {
		t.Errorf("AvgCompletionRate = %.1f, expected 85", m.AvgCompletionRate)
	}
	// Only one snapshot has timing data; the other contributes nothing.
	if m.AvgCycleTime == nil || *m.AvgCycleTime != 4 {
		t.Errorf("AvgCycleTime = %v, expected 4", m.AvgCycleTime)
	}
	if m.TotalStoryPoints != 60 || m.TotalDefects != 2 {
		t.Errorf("totals = %.1f points / %d defects, expected 60 / 2", m.TotalStoryPoints, m.TotalDefects)
	}
}

func TestCalculateBoardMetrics_TrendNeedsSixSnapshots(t *testing.T) {
	m := CalculateBoardMetrics(models.Board{}, nil, snapshotsWithVelocities(10, 20, 30, 40, 50))

	if m.VelocityTrend != TrendStable {
		t.Errorf("VelocityTrend = %q, expected stable with fewer than 6 snapshots", m.VelocityTrend)
	}
}

func TestCalculateBoardMetrics_TrendClassification(t *testing.T) {
	tests := []struct {
		name       string
		velocities []float64
		expected   string
	}{
		{"up", []float64{10, 10, 10, 20, 20, 20}, TrendUp},
		{"down", []float64{20, 20, 20, 10, 10, 10}, TrendDown},
		{"stable within band", []float64{20, 20, 20, 21, 21, 21}, TrendStable},
		{"boundary not up", []float64{10, 10, 10, 11, 11, 11}, TrendStable}, // exactly +10%
	}

	for _, tt := range tests {
		m := CalculateBoardMetrics(models.Board{}, nil, snapshotsWithVelocities(tt.velocities...))
		if m.VelocityTrend != tt.expected {
			t.Errorf("%s: VelocityTrend = %q, expected %q", tt.name, m.VelocityTrend, tt.expected)
		}
	}
}

func TestCalculateBoardMetrics_PredictedVelocity(t *testing.T) {
	m := CalculateBoardMetrics(models.Board{}, nil, snapshotsWithVelocities(10, 20, 30, 40, 50, 60))
	if m.PredictedVelocity != 50 {
		t.Errorf("PredictedVelocity = %.1f, expected 50 (mean of last three)", m.PredictedVelocity)
	}

	m = CalculateBoardMetrics(models.Board{}, nil, snapshotsWithVelocities(10, 20))
	if m.PredictedVelocity != 15 {
		t.Errorf("PredictedVelocity = %.1f, expected 15 (overall mean with fewer than three)", m.PredictedVelocity)
	}
}

func TestCalculateBoardMetrics_TeamMemberUnion(t *testing.T) {
	snaps := []models.SprintMetrics{
		{TeamMembers: `["alice","bob"]`, QualityRate: 100},
		{TeamMembers: `["bob","carol"]`, QualityRate: 100},
		{TeamMembers: "", QualityRate: 100},
	}

	m := CalculateBoardMetrics(models.Board{}, nil, snaps)

	expected := []string{"alice", "bob", "carol"}
	if len(m.TeamMembers) != len(expected) {
		t.Fatalf("TeamMembers = %v, expected %v", m.TeamMembers, expected)
	}
	for i, name := range expected {
		if m.TeamMembers[i] != name {
			t.Errorf("TeamMembers[%d] = %q, expected %q", i, m.TeamMembers[i], name)
		}
	}
}
