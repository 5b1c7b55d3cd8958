package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/sprintlens/sprintlens/internal/models"
)

var kanbanNow = time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)

func TestCalculateKanbanMetrics_NoIssues(t *testing.T) {
	_, err := CalculateKanbanMetrics(nil, kanbanNow, nil, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an empty board, got %v", err)
	}

	// Sub-tasks only is the same as empty.
	issues := []models.Issue{{Type: "Sub-task", Status: "Done"}}
	_, err = CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a sub-task-only board, got %v", err)
	}
}

func TestCalculateKanbanMetrics_StatusBuckets(t *testing.T) {
	issues := []models.Issue{
		{Key: "K-1", Type: "Task", Status: "To Do", JiraCreatedAt: kanbanNow.AddDate(0, 0, -1)},
		{Key: "K-2", Type: "Task", Status: "In Progress", Blocked: true, JiraCreatedAt: kanbanNow.AddDate(0, 0, -3)},
		{Key: "K-3", Type: "Task", Status: "In Review", Flagged: true, JiraCreatedAt: kanbanNow.AddDate(0, 0, -5)},
		{Key: "K-4", Type: "Task", Status: "Done", JiraCreatedAt: kanbanNow.AddDate(0, 0, -10), ResolvedAt: tp(kanbanNow.AddDate(0, 0, -2))},
		{Key: "K-5", Type: "Task", Status: "Weird state", JiraCreatedAt: kanbanNow.AddDate(0, 0, -1)},
	}

	m, err := CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.TotalIssues != 5 {
		t.Errorf("TotalIssues = %d, expected 5", m.TotalIssues)
	}
	if m.TodoCount != 1 || m.InProgressCount != 2 || m.DoneCount != 1 {
		t.Errorf("buckets = %d/%d/%d, expected 1/2/1", m.TodoCount, m.InProgressCount, m.DoneCount)
	}
	if m.BlockedCount != 1 || m.FlaggedCount != 1 {
		t.Errorf("blocked/flagged = %d/%d, expected 1/1", m.BlockedCount, m.FlaggedCount)
	}
}

func TestCalculateKanbanMetrics_ThroughputWindowLengths(t *testing.T) {
	issues := []models.Issue{
		{Key: "K-1", Type: "Task", Status: "Done", JiraCreatedAt: kanbanNow.AddDate(0, 0, -30), ResolvedAt: tp(kanbanNow.AddDate(0, 0, -3))},
	}

	m, err := CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(m.WeeklyThroughput) != 12 {
		t.Errorf("WeeklyThroughput length = %d, expected 12", len(m.WeeklyThroughput))
	}
	if len(m.MonthlyThroughput) != 6 {
		t.Errorf("MonthlyThroughput length = %d, expected 6", len(m.MonthlyThroughput))
	}

	// Completed 3 days ago: newest weekly bucket, newest monthly bucket.
	if m.WeeklyThroughput[11] != 1 {
		t.Errorf("WeeklyThroughput = %v, expected the newest bucket to hold the completion", m.WeeklyThroughput)
	}
	if m.MonthlyThroughput[5] != 1 {
		t.Errorf("MonthlyThroughput = %v, expected the newest bucket to hold the completion", m.MonthlyThroughput)
	}

	var weeklyTotal int
	for _, n := range m.WeeklyThroughput {
		weeklyTotal += n
	}
	if weeklyTotal != 1 {
		t.Errorf("weekly buckets must not double-count, total = %d", weeklyTotal)
	}
}

func TestCalculateKanbanMetrics_CompletionAtWindowEdge(t *testing.T) {
	issues := []models.Issue{
		{Key: "K-1", Type: "Task", Status: "Done", JiraCreatedAt: kanbanNow.AddDate(0, 0, -10), ResolvedAt: tp(kanbanNow)},
	}

	m, err := CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Completed exactly at the measurement instant: still part of the
	// newest weekly bucket, counted once.
	if m.WeeklyThroughput[11] != 1 {
		t.Errorf("WeeklyThroughput = %v, expected the newest bucket to include a completion at now", m.WeeklyThroughput)
	}

	var weeklyTotal int
	for _, n := range m.WeeklyThroughput {
		weeklyTotal += n
	}
	if weeklyTotal != 1 {
		t.Errorf("weekly buckets must not double-count, total = %d", weeklyTotal)
	}
	if m.MonthlyThroughput[5] != 1 {
		t.Errorf("MonthlyThroughput = %v, expected the newest bucket to include a completion at now", m.MonthlyThroughput)
	}
}

func TestCalculateKanbanMetrics_WipViolation(t *testing.T) {
	issues := make([]models.Issue, 4)
	for i := range issues {
		issues[i] = models.Issue{
			Key: "K-" + string(rune('1'+i)), Type: "Task", Status: "In Review",
			JiraCreatedAt: kanbanNow.AddDate(0, 0, -2),
		}
	}

	m, err := CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.WipViolations != 1 {
		t.Errorf("WipViolations = %d, expected 1", m.WipViolations)
	}
	u, ok := m.WipUtilization["In Review"]
	if !ok {
		t.Fatalf("expected utilization entry for In Review, got %v", m.WipUtilization)
	}
	if u.Limit != 3 {
		t.Errorf("limit = %d, expected 3 for a review column", u.Limit)
	}
	if u.Utilization != 133.3 {
		t.Errorf("utilization = %.1f, expected 133.3", u.Utilization)
	}

	if len(m.ColumnMetrics) != 1 {
		t.Fatalf("ColumnMetrics length = %d, expected 1", len(m.ColumnMetrics))
	}
	col := m.ColumnMetrics[0]
	if col.Name != "In Review" || !col.WipViolation || col.WipLimit != 3 || col.IssueCount != 4 {
		t.Errorf("unexpected column metric: %+v", col)
	}
}

func TestNewWipLimitPolicy_KeywordTable(t *testing.T) {
	policy := NewWipLimitPolicy(nil)

	tests := []struct {
		column  string
		limit   int
		limited bool
	}{
		{"In Progress", 5, true},
		{"Development", 5, true},
		{"Code Review", 3, true},
		{"Testing", 3, true},
		{"Ready to Deploy", 2, true},
		{"Release", 2, true},
		{"Backlog", 0, false},
		{"Done", 0, false},
	}

	for _, tt := range tests {
		limit, ok := policy(tt.column)
		if ok != tt.limited || limit != tt.limit {
			t.Errorf("policy(%q) = %d/%v, expected %d/%v", tt.column, limit, ok, tt.limit, tt.limited)
		}
	}
}

func TestCalculateKanbanMetrics_FlowEfficiency(t *testing.T) {
	issues := []models.Issue{
		{Key: "K-1", Type: "Task", Status: "Done", JiraCreatedAt: kanbanNow.AddDate(0, 0, -10), ResolvedAt: tp(kanbanNow.AddDate(0, 0, -2))},
		{Key: "K-2", Type: "Task", Status: "Done", JiraCreatedAt: kanbanNow.AddDate(0, 0, -6), ResolvedAt: tp(kanbanNow.AddDate(0, 0, -1))},
	}

	m, err := CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.FlowEfficiency != 60 {
		t.Errorf("FlowEfficiency = %.1f, expected 60 with the default active-time ratio", m.FlowEfficiency)
	}

	m, err = CalculateKanbanMetrics(issues, kanbanNow, nil, 0.4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.FlowEfficiency != 40 {
		t.Errorf("FlowEfficiency = %.1f, expected 40 with a 0.4 ratio", m.FlowEfficiency)
	}
}

func TestCalculateKanbanMetrics_AgeMetrics(t *testing.T) {
	issues := []models.Issue{
		{Key: "K-1", Type: "Task", Status: "In Progress", JiraCreatedAt: kanbanNow.AddDate(0, 0, -4)},
		{Key: "K-2", Type: "Task", Status: "To Do", JiraCreatedAt: kanbanNow.AddDate(0, 0, -10)},
		{Key: "K-3", Type: "Task", Status: "Done", JiraCreatedAt: kanbanNow.AddDate(0, 0, -20), ResolvedAt: tp(kanbanNow.AddDate(0, 0, -15))},
	}

	m, err := CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.AvgAgeInProgress == nil || *m.AvgAgeInProgress != 7 {
		t.Errorf("AvgAgeInProgress = %v, expected 7", m.AvgAgeInProgress)
	}
	if m.MaxAgeInProgress == nil || *m.MaxAgeInProgress != 10 {
		t.Errorf("MaxAgeInProgress = %v, expected 10", m.MaxAgeInProgress)
	}
}

func TestCalculateKanbanMetrics_Idempotent(t *testing.T) {
	issues := []models.Issue{
		{Key: "K-1", Type: "Task", Status: "In Progress", JiraCreatedAt: kanbanNow.AddDate(0, 0, -4)},
		{Key: "K-2", Type: "Story", Status: "Done", Assignee: "alice", JiraCreatedAt: kanbanNow.AddDate(0, 0, -9), ResolvedAt: tp(kanbanNow.AddDate(0, 0, -1))},
	}

	first, err := CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := CalculateKanbanMetrics(issues, kanbanNow, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.FlowEfficiency != second.FlowEfficiency ||
		first.DoneCount != second.DoneCount ||
		len(first.WeeklyThroughput) != len(second.WeeklyThroughput) {
		t.Errorf("identical inputs produced different results:\n%+v\n%+v", first, second)
	}
	for i := range first.WeeklyThroughput {
		if first.WeeklyThroughput[i] != second.WeeklyThroughput[i] {
			t.Errorf("weekly bucket %d differs: %d vs %d", i, first.WeeklyThroughput[i], second.WeeklyThroughput[i])
		}
	}
}
