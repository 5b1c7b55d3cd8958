package services

import (
	"testing"

	"github.com/sprintlens/sprintlens/internal/jira"
	"github.com/sprintlens/sprintlens/internal/models"
)

func TestClassifyChange_SprintAdded(t *testing.T) {
	item := jira.ChangeItem{Field: "Sprint", From: "", To: "10", FromString: "", ToString: "Sprint 10"}

	changeType, fromSprint, toSprint, delta := classifyChange(item)

	if changeType != models.ChangeSprintAdded {
		t.Errorf("changeType = %q, expected sprint_added", changeType)
	}
	if fromSprint != nil {
		t.Errorf("fromSprint = %v, expected nil", *fromSprint)
	}
	if toSprint == nil || *toSprint != 10 {
		t.Errorf("toSprint = %v, expected 10", toSprint)
	}
	if delta != nil {
		t.Error("sprint changes must not carry a points delta")
	}
}

func TestClassifyChange_SprintRemoved(t *testing.T) {
	item := jira.ChangeItem{Field: "Sprint", From: "10", To: ""}

	changeType, fromSprint, toSprint, _ := classifyChange(item)

	if changeType != models.ChangeSprintRemoved {
		t.Errorf("changeType = %q, expected sprint_removed", changeType)
	}
	if fromSprint == nil || *fromSprint != 10 {
		t.Errorf("fromSprint = %v, expected 10", fromSprint)
	}
	if toSprint != nil {
		t.Errorf("toSprint = %v, expected nil", *toSprint)
	}
}

func TestClassifyChange_SprintChanged(t *testing.T) {
	// An issue carried over keeps its history: from lists both sprints.
	item := jira.ChangeItem{Field: "Sprint", From: "9", To: "9, 10"}

	changeType, fromSprint, toSprint, _ := classifyChange(item)

	if changeType != models.ChangeSprintChanged {
		t.Errorf("changeType = %q, expected sprint_changed", changeType)
	}
	if fromSprint == nil || *fromSprint != 9 {
		t.Errorf("fromSprint = %v, expected 9", fromSprint)
	}
	if toSprint == nil || *toSprint != 10 {
		t.Errorf("toSprint = %v, expected latest id 10", toSprint)
	}
}

func TestClassifyChange_StoryPoints(t *testing.T) {
	item := jira.ChangeItem{Field: "Story point estimate", FromString: "3", ToString: "8"}

	changeType, _, _, delta := classifyChange(item)

	if changeType != models.ChangeStoryPointsChanged {
		t.Errorf("changeType = %q, expected story_points_changed", changeType)
	}
	if delta == nil || *delta != 5 {
		t.Errorf("delta = %v, expected 5", delta)
	}

	// Cleared estimate: negative delta.
	item = jira.ChangeItem{Field: "Story Points", FromString: "5", ToString: ""}
	_, _, _, delta = classifyChange(item)
	if delta == nil || *delta != -5 {
		t.Errorf("delta = %v, expected -5", delta)
	}
}

func TestClassifyChange_Other(t *testing.T) {
	item := jira.ChangeItem{Field: "status", FromString: "To Do", ToString: "In Progress"}

	changeType, fromSprint, toSprint, delta := classifyChange(item)

	if changeType != models.ChangeOther {
		t.Errorf("changeType = %q, expected other", changeType)
	}
	if fromSprint != nil || toSprint != nil || delta != nil {
		t.Error("other changes must not carry derived fields")
	}
}

func TestParseSprintIDs(t *testing.T) {
	tests := []struct {
		raw      string
		expected []int64
	}{
		{"", nil},
		{"10", []int64{10}},
		{"9, 10", []int64{9, 10}},
		{"9,abc,10", []int64{9, 10}},
	}

	for _, tt := range tests {
		got := parseSprintIDs(tt.raw)
		if len(got) != len(tt.expected) {
			t.Errorf("parseSprintIDs(%q) = %v, expected %v", tt.raw, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("parseSprintIDs(%q)[%d] = %d, expected %d", tt.raw, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestIssueFlags(t *testing.T) {
	tests := []struct {
		status  string
		labels  []string
		blocked bool
		flagged bool
	}{
		{"In Progress", nil, false, false},
		{"Blocked", nil, true, false},
		{"In Progress", []string{"blocked"}, true, false},
		{"In Progress", []string{"flagged"}, false, true},
		{"In Progress", []string{"Impediment"}, false, true},
		{"Blocked", []string{"flagged"}, true, true},
	}

	for _, tt := range tests {
		blocked, flagged := issueFlags(tt.status, tt.labels)
		if blocked != tt.blocked || flagged != tt.flagged {
			t.Errorf("issueFlags(%q, %v) = %v/%v, expected %v/%v",
				tt.status, tt.labels, blocked, flagged, tt.blocked, tt.flagged)
		}
	}
}
