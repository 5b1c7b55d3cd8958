package services

import (
	"strconv"
	"strings"

	"github.com/sprintlens/sprintlens/internal/jira"
	"github.com/sprintlens/sprintlens/internal/models"
)

// classifyChange derives the stored change classification from one raw
// changelog item: which sprint an issue moved into or out of, or how its
// estimate changed. Everything else is "other".
func classifyChange(item jira.ChangeItem) (changeType string, fromSprint, toSprint *int64, pointsDelta *float64) {
	field := strings.ToLower(item.Field)

	switch {
	case field == "sprint":
		fromIDs := parseSprintIDs(item.From)
		toIDs := parseSprintIDs(item.To)
		fromSprint = lastID(fromIDs)
		toSprint = lastID(toIDs)
		switch {
		case len(fromIDs) == 0 && len(toIDs) > 0:
			changeType = models.ChangeSprintAdded
		case len(fromIDs) > 0 && len(toIDs) == 0:
			changeType = models.ChangeSprintRemoved
		case len(fromIDs) > 0 && len(toIDs) > 0:
			changeType = models.ChangeSprintChanged
		default:
			changeType = models.ChangeOther
		}
	case strings.Contains(field, "story point"):
		from := parsePoints(item.FromString)
		to := parsePoints(item.ToString)
		delta := to - from
		pointsDelta = &delta
		changeType = models.ChangeStoryPointsChanged
	default:
		changeType = models.ChangeOther
	}
	return
}

// parseSprintIDs reads a comma-separated sprint id list as Jira reports it
// in changelog from/to values ("10" or "9, 10"). Malformed tokens are
// dropped.
func parseSprintIDs(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var ids []int64
	for _, token := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// lastID returns the most recent sprint in the list; an issue moved across
// several sprints keeps its latest association.
func lastID(ids []int64) *int64 {
	if len(ids) == 0 {
		return nil
	}
	id := ids[len(ids)-1]
	return &id
}

func parsePoints(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

// issueFlags derives the blocked/flagged booleans from status and labels.
func issueFlags(status string, labels []string) (blocked, flagged bool) {
	if strings.Contains(strings.ToLower(status), "blocked") {
		blocked = true
	}
	for _, label := range labels {
		switch strings.ToLower(label) {
		case "blocked":
			blocked = true
		case "flagged", "impediment":
			flagged = true
		}
	}
	return
}
