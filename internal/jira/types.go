package jira

import (
	"encoding/json"
	"time"
)

// Timestamp layout used by the Jira REST API.
const timeLayout = "2006-01-02T15:04:05.000-0700"

// JiraTime unmarshals Jira's timestamp format, falling back to RFC 3339 and
// date-only values, which sprint endpoints sometimes return.
type JiraTime struct {
	time.Time
}

func (t *JiraTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{timeLayout, time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	parsed, err := time.Parse(timeLayout, s)
	t.Time = parsed
	return err
}

// Board is one entry from the Agile board list.
type Board struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // scrum, kanban
	Location struct {
		ProjectKey string `json:"projectKey"`
	} `json:"location"`
}

type boardList struct {
	MaxResults int     `json:"maxResults"`
	StartAt    int     `json:"startAt"`
	IsLast     bool    `json:"isLast"`
	Values     []Board `json:"values"`
}

// Sprint is one entry from a board's sprint list.
type Sprint struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	State        string    `json:"state"` // future, active, closed
	Goal         string    `json:"goal"`
	StartDate    *JiraTime `json:"startDate"`
	EndDate      *JiraTime `json:"endDate"`
	CompleteDate *JiraTime `json:"completeDate"`
}

type sprintList struct {
	MaxResults int      `json:"maxResults"`
	StartAt    int      `json:"startAt"`
	IsLast     bool     `json:"isLast"`
	Values     []Sprint `json:"values"`
}

// Issue is a work item with the fields the sync pipeline consumes. Custom
// fields (story points) are captured through the raw fields map.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	Summary   string    `json:"summary"`
	Created   *JiraTime `json:"created"`
	Updated   *JiraTime `json:"updated"`
	Resolved  *JiraTime `json:"resolutiondate"`
	Labels    []string  `json:"labels"`
	IssueType struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Status struct {
		Name string `json:"name"`
	} `json:"status"`
	Priority *struct {
		Name string `json:"name"`
	} `json:"priority"`
	Assignee *struct {
		DisplayName string `json:"displayName"`
	} `json:"assignee"`
	Reporter *struct {
		DisplayName string `json:"displayName"`
	} `json:"reporter"`
	Parent *struct {
		Key string `json:"key"`
	} `json:"parent"`
	Components []struct {
		Name string `json:"name"`
	} `json:"components"`
	Sprint *Sprint `json:"sprint"`

	// Custom fields (the story-point field id varies per site) end up here.
	Custom map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the typed fields and collects customfield_* entries so
// the configured story-point field can be read without a fixed struct tag.
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type alias IssueFields
	var typed alias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = IssueFields(typed)
	f.Custom = map[string]json.RawMessage{}
	for k, v := range raw {
		if len(k) > 12 && k[:12] == "customfield_" {
			f.Custom[k] = v
		}
	}
	return nil
}

// StoryPoints reads the numeric story-point estimate from the named custom
// field, nil when absent or unset.
func (f *IssueFields) StoryPoints(field string) *float64 {
	raw, ok := f.Custom[field]
	if !ok {
		return nil
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

type issueList struct {
	MaxResults int     `json:"maxResults"`
	StartAt    int     `json:"startAt"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// ChangeHistory is one changelog record: an author, a timestamp and the
// field changes made together.
type ChangeHistory struct {
	ID     string    `json:"id"`
	Author *struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Created *JiraTime    `json:"created"`
	Items   []ChangeItem `json:"items"`
}

type ChangeItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type changelogList struct {
	MaxResults int             `json:"maxResults"`
	StartAt    int             `json:"startAt"`
	Total      int             `json:"total"`
	IsLast     bool            `json:"isLast"`
	Values     []ChangeHistory `json:"values"`
}
