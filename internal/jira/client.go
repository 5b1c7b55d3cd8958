package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sprintlens/sprintlens/internal/config"
	"github.com/sprintlens/sprintlens/pkg/logger"
)

const (
	maxAttempts     = 3
	backoffBase     = 300 * time.Millisecond
	defaultPageSize = 50
)

// Client talks to the Jira REST and Agile APIs. Requests pass through a
// shared rate limiter and retry with exponential backoff on 429 and 5xx
// responses. All methods honor the caller's context.
type Client struct {
	baseURL     string
	email       string
	token       string
	pageSize    int
	storyPoints string
	http        *http.Client
	limiter     *rate.Limiter
}

func NewClient(cfg config.JiraConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		email:       cfg.Email,
		token:       cfg.APIToken,
		pageSize:    pageSize,
		storyPoints: cfg.StoryPoints,
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// StoryPointsField returns the configured custom field id for estimates.
func (c *Client) StoryPointsField() string { return c.storyPoints }

// Boards pages through all Agile boards, optionally filtered by type
// ("scrum" or "kanban"; empty for both).
func (c *Client) Boards(ctx context.Context, boardType string) ([]Board, error) {
	var boards []Board
	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(c.pageSize))
		if boardType != "" {
			q.Set("type", boardType)
		}

		var page boardList
		if err := c.get(ctx, "/rest/agile/1.0/board", q, &page); err != nil {
			return nil, err
		}
		boards = append(boards, page.Values...)
		if page.IsLast || len(page.Values) == 0 {
			return boards, nil
		}
		startAt += len(page.Values)
	}
}

// Sprints pages through every sprint of a board, oldest first.
func (c *Client) Sprints(ctx context.Context, boardID int64) ([]Sprint, error) {
	var sprints []Sprint
	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(c.pageSize))

		var page sprintList
		path := "/rest/agile/1.0/board/" + strconv.FormatInt(boardID, 10) + "/sprint"
		if err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		sprints = append(sprints, page.Values...)
		if page.IsLast || len(page.Values) == 0 {
			return sprints, nil
		}
		startAt += len(page.Values)
	}
}

// SprintIssues pages through the issues currently assigned to a sprint.
func (c *Client) SprintIssues(ctx context.Context, sprintID int64) ([]Issue, error) {
	path := "/rest/agile/1.0/sprint/" + strconv.FormatInt(sprintID, 10) + "/issue"
	return c.pagedIssues(ctx, path)
}

// BoardIssues pages through all issues on a board (the kanban pipeline's
// input, where no sprint scoping exists).
func (c *Client) BoardIssues(ctx context.Context, boardID int64) ([]Issue, error) {
	path := "/rest/agile/1.0/board/" + strconv.FormatInt(boardID, 10) + "/issue"
	return c.pagedIssues(ctx, path)
}

func (c *Client) pagedIssues(ctx context.Context, path string) ([]Issue, error) {
	var issues []Issue
	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(c.pageSize))

		var page issueList
		if err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		issues = append(issues, page.Issues...)
		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			return issues, nil
		}
	}
}

// Changelog pages through an issue's full change history, oldest first.
func (c *Client) Changelog(ctx context.Context, issueKey string) ([]ChangeHistory, error) {
	if issueKey == "" {
		return nil, errors.New("jira: empty issue key")
	}
	var histories []ChangeHistory
	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(c.pageSize))

		var page changelogList
		path := "/rest/api/2/issue/" + url.PathEscape(issueKey) + "/changelog"
		if err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		histories = append(histories, page.Values...)
		startAt += len(page.Values)
		if page.IsLast || len(page.Values) == 0 || (page.Total > 0 && startAt >= page.Total) {
			return histories, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if c.baseURL == "" {
		return errors.New("jira: base URL not configured")
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.email != "" {
			req.SetBasicAuth(c.email, c.token)
		} else if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("jira: status %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
			logger.Warn().Int("status", resp.StatusCode).Str("path", path).Int("attempt", attempt+1).Msg("retrying jira request")
			continue
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("jira: status %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
		}

		return json.Unmarshal(body, out)
	}
	return lastErr
}
