package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/sprintlens/sprintlens/internal/config"
	"github.com/sprintlens/sprintlens/internal/jira"
	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/internal/services/metrics"
	"github.com/sprintlens/sprintlens/pkg/logger"
)

const syncLockName = "board_sync"

// ErrSyncTooSoon is returned when a board was synced more recently than the
// configured minimum interval and the caller did not force.
var ErrSyncTooSoon = errors.New("board was synced recently")

// SyncService pulls boards, sprints, issues and changelog from the issue
// tracker, persists them, and triggers metric recalculation. Boards are
// processed sequentially; changelog fetching is batched with a delay to
// stay under the external API's limits.
type SyncService struct {
	db      *gorm.DB
	client  *jira.Client
	cfg     config.SyncConfig
	metrics *metrics.Service
	summary *SummaryService

	cronScheduler *cron.Cron
	mu            sync.Mutex // serializes full sync passes
}

func NewSyncService(db *gorm.DB, client *jira.Client, cfg config.SyncConfig, metricsService *metrics.Service, summary *SummaryService) *SyncService {
	return &SyncService{
		db:      db,
		client:  client,
		cfg:     cfg,
		metrics: metricsService,
		summary: summary,
	}
}

// StartScheduler registers the periodic full sync. The DB-backed lock keeps
// multiple instances from syncing concurrently.
func (s *SyncService) StartScheduler(queue TaskQueue) {
	if s.cfg.Cron == "" {
		logger.Infof("[Sync] Scheduler disabled (no cron expression)")
		return
	}

	s.cronScheduler = cron.New()
	_, err := s.cronScheduler.AddFunc(s.cfg.Cron, func() {
		if !s.acquireLock(30 * time.Minute) {
			logger.Infof("[Sync] Another instance holds the sync lock, skipping run")
			return
		}
		defer s.releaseLock()

		if err := s.EnqueueAllBoards(context.Background(), queue, false); err != nil {
			logger.Errorf("[Sync] Scheduled sync failed: %v", err)
		}
	})
	if err != nil {
		logger.Errorf("[Sync] Invalid cron expression %q: %v", s.cfg.Cron, err)
		return
	}

	s.cronScheduler.Start()
	logger.Infof("[Sync] Scheduler started (cron: %s)", s.cfg.Cron)
}

// StopScheduler stops the periodic sync.
func (s *SyncService) StopScheduler() {
	if s.cronScheduler != nil {
		s.cronScheduler.Stop()
	}
}

// EnqueueAllBoards refreshes the board list from the tracker and enqueues
// one sync task per board.
func (s *SyncService) EnqueueAllBoards(ctx context.Context, queue TaskQueue, force bool) error {
	boards, err := s.RefreshBoards(ctx)
	if err != nil {
		return err
	}

	for _, board := range boards {
		task := &SyncTask{BoardID: board.ID, BoardJiraID: board.JiraID, Force: force}
		if err := queue.Enqueue(task); err != nil {
			logger.Errorf("[Sync] Failed to enqueue board %d: %v", board.ID, err)
		}
	}
	return nil
}

// RefreshBoards pulls the board list and upserts local rows. When the
// config names specific board ids, others are ignored.
func (s *SyncService) RefreshBoards(ctx context.Context) ([]models.Board, error) {
	remote, err := s.client.Boards(ctx, "")
	if err != nil {
		return nil, err
	}

	allowed := map[int64]bool{}
	for _, id := range s.cfg.BoardIDs {
		allowed[id] = true
	}

	var boards []models.Board
	for _, rb := range remote {
		if len(allowed) > 0 && !allowed[rb.ID] {
			continue
		}
		board := models.Board{
			JiraID:     rb.ID,
			Name:       rb.Name,
			Type:       rb.Type,
			ProjectKey: rb.Location.ProjectKey,
		}
		var existing models.Board
		err := s.db.Where("jira_id = ?", rb.ID).First(&existing).Error
		if err == nil {
			board.ID = existing.ID
			board.LastSyncedAt = existing.LastSyncedAt
			board.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err := s.db.Save(&board).Error; err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}
	return boards, nil
}

// SyncBoard runs one full synchronization pass for a board and records a
// SyncRun row. Unless forced, boards synced within the minimum interval are
// skipped with ErrSyncTooSoon.
func (s *SyncService) SyncBoard(ctx context.Context, boardID uint, force bool) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var board models.Board
	if err := s.db.First(&board, boardID).Error; err != nil {
		return nil, err
	}

	if !force && board.LastSyncedAt != nil && time.Since(*board.LastSyncedAt) < s.cfg.MinInterval {
		return nil, ErrSyncTooSoon
	}

	run := &models.SyncRun{
		ID:        uuid.NewString(),
		BoardID:   board.ID,
		StartedAt: time.Now(),
	}

	err := s.syncBoardData(ctx, &board, run)

	now := time.Now()
	run.FinishedAt = &now
	run.Success = err == nil
	if err != nil {
		run.Error = err.Error()
		LogError("sync", "board_sync", fmt.Sprintf("sync failed for board %s: %v", board.Name, err), nil)
	} else {
		s.db.Model(&board).Update("last_synced_at", now)
		LogInfo("sync", "board_sync", fmt.Sprintf("synced board %s", board.Name), map[string]int{
			"sprints": run.SprintsSynced,
			"issues":  run.IssuesSynced,
			"entries": run.EntriesSynced,
		})
	}
	if saveErr := s.db.Create(run).Error; saveErr != nil {
		logger.Errorf("[Sync] Failed to record sync run: %v", saveErr)
	}
	if err != nil {
		return run, err
	}

	if recalcErr := s.metrics.RecalculateAllForBoard(board.ID); recalcErr != nil {
		logger.Errorf("[Sync] Metric recalculation failed for board %d: %v", board.ID, recalcErr)
	} else if s.summary != nil && board.Type != "kanban" {
		s.summary.EnrichActiveSprints(ctx, board.ID)
	}

	return run, nil
}

func (s *SyncService) syncBoardData(ctx context.Context, board *models.Board, run *models.SyncRun) error {
	if board.Type == "kanban" {
		issues, err := s.client.BoardIssues(ctx, board.JiraID)
		if err != nil {
			return err
		}
		synced, err := s.upsertIssues(board.ID, nil, issues)
		if err != nil {
			return err
		}
		run.IssuesSynced = synced
		entries, err := s.syncChangelogs(ctx, issues)
		if err != nil {
			return err
		}
		run.EntriesSynced = entries
		return nil
	}

	sprints, err := s.client.Sprints(ctx, board.JiraID)
	if err != nil {
		return err
	}

	var allIssues []jira.Issue
	for _, rs := range sprints {
		sprint, err := s.upsertSprint(board.ID, rs)
		if err != nil {
			return err
		}
		run.SprintsSynced++

		// Future sprints have no issues worth syncing yet.
		if sprint.State == "future" {
			continue
		}

		issues, err := s.client.SprintIssues(ctx, rs.ID)
		if err != nil {
			return err
		}
		sprintID := rs.ID
		synced, err := s.upsertIssues(board.ID, &sprintID, issues)
		if err != nil {
			return err
		}
		run.IssuesSynced += synced
		allIssues = append(allIssues, issues...)
	}

	entries, err := s.syncChangelogs(ctx, allIssues)
	if err != nil {
		return err
	}
	run.EntriesSynced = entries
	return nil
}

func (s *SyncService) upsertSprint(boardID uint, rs jira.Sprint) (*models.Sprint, error) {
	sprint := models.Sprint{
		JiraID:  rs.ID,
		BoardID: boardID,
		Name:    rs.Name,
		State:   rs.State,
		Goal:    rs.Goal,
	}
	if rs.StartDate != nil && !rs.StartDate.IsZero() {
		sprint.StartDate = &rs.StartDate.Time
	}
	if rs.EndDate != nil && !rs.EndDate.IsZero() {
		sprint.EndDate = &rs.EndDate.Time
	}
	if rs.CompleteDate != nil && !rs.CompleteDate.IsZero() {
		sprint.CompleteDate = &rs.CompleteDate.Time
	}

	var existing models.Sprint
	err := s.db.Where("jira_id = ?", rs.ID).First(&existing).Error
	if err == nil {
		sprint.ID = existing.ID
		sprint.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := s.db.Save(&sprint).Error; err != nil {
		return nil, err
	}
	return &sprint, nil
}

func (s *SyncService) upsertIssues(boardID uint, sprintJiraID *int64, issues []jira.Issue) (int, error) {
	pointsField := s.client.StoryPointsField()
	count := 0
	for _, ri := range issues {
		issue, err := s.toIssue(boardID, sprintJiraID, pointsField, ri)
		if err != nil {
			logger.Warnf("[Sync] Skipping malformed issue %s: %v", ri.Key, err)
			continue
		}

		var existing models.Issue
		err = s.db.Where("jira_id = ?", issue.JiraID).First(&existing).Error
		if err == nil {
			issue.ID = existing.ID
			issue.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return count, err
		}
		if err := s.db.Save(issue).Error; err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *SyncService) toIssue(boardID uint, sprintJiraID *int64, pointsField string, ri jira.Issue) (*models.Issue, error) {
	jiraID, err := parseIssueID(ri.ID)
	if err != nil {
		return nil, err
	}

	f := ri.Fields
	issue := &models.Issue{
		JiraID:      jiraID,
		Key:         ri.Key,
		BoardID:     boardID,
		Type:        f.IssueType.Name,
		Status:      f.Status.Name,
		Labels:      strings.Join(f.Labels, ","),
		StoryPoints: f.StoryPoints(pointsField),
	}
	if f.Priority != nil {
		issue.Priority = f.Priority.Name
	}
	if f.Assignee != nil {
		issue.Assignee = f.Assignee.DisplayName
	}
	if f.Reporter != nil {
		issue.Reporter = f.Reporter.DisplayName
	}
	if f.Parent != nil {
		issue.ParentKey = f.Parent.Key
	}
	if len(f.Components) > 0 {
		names := make([]string, len(f.Components))
		for i, c := range f.Components {
			names[i] = c.Name
		}
		issue.Components = strings.Join(names, ",")
	}
	if f.Created != nil {
		issue.JiraCreatedAt = f.Created.Time
	}
	if f.Updated != nil {
		issue.JiraUpdatedAt = f.Updated.Time
	}
	if f.Resolved != nil && !f.Resolved.IsZero() {
		issue.ResolvedAt = &f.Resolved.Time
	}

	// The issue's own sprint field wins over the fetch scope; a kanban
	// fetch passes nil and leaves the association to the field.
	if f.Sprint != nil {
		issue.SprintJiraID = &f.Sprint.ID
	} else if sprintJiraID != nil {
		id := *sprintJiraID
		issue.SprintJiraID = &id
	}

	issue.Blocked, issue.Flagged = issueFlags(issue.Status, f.Labels)
	return issue, nil
}

// syncChangelogs fetches change histories in batches with a delay between
// batches. Only entries newer than what is already stored are appended.
func (s *SyncService) syncChangelogs(ctx context.Context, issues []jira.Issue) (int, error) {
	batch := s.cfg.ChangelogBatch
	if batch <= 0 {
		batch = 20
	}

	total := 0
	for i, ri := range issues {
		if i > 0 && i%batch == 0 && s.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(s.cfg.BatchDelay):
			}
		}

		n, err := s.syncIssueChangelog(ctx, ri)
		if err != nil {
			// One issue's history must not abort the whole pass.
			logger.Warnf("[Sync] Changelog fetch failed for %s: %v", ri.Key, err)
			continue
		}
		total += n
	}
	return total, nil
}

func (s *SyncService) syncIssueChangelog(ctx context.Context, ri jira.Issue) (int, error) {
	jiraID, err := parseIssueID(ri.ID)
	if err != nil {
		return 0, err
	}
	var issue models.Issue
	if err := s.db.Where("jira_id = ?", jiraID).First(&issue).Error; err != nil {
		return 0, err
	}

	histories, err := s.client.Changelog(ctx, ri.Key)
	if err != nil {
		return 0, err
	}

	// Append-only: skip histories at or before the newest stored entry.
	var latest time.Time
	var newest models.ChangelogEntry
	if err := s.db.Where("issue_id = ?", issue.ID).Order("changed_at DESC").First(&newest).Error; err == nil {
		latest = newest.ChangedAt
	}

	count := 0
	for _, history := range histories {
		if history.Created == nil || !history.Created.After(latest) {
			continue
		}
		author := ""
		if history.Author != nil {
			author = history.Author.DisplayName
		}
		for _, item := range history.Items {
			changeType, fromSprint, toSprint, pointsDelta := classifyChange(item)
			entry := models.ChangelogEntry{
				IssueID:      issue.ID,
				Field:        item.Field,
				FromValue:    item.FromString,
				ToValue:      item.ToString,
				Author:       author,
				ChangedAt:    history.Created.Time,
				ChangeType:   changeType,
				FromSprintID: fromSprint,
				ToSprintID:   toSprint,
				PointsDelta:  pointsDelta,
			}
			if err := s.db.Create(&entry).Error; err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func parseIssueID(raw string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(raw, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid issue id %q: %w", raw, err)
	}
	return id, nil
}

// acquireLock takes the DB-backed scheduler lock, stealing it when expired.
func (s *SyncService) acquireLock(ttl time.Duration) bool {
	hostname, _ := os.Hostname()
	owner := fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
	now := time.Now()

	lock := models.SchedulerLock{
		LockName:  syncLockName,
		LockedBy:  owner,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	var existing models.SchedulerLock
	err := s.db.Where("lock_name = ?", syncLockName).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&lock).Error == nil
	}
	if err != nil {
		return false
	}
	if existing.ExpiresAt.After(now) {
		return false
	}

	// Expired: steal it, guarding against a concurrent steal.
	result := s.db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND expires_at <= ?", syncLockName, now).
		Updates(map[string]interface{}{
			"locked_by":  owner,
			"locked_at":  now,
			"expires_at": now.Add(ttl),
		})
	return result.Error == nil && result.RowsAffected == 1
}

func (s *SyncService) releaseLock() {
	s.db.Where("lock_name = ?", syncLockName).Delete(&models.SchedulerLock{})
}
