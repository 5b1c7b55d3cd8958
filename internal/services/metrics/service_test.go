package metrics

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sprintlens/sprintlens/internal/config"
	"github.com/sprintlens/sprintlens/internal/models"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Board{},
		&models.Sprint{},
		&models.Issue{},
		&models.ChangelogEntry{},
		&models.SprintMetrics{},
		&models.BoardMetrics{},
		&models.KanbanMetrics{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupServiceDB(t)
	return NewService(db, config.MetricsConfig{ActiveTimeRatio: 0.6}), db
}

func seedScrumBoard(t *testing.T, db *gorm.DB) (models.Board, models.Sprint) {
	t.Helper()

	board := models.Board{JiraID: 1, Name: "Platform", Type: "scrum"}
	if err := db.Create(&board).Error; err != nil {
		t.Fatalf("failed to seed board: %v", err)
	}

	start := time.Now().AddDate(0, 0, -14)
	end := time.Now().AddDate(0, 0, -1)
	sprint := models.Sprint{
		JiraID:    100,
		BoardID:   board.ID,
		Name:      "Sprint 1",
		State:     "closed",
		StartDate: &start,
		EndDate:   &end,
	}
	if err := db.Create(&sprint).Error; err != nil {
		t.Fatalf("failed to seed sprint: %v", err)
	}

	created := start.AddDate(0, 0, 1)
	issues := []models.Issue{
		{JiraID: 1001, Key: "PLT-1", BoardID: board.ID, SprintJiraID: i64(100),
			Type: "Story", Status: "Done", StoryPoints: f64(5),
			JiraCreatedAt: created, JiraUpdatedAt: end},
		{JiraID: 1002, Key: "PLT-2", BoardID: board.ID, SprintJiraID: i64(100),
			Type: "Story", Status: "To Do", StoryPoints: f64(3),
			JiraCreatedAt: created, JiraUpdatedAt: end},
	}
	if err := db.Create(&issues).Error; err != nil {
		t.Fatalf("failed to seed issues: %v", err)
	}
	return board, sprint
}

func TestRecalculateSprint_SupersedesPriorSnapshot(t *testing.T) {
	service, db := testService(t)
	_, sprint := seedScrumBoard(t, db)

	first, err := service.RecalculateSprint(sprint.ID)
	if err != nil {
		t.Fatalf("first recalculation failed: %v", err)
	}
	if first.CompletionRate != 62.5 {
		t.Errorf("CompletionRate = %.1f, expected 62.5", first.CompletionRate)
	}

	// Finish the open issue and recalculate: the snapshot row must be
	// replaced in place, not accumulated.
	if err := db.Model(&models.Issue{}).Where("key = ?", "PLT-2").
		Update("status", "Done").Error; err != nil {
		t.Fatalf("failed to update issue: %v", err)
	}

	second, err := service.RecalculateSprint(sprint.ID)
	if err != nil {
		t.Fatalf("second recalculation failed: %v", err)
	}

	var count int64
	db.Model(&models.SprintMetrics{}).Where("sprint_id = ?", sprint.ID).Count(&count)
	if count != 1 {
		t.Fatalf("sprint_metrics rows = %d, expected exactly 1", count)
	}
	if second.ID != first.ID {
		t.Errorf("snapshot ID changed from %d to %d, expected the same row", first.ID, second.ID)
	}

	var stored models.SprintMetrics
	if err := db.Where("sprint_id = ?", sprint.ID).First(&stored).Error; err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	if stored.CompletionRate != 100 {
		t.Errorf("stored CompletionRate = %.1f, expected the superseding value 100", stored.CompletionRate)
	}
	if stored.Velocity != 8 {
		t.Errorf("stored Velocity = %.1f, expected 8", stored.Velocity)
	}
}

func TestRecalculateBoard_SingleSnapshotPerBoard(t *testing.T) {
	service, db := testService(t)
	board, _ := seedScrumBoard(t, db)

	if _, err := service.RecalculateBoard(board.ID); err != nil {
		t.Fatalf("first recalculation failed: %v", err)
	}
	if _, err := service.RecalculateBoard(board.ID); err != nil {
		t.Fatalf("second recalculation failed: %v", err)
	}

	var count int64
	db.Model(&models.BoardMetrics{}).Where("board_id = ?", board.ID).Count(&count)
	if count != 1 {
		t.Errorf("board_metrics rows = %d, expected exactly 1", count)
	}
}

func TestRecalculateKanban_SingleSnapshotPerBoard(t *testing.T) {
	service, db := testService(t)

	board := models.Board{JiraID: 2, Name: "Support", Type: "kanban"}
	if err := db.Create(&board).Error; err != nil {
		t.Fatalf("failed to seed board: %v", err)
	}
	issue := models.Issue{
		JiraID: 2001, Key: "SUP-1", BoardID: board.ID,
		Type: "Task", Status: "In Progress",
		JiraCreatedAt: time.Now().AddDate(0, 0, -3),
		JiraUpdatedAt: time.Now(),
	}
	if err := db.Create(&issue).Error; err != nil {
		t.Fatalf("failed to seed issue: %v", err)
	}

	if _, err := service.RecalculateKanban(board.ID); err != nil {
		t.Fatalf("first recalculation failed: %v", err)
	}
	if _, err := service.RecalculateKanban(board.ID); err != nil {
		t.Fatalf("second recalculation failed: %v", err)
	}

	var count int64
	db.Model(&models.KanbanMetrics{}).Where("board_id = ?", board.ID).Count(&count)
	if count != 1 {
		t.Errorf("kanban_metrics rows = %d, expected exactly 1", count)
	}
}

func TestRecalculateSprint_MissingSprint(t *testing.T) {
	service, _ := testService(t)

	if _, err := service.RecalculateSprint(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, expected ErrNotFound", err)
	}
}
