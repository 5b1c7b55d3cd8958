package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/internal/services"
)

var startTime = time.Now()

// Metrics returns Prometheus-compatible text format metrics.
func Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "sprintlens_uptime_seconds", "Time since server start in seconds", float64(time.Since(startTime).Seconds()))
	writeGauge(&b, "sprintlens_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "sprintlens_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "sprintlens_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "sprintlens_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	db := models.GetDB()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "sprintlens_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "sprintlens_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
			writeGauge(&b, "sprintlens_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
		}
	}

	// -- Queue metrics --
	taskQueue := services.GetTaskQueue()
	queueAsync := 0.0
	if taskQueue != nil && taskQueue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "sprintlens_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Sync & metrics store --
	if db != nil {
		var boards, sprints, issues, entries int64
		db.Model(&models.Board{}).Count(&boards)
		db.Model(&models.Sprint{}).Count(&sprints)
		db.Model(&models.Issue{}).Count(&issues)
		db.Model(&models.ChangelogEntry{}).Count(&entries)

		writeGauge(&b, "sprintlens_boards_total", "Number of boards tracked", float64(boards))
		writeGauge(&b, "sprintlens_sprints_total", "Number of sprints synced", float64(sprints))
		writeGauge(&b, "sprintlens_issues_total", "Number of issues synced", float64(issues))
		writeGauge(&b, "sprintlens_changelog_entries_total", "Number of changelog entries stored", float64(entries))

		var sprintSnapshots, boardSnapshots, kanbanSnapshots int64
		db.Model(&models.SprintMetrics{}).Count(&sprintSnapshots)
		db.Model(&models.BoardMetrics{}).Count(&boardSnapshots)
		db.Model(&models.KanbanMetrics{}).Count(&kanbanSnapshots)

		writeGauge(&b, "sprintlens_sprint_snapshots_total", "Number of sprint metric snapshots", float64(sprintSnapshots))
		writeGauge(&b, "sprintlens_board_snapshots_total", "Number of board metric snapshots", float64(boardSnapshots))
		writeGauge(&b, "sprintlens_kanban_snapshots_total", "Number of kanban metric snapshots", float64(kanbanSnapshots))

		// Sync runs (last 24h)
		since24h := time.Now().Add(-24 * time.Hour)
		var runs24h, failed24h int64
		db.Model(&models.SyncRun{}).Where("started_at >= ?", since24h).Count(&runs24h)
		db.Model(&models.SyncRun{}).Where("started_at >= ? AND success = ?", since24h, false).Count(&failed24h)
		writeGauge(&b, "sprintlens_sync_runs_24h", "Sync runs in the last 24 hours", float64(runs24h))
		writeGauge(&b, "sprintlens_sync_runs_failed_24h", "Failed sync runs in the last 24 hours", float64(failed24h))

		// Users
		var userCount int64
		db.Model(&models.User{}).Where("is_active = ?", true).Count(&userCount)
		writeGauge(&b, "sprintlens_users_active", "Number of active users", float64(userCount))
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
