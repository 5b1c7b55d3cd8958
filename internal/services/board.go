package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/sprintlens/sprintlens/internal/models"
)

var ErrBoardNotFound = errors.New("board not found")

// BoardService serves the dashboard's read endpoints.
type BoardService struct {
	db *gorm.DB
}

func NewBoardService(db *gorm.DB) *BoardService {
	return &BoardService{db: db}
}

type BoardListRequest struct {
	Type     string `form:"type"` // scrum, kanban
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
}

type BoardListResponse struct {
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Items    []models.Board `json:"items"`
}

func (s *BoardService) List(req *BoardListRequest) (*BoardListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.Board{})
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var boards []models.Board
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("name ASC").Offset(offset).Limit(req.PageSize).Find(&boards).Error; err != nil {
		return nil, err
	}

	return &BoardListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    boards,
	}, nil
}

func (s *BoardService) Get(boardID uint) (*models.Board, error) {
	var board models.Board
	if err := s.db.First(&board, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, err
	}
	return &board, nil
}

// Sprints returns a board's sprints, newest first.
func (s *BoardService) Sprints(boardID uint) ([]models.Sprint, error) {
	var sprints []models.Sprint
	err := s.db.Where("board_id = ?", boardID).
		Order("start_date DESC, jira_id DESC").
		Find(&sprints).Error
	return sprints, err
}

func (s *BoardService) GetSprint(sprintID uint) (*models.Sprint, error) {
	var sprint models.Sprint
	if err := s.db.First(&sprint, sprintID).Error; err != nil {
		return nil, err
	}
	return &sprint, nil
}

// SprintIssues returns the issues currently associated with a sprint.
func (s *BoardService) SprintIssues(sprintID uint) ([]models.Issue, error) {
	var sprint models.Sprint
	if err := s.db.First(&sprint, sprintID).Error; err != nil {
		return nil, err
	}
	var issues []models.Issue
	err := s.db.Where("sprint_jira_id = ?", sprint.JiraID).
		Order("jira_created_at ASC").
		Find(&issues).Error
	return issues, err
}

// BoardIssues returns all issues on a board.
func (s *BoardService) BoardIssues(boardID uint) ([]models.Issue, error) {
	var issues []models.Issue
	err := s.db.Where("board_id = ?", boardID).
		Order("jira_created_at ASC").
		Find(&issues).Error
	return issues, err
}

// SyncRuns returns the most recent sync runs for a board.
func (s *BoardService) SyncRuns(boardID uint, limit int) ([]models.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.SyncRun
	err := s.db.Where("board_id = ?", boardID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
