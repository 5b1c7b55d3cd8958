package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"gorm.io/gorm"

	"github.com/sprintlens/sprintlens/internal/config"
	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/pkg/logger"
)

// SummaryService appends an AI-written summary to sprint commentary. It is
// strictly best-effort: any failure is logged and the numeric snapshot is
// left untouched. A missing API key disables the service.
type SummaryService struct {
	db     *gorm.DB
	client *openai.Client
	model  string
}

func NewSummaryService(db *gorm.DB, cfg config.OpenAIConfig) *SummaryService {
	if cfg.APIKey == "" {
		return nil
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &SummaryService{
		db:     db,
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

// EnrichActiveSprints summarizes the active sprints of a board.
func (s *SummaryService) EnrichActiveSprints(ctx context.Context, boardID uint) {
	var sprints []models.Sprint
	if err := s.db.Where("board_id = ? AND state = ?", boardID, "active").Find(&sprints).Error; err != nil {
		logger.Warnf("[Summary] Failed to load active sprints for board %d: %v", boardID, err)
		return
	}
	for _, sprint := range sprints {
		s.EnrichSprint(ctx, sprint.ID)
	}
}

// EnrichSprint asks the model for a short narrative over the stored
// snapshot and appends it to the commentary.
func (s *SummaryService) EnrichSprint(ctx context.Context, sprintID uint) {
	var snapshot models.SprintMetrics
	if err := s.db.Where("sprint_id = ?", sprintID).First(&snapshot).Error; err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: s.buildPrompt(&snapshot),
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		logger.Warnf("[Summary] OpenAI API error for sprint %d: %v", sprintID, err)
		return
	}
	if len(resp.Choices) == 0 {
		return
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return
	}

	commentary := snapshot.Commentary
	if commentary != "" {
		commentary += "\n\n"
	}
	commentary += text
	if err := s.db.Model(&snapshot).Update("commentary", commentary).Error; err != nil {
		logger.Warnf("[Summary] Failed to store summary for sprint %d: %v", sprintID, err)
	}
}

func (s *SummaryService) buildPrompt(m *models.SprintMetrics) string {
	return fmt.Sprintf(`You are an agile coach. Write a concise two-sentence assessment of this sprint for a team dashboard. No headings, no bullet points.

velocity: %.1f
completion rate: %.1f%%
churn rate: %.1f%%
total story points: %.1f
completed story points: %.1f
total issues: %d
completed issues: %d
defects: %d
quality rate: %.1f%%`,
		m.Velocity, m.CompletionRate, m.ChurnRate,
		m.TotalStoryPoints, m.CompletedStoryPoints,
		m.TotalIssues, m.CompletedIssues,
		m.TotalDefects, m.QualityRate)
}
