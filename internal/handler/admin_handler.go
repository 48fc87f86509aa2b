package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/microlearn-api/internal/domain/entity"
	"github.com/yourusername/microlearn-api/internal/handler/dto"
	apperrors "github.com/yourusername/microlearn-api/internal/pkg/errors"
	"github.com/yourusername/microlearn-api/internal/service"
)

// StatsReader — статистика пула вопросов
type StatsReader interface {
	QuestionStats(ctx context.Context, tier *entity.Tier) ([]service.QuestionStat, error)
	PoolStats(ctx context.Context, perSession map[entity.Tier]int) ([]service.PoolStats, error)
}

// ChallengeCreator — создание челленджей
type ChallengeCreator interface {
	CreateChallenge(ctx context.Context, input service.CreateChallengeInput) (*entity.Challenge, error)
}

// AdminHandler обрабатывает административные запросы
type AdminHandler struct {
	stats      StatsReader
	challenges ChallengeCreator
	perSession map[entity.Tier]int
}

// NewAdminHandler создает новый административный обработчик.
// perSession — сколько вопросов берёт сессия каждого уровня.
func NewAdminHandler(stats StatsReader, challenges ChallengeCreator, perSession map[entity.Tier]int) *AdminHandler {
	return &AdminHandler{
		stats:      stats,
		challenges: challenges,
		perSession: perSession,
	}
}

var questionStatsHeaders = []string{"ID", "Уровень", "Тема", "Вопрос", "Активен", "Показов", "Правильных", "Точность, %"}

// ExportQuestionStats выгружает статистику вопросов в CSV, Excel или JSON
// GET /api/admin/questions/stats?format=csv|xlsx|json&tier=easy
func (h *AdminHandler) ExportQuestionStats(c *gin.Context) {
	var tier *entity.Tier
	if raw := c.Query("tier"); raw != "" {
		parsed, err := entity.ParseTier(raw)
		if err != nil {
			handleAppError(c, "AdminHandler", fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
			return
		}
		tier = &parsed
	}

	stats, err := h.stats.QuestionStats(c.Request.Context(), tier)
	if err != nil {
		handleAppError(c, "AdminHandler", err)
		return
	}

	filename := fmt.Sprintf("question_stats_%s", time.Now().Format("2006-01-02"))
	if tier != nil {
		filename = fmt.Sprintf("question_stats_%s_%s", tier, time.Now().Format("2006-01-02"))
	}

	switch c.DefaultQuery("format", "csv") {
	case "xlsx":
		h.exportXLSX(c, stats, filename)
	case "json":
		c.JSON(http.StatusOK, gin.H{"questions": stats})
	default:
		h.exportCSV(c, stats, filename)
	}
}

// exportCSV экспортирует статистику в CSV с правильным экранированием спецсимволов
func (h *AdminHandler) exportCSV(c *gin.Context, stats []service.QuestionStat, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(questionStatsHeaders)
	for _, s := range stats {
		writer.Write([]string{
			strconv.FormatUint(uint64(s.ID), 10),
			s.Tier.String(),
			sanitizeForExcel(s.Topic),
			sanitizeForExcel(s.Text),
			yesNo(s.IsActive),
			strconv.FormatInt(s.TimesShown, 10),
			strconv.FormatInt(s.TimesCorrect, 10),
			strconv.FormatFloat(s.AccuracyPercent, 'f', 1, 64),
		})
	}
}

// exportXLSX экспортирует статистику в Excel с использованием StreamWriter
func (h *AdminHandler) exportXLSX(c *gin.Context, stats []service.QuestionStat, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Вопросы"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := make([]interface{}, 0, len(questionStatsHeaders))
	for _, title := range questionStatsHeaders {
		headers = append(headers, title)
	}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminHandler] Ошибка записи заголовков: %v", err)
	}

	for i, s := range stats {
		rowNum := i + 2 // Первая строка занята заголовками
		row := []interface{}{s.ID, s.Tier.String(), sanitizeForExcel(s.Topic), sanitizeForExcel(s.Text),
			yesNo(s.IsActive), s.TimesShown, s.TimesCorrect, s.AccuracyPercent}
		if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), row); err != nil {
			log.Printf("[AdminHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminHandler] Ошибка при Flush: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminHandler] Ошибка записи Excel в response: %v", err)
	}
}

// GetPoolStats возвращает размер активного пула по уровням
// GET /api/admin/questions/pool
func (h *AdminHandler) GetPoolStats(c *gin.Context) {
	stats, err := h.stats.PoolStats(c.Request.Context(), h.perSession)
	if err != nil {
		handleAppError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": stats})
}

// CreateChallenge создает челлендж
// POST /api/admin/challenges
func (h *AdminHandler) CreateChallenge(c *gin.Context) {
	var req dto.CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.CreateChallengeInput{
		Title:        req.Title,
		Kind:         entity.ChallengeKind(req.Kind),
		Target:       req.Target,
		RewardPoints: req.RewardPoints,
		RewardXP:     req.RewardXP,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
	}
	if req.Tier != "" {
		tier, err := entity.ParseTier(req.Tier)
		if err != nil {
			handleAppError(c, "AdminHandler", fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
			return
		}
		input.Tier = &tier
	}

	challenge, err := h.challenges.CreateChallenge(c.Request.Context(), input)
	if err != nil {
		handleAppError(c, "AdminHandler", err)
		return
	}

	c.JSON(http.StatusCreated, challenge)
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "Да"
	}
	return "Нет"
}
