package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/duel-api/internal/service"
)

// APIHandler обслуживает HTTP-эндпоинты вне websocket: здоровье
// сервиса и таблицу лидеров
type APIHandler struct {
	ratingService *service.RatingService
}

// NewAPIHandler создает APIHandler
func NewAPIHandler(ratingService *service.RatingService) *APIHandler {
	return &APIHandler{ratingService: ratingService}
}

// Health обрабатывает GET /health
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Leaderboard обрабатывает GET /api/leaderboard?limit=N
func (h *APIHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.ratingService.Leaderboard(limit)
	if err != nil {
		log.Printf("[APIHandler] Ошибка чтения таблицы лидеров: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось получить таблицу лидеров"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
