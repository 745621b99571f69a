package repository

import (
	"github.com/yourusername/duel-api/internal/domain/entity"
)

// MatchRepository определяет методы для работы с сохранёнными матчами
type MatchRepository interface {
	// Create сохраняет новую запись матча при его старте
	Create(match *entity.Match) error

	// GetByID возвращает матч по ID
	GetByID(id string) (*entity.Match, error)

	// Finish переводит матч в терминальный статус и сохраняет итог
	Finish(id string, result entity.MatchResultData) error
}
