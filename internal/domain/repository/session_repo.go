package repository

import (
	"github.com/yourusername/duel-api/internal/domain/entity"
)

// SessionRepository определяет методы для работы с эфемерным состоянием
// матчей. Авторитетным хранилищем является общий Redis; реализация
// обязана держать локальный in-memory fallback на случай его недоступности,
// но никогда не предпочитать fallback живому общему хранилищу.
type SessionRepository interface {
	// Get возвращает сессию матча
	Get(matchID string) (*entity.MatchSession, error)

	// Save сохраняет сессию целиком
	Save(session *entity.MatchSession) error

	// Delete удаляет сессию завершённого матча
	Delete(matchID string) error

	// SetActiveMatch запоминает активный матч игрока (для reconnect и форфейтов)
	SetActiveMatch(playerID string, matchID string) error

	// GetActiveMatch возвращает ID активного матча игрока
	GetActiveMatch(playerID string) (string, error)

	// ClearActiveMatch сбрасывает указатель на активный матч
	ClearActiveMatch(playerID string) error
}
