package repository

import (
	"github.com/yourusername/duel-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	// GetByID возвращает пользователя по ID
	GetByID(id uint) (*entity.User, error)

	// GetByIDs возвращает пользователей по списку ID
	GetByIDs(ids []uint) ([]entity.User, error)

	// Create создает нового пользователя
	Create(user *entity.User) error

	// Update обновляет данные пользователя
	Update(user *entity.User) error

	// ApplyMatchOutcome атомарно применяет итог матча: счётчики
	// побед/поражений, новый рейтинг и уровень
	ApplyMatchOutcome(id uint, won bool, newRating int, newTier int) error
}
