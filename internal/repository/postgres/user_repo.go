package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/duel-api/internal/domain/entity"
	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDs возвращает пользователей по списку ID
func (r *UserRepo) GetByIDs(ids []uint) ([]entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []entity.User
	err := r.db.Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Create создает нового пользователя
func (r *UserRepo) Create(user *entity.User) error {
	return r.db.Create(user).Error
}

// Update обновляет данные пользователя
func (r *UserRepo) Update(user *entity.User) error {
	return r.db.Save(user).Error
}

// ApplyMatchOutcome применяет итог матча одним UPDATE, чтобы конкурентные
// завершения матчей не затирали счётчики друг друга
func (r *UserRepo) ApplyMatchOutcome(id uint, won bool, newRating int, newTier int) error {
	counter := "losses"
	if won {
		counter = "wins"
	}
	result := r.db.Model(&entity.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rating": newRating,
			"tier":   newTier,
			counter:  gorm.Expr(counter+" + ?", 1),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
