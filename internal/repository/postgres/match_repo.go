package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/duel-api/internal/domain/entity"
	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"
)

// MatchRepo реализует repository.MatchRepository
type MatchRepo struct {
	db *gorm.DB
}

// NewMatchRepo создает новый репозиторий матчей
func NewMatchRepo(db *gorm.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// Create сохраняет новую запись матча
func (r *MatchRepo) Create(match *entity.Match) error {
	return r.db.Create(match).Error
}

// GetByID возвращает матч по ID
func (r *MatchRepo) GetByID(id string) (*entity.Match, error) {
	var match entity.Match
	err := r.db.First(&match, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &match, nil
}

// Finish переводит матч в терминальный статус и сохраняет итог
func (r *MatchRepo) Finish(id string, result entity.MatchResultData) error {
	now := time.Now()
	res := r.db.Model(&entity.Match{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      entity.MatchStatusFinished,
			"result":      result,
			"finished_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
