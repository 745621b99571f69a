package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/duel-api/internal/domain/entity"
	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// GetByIDs возвращает вопросы по списку ID
func (r *QuestionRepo) GetByIDs(ids []uint) ([]entity.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var questions []entity.Question
	err := r.db.Where("id IN ?", ids).Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// CountBySubject возвращает количество вопросов по теме
func (r *QuestionRepo) CountBySubject(subject string) (int64, error) {
	var count int64
	query := r.db.Model(&entity.Question{})
	if subject != entity.SubjectAny {
		query = query.Where("subject = ?", subject)
	}
	err := query.Count(&count).Error
	return count, err
}

// GetBySubjectRange возвращает вопросы темы со смещением и лимитом.
// Вызывающий код выбирает случайное смещение по известному count, чтобы
// выборка не возвращала одно и то же подмножество раз за разом.
func (r *QuestionRepo) GetBySubjectRange(subject string, skip int, limit int) ([]entity.Question, error) {
	var questions []entity.Question
	query := r.db.Model(&entity.Question{})
	if subject != entity.SubjectAny {
		query = query.Where("subject = ?", subject)
	}
	err := query.Order("id").Offset(skip).Limit(limit).Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}
