package repository

import (
	"github.com/yourusername/duel-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с вопросами.
// Хранилище вопросов для движка дуэлей read-only.
type QuestionRepository interface {
	// GetByID возвращает вопрос по ID
	GetByID(id uint) (*entity.Question, error)

	// GetByIDs возвращает вопросы по списку ID (порядок не гарантируется)
	GetByIDs(ids []uint) ([]entity.Question, error)

	// CountBySubject возвращает количество вопросов по теме.
	// SubjectAny считает все вопросы.
	CountBySubject(subject string) (int64, error)

	// GetBySubjectRange возвращает вопросы темы со смещением skip и
	// лимитом limit. Вместе с CountBySubject реализует выборку со
	// случайным смещением, чтобы не возвращать одно и то же подмножество.
	GetBySubjectRange(subject string, skip int, limit int) ([]entity.Question, error)
}
