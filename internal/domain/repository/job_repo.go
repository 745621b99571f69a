package repository

import (
	"github.com/yourusername/duel-api/internal/domain/entity"
)

// JobRepository определяет методы хранилища отложенных событий матчей.
// Хранилище упорядочено по RunAtMs и разделяется всеми процессами.
type JobRepository interface {
	// Schedule вставляет задачу. Повторная вставка той же задачи
	// (тот же кортеж идентификации) не создаёт дубликата.
	Schedule(job *entity.ScheduledJob) error

	// Cancel удаляет задачи матча с указанным индексом вопроса.
	// Пустой eventType снимает задачи всех типов.
	// Возвращает количество удалённых задач.
	Cancel(matchID string, questionIndex int, eventType string) (int, error)

	// PollDue атомарно изымает задачи с runAtMs <= nowMs (до limit штук).
	// Изъятие атомарно с выборкой: упавший вызов не теряет задачи.
	PollDue(nowMs int64, limit int) ([]entity.ScheduledJob, error)
}
