package repository

import (
	"github.com/yourusername/duel-api/internal/domain/entity"
)

// QueueRepository определяет примитивы хранилища очередей подбора.
// Политика спаривания (self-match guard, сверка тем, fallback на джокер)
// живёт уровнем выше, в duelmanager.Matchmaker.
type QueueRepository interface {
	// Enqueue удаляет из очереди темы прежние заявки той же идентичности
	// и добавляет новую в хвост
	Enqueue(subject string, entry *entity.QueueEntry) error

	// Pop снимает заявку с головы очереди темы.
	// Возвращает apperrors.ErrNotFound на пустой очереди.
	Pop(subject string) (*entity.QueueEntry, error)

	// PushFront возвращает заявку в голову очереди (откат неудачного спаривания)
	PushFront(subject string, entry *entity.QueueEntry) error

	// RemoveIdentity удаляет из очереди темы все заявки идентичности.
	// Возвращает количество удалённых.
	RemoveIdentity(subject string, connID string, userID uint, guestID string) (int, error)

	// Subjects возвращает список тем, по которым когда-либо были очереди
	// (для полного скана при отмене/дисконнекте)
	Subjects() ([]string, error)
}
