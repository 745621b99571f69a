package duelmanager

import (
	"errors"
	"fmt"
	"log"

	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"

	"github.com/yourusername/duel-api/internal/domain/entity"
)

// Matchmaker - очередь подбора соперников. Хранилище очередей разделяется
// всеми инстансами; политика спаривания (FIFO, откат на джокер, защита
// от self-match, сверка тем) живёт здесь.
type Matchmaker struct {
	config  *Config
	deps    *Dependencies
	creator *MatchCreator
}

// NewMatchmaker создает Matchmaker
func NewMatchmaker(config *Config, deps *Dependencies, creator *MatchCreator) *Matchmaker {
	return &Matchmaker{
		config:  config,
		deps:    deps,
		creator: creator,
	}
}

// Enqueue ставит заявку в очередь темы и сразу пытается составить пару.
// Возвращает созданный матч, если пара нашлась, иначе nil.
// Повторные запросы той же идентичности гасятся коротким локом, заявка
// игрока с активным матчем отклоняется.
func (m *Matchmaker) Enqueue(entry *entity.QueueEntry) (*entity.Match, error) {
	playerID := entry.PlayerID()

	locked, err := m.deps.CacheRepo.SetNX(KeyQueueLock+playerID, "1", m.config.QueueLock)
	if err != nil {
		log.Printf("[Matchmaker] WARNING: ошибка лока подбора для %s: %v", playerID, err)
	} else if !locked {
		return nil, fmt.Errorf("matchmaking request for %s is rate limited: %w", playerID, apperrors.ErrConflict)
	}

	if matchID, err := m.deps.SessionRepo.GetActiveMatch(playerID); err == nil && matchID != "" {
		return nil, fmt.Errorf("player %s already has active match %s: %w", playerID, matchID, apperrors.ErrConflict)
	}

	if entry.Subject == "" {
		entry.Subject = entity.SubjectAny
	}
	if err := m.deps.QueueRepo.Enqueue(entry.Subject, entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", playerID, err)
	}
	log.Printf("[Matchmaker] Игрок %s встал в очередь темы '%s'", playerID, entry.Subject)

	return m.TryPair(entry.Subject)
}

// TryPair пытается составить пару в очереди темы с откатом на очередь
// джокера. Возвращает созданный матч или nil, если пары нет.
func (m *Matchmaker) TryPair(subject string) (*entity.Match, error) {
	if subject == "" {
		subject = entity.SubjectAny
	}

	p1, p2, ok, err := m.popPair(subject)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	// Защита от self-match: две заявки одного игрока (две вкладки,
	// ретраи) возвращаются в очередь в исходном порядке, чтобы не
	// голодать
	if p1.SameIdentity(p2) {
		log.Printf("[Matchmaker] Пара отклонена: обе заявки принадлежат %s, возврат в очередь", p1.PlayerID())
		m.requeueFront(p2)
		m.requeueFront(p1)
		return nil, nil
	}

	// Сверка тем при заявках из разных очередей: несовпадающие
	// конкретные темы не переопределяются молча
	if p1.Subject != p2.Subject && p1.Subject != entity.SubjectAny && p2.Subject != entity.SubjectAny {
		log.Printf("[Matchmaker] Пара отклонена: темы '%s' и '%s' не совпадают, возврат в свои очереди",
			p1.Subject, p2.Subject)
		m.requeueFront(p1)
		m.requeueFront(p2)
		return nil, nil
	}

	matchSubject := p1.Subject
	if matchSubject == entity.SubjectAny {
		matchSubject = p2.Subject
	}

	match, err := m.creator.CreateMatchForParticipants(p1, p2, matchSubject)
	if err != nil {
		// Матч не создался - заявки не должны пропасть
		log.Printf("[Matchmaker] CRITICAL: ошибка создания матча для %s и %s: %v",
			p1.PlayerID(), p2.PlayerID(), err)
		m.requeueFront(p2)
		m.requeueFront(p1)
		return nil, err
	}
	return match, nil
}

// RemoveAll удаляет заявки идентичности из всех очередей
// (явная отмена или разрыв соединения)
func (m *Matchmaker) RemoveAll(connID string, userID uint, guestID string) error {
	subjects, err := m.deps.QueueRepo.Subjects()
	if err != nil {
		return fmt.Errorf("failed to list queue subjects: %w", err)
	}

	total := 0
	for _, subject := range subjects {
		removed, err := m.deps.QueueRepo.RemoveIdentity(subject, connID, userID, guestID)
		if err != nil {
			log.Printf("[Matchmaker] WARNING: ошибка чистки очереди '%s': %v", subject, err)
			continue
		}
		total += removed
	}
	if total > 0 {
		log.Printf("[Matchmaker] Удалено %d заявок (connID=%s)", total, connID)
	}
	return nil
}

// popPair снимает две заявки с головы очереди темы, добирая вторую из
// очереди джокера, если в очереди темы она одна. При нехватке пары
// снятая заявка возвращается на место, порядок сохраняется.
func (m *Matchmaker) popPair(subject string) (*entity.QueueEntry, *entity.QueueEntry, bool, error) {
	p1, err := m.deps.QueueRepo.Pop(subject)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, false, fmt.Errorf("failed to pop from queue %s: %w", subject, err)
		}
		// Очередь темы пуста - пробуем целиком очередь джокера
		if subject == entity.SubjectAny {
			return nil, nil, false, nil
		}
		subject = entity.SubjectAny
		p1, err = m.deps.QueueRepo.Pop(subject)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, nil, false, nil
			}
			return nil, nil, false, fmt.Errorf("failed to pop from queue %s: %w", subject, err)
		}
	}

	p2, err := m.popSecond(subject)
	if err != nil {
		m.requeueFront(p1)
		return nil, nil, false, err
	}
	if p2 == nil {
		m.requeueFront(p1)
		return nil, nil, false, nil
	}
	return p1, p2, true, nil
}

// popSecond добирает вторую заявку: сначала из той же очереди, затем
// из очереди джокера
func (m *Matchmaker) popSecond(subject string) (*entity.QueueEntry, error) {
	p2, err := m.deps.QueueRepo.Pop(subject)
	if err == nil {
		return p2, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to pop from queue %s: %w", subject, err)
	}
	if subject == entity.SubjectAny {
		return nil, nil
	}

	p2, err = m.deps.QueueRepo.Pop(entity.SubjectAny)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from wildcard queue: %w", err)
	}
	return p2, nil
}

// requeueFront возвращает заявку в голову её очереди
func (m *Matchmaker) requeueFront(entry *entity.QueueEntry) {
	if err := m.deps.QueueRepo.PushFront(entry.Subject, entry); err != nil {
		log.Printf("[Matchmaker] CRITICAL: ошибка возврата заявки %s в очередь '%s': %v",
			entry.PlayerID(), entry.Subject, err)
	}
}
