package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/duel-api/internal/domain/entity"
	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"
)

const (
	queueKeyPrefix = "mm:queue:"
	subjectsSetKey = "mm:subjects"
)

// QueueRepo реализует repository.QueueRepository поверх списков Redis.
// Каждая тема - отдельный список (FIFO: RPUSH в хвост, LPOP с головы);
// заявки сериализуются в JSON. Реестр тем ведётся отдельным множеством,
// чтобы отмена могла просканировать все очереди.
type QueueRepo struct {
	client redis.UniversalClient
	ctx    context.Context
}

// NewQueueRepo создает новое хранилище очередей подбора
func NewQueueRepo(client redis.UniversalClient) (*QueueRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for QueueRepo")
	}
	return &QueueRepo{
		client: client,
		ctx:    context.Background(),
	}, nil
}

func queueKey(subject string) string {
	return queueKeyPrefix + subject
}

// Enqueue удаляет прежние заявки той же идентичности из очереди темы
// и добавляет новую в хвост
func (r *QueueRepo) Enqueue(subject string, entry *entity.QueueEntry) error {
	if _, err := r.RemoveIdentity(subject, entry.ConnID, entry.UserID, entry.GuestID); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(r.ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(r.ctx, queueKey(subject), data)
		pipe.SAdd(r.ctx, subjectsSetKey, subject)
		return nil
	})
	return err
}

// Pop снимает заявку с головы очереди темы
func (r *QueueRepo) Pop(subject string) (*entity.QueueEntry, error) {
	data, err := r.client.LPop(r.ctx, queueKey(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	var entry entity.QueueEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt queue entry in %s: %w", subject, err)
	}
	return &entry, nil
}

// PushFront возвращает заявку в голову очереди, сохраняя исходный порядок
// при откате несостоявшегося спаривания
func (r *QueueRepo) PushFront(subject string, entry *entity.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.LPush(r.ctx, queueKey(subject), data).Err()
}

// RemoveIdentity удаляет из очереди темы все заявки идентичности.
// Список сканируется целиком: очереди подбора короткоживущие и небольшие.
func (r *QueueRepo) RemoveIdentity(subject string, connID string, userID uint, guestID string) (int, error) {
	raw, err := r.client.LRange(r.ctx, queueKey(subject), 0, -1).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, item := range raw {
		var entry entity.QueueEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue // Битую запись не трогаем, она не совпадёт ни с кем
		}
		if entry.MatchesIdentity(connID, userID, guestID) {
			if err := r.client.LRem(r.ctx, queueKey(subject), 0, item).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// Subjects возвращает список известных тем очередей
func (r *QueueRepo) Subjects() ([]string, error) {
	return r.client.SMembers(r.ctx, subjectsSetKey).Result()
}
