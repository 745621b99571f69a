package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/duel-api/internal/domain/entity"
	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"
)

const (
	sessionKeyPrefix     = "duel:session:"
	activeMatchKeyPrefix = "duel:active:"
)

// SessionRepo реализует repository.SessionRepository. Авторитетное
// хранилище - общий Redis; локальная копия в памяти процесса держится
// как fallback на случай его недоступности. Fallback принадлежит только
// этому процессу и никогда не предпочитается живому Redis.
type SessionRepo struct {
	client redis.UniversalClient
	ctx    context.Context
	ttl    time.Duration

	// Локальный fallback: matchID -> *entity.MatchSession
	local sync.Map

	// Локальный fallback указателей на активные матчи: playerID -> matchID
	localActive sync.Map
}

// NewSessionRepo создает новое хранилище сессий матчей
func NewSessionRepo(client redis.UniversalClient, ttl time.Duration) (*SessionRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for SessionRepo")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionRepo{
		client: client,
		ctx:    context.Background(),
		ttl:    ttl,
	}, nil
}

func sessionKey(matchID string) string {
	return sessionKeyPrefix + matchID
}

func activeMatchKey(playerID string) string {
	return activeMatchKeyPrefix + playerID
}

// Get возвращает сессию матча. При недоступности Redis читает локальную
// копию; отсутствие записи в живом Redis - это ErrNotFound, а не повод
// заглядывать в fallback.
func (r *SessionRepo) Get(matchID string) (*entity.MatchSession, error) {
	data, err := r.client.Get(r.ctx, sessionKey(matchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}

		// Redis недоступен - деградируем на локальную копию
		log.Printf("[SessionRepo] WARNING: Redis недоступен при чтении сессии %s: %v. Используется локальный fallback.", matchID, err)
		if cached, ok := r.local.Load(matchID); ok {
			return cached.(*entity.MatchSession).Clone(), nil
		}
		return nil, apperrors.ErrUnavailable
	}

	var session entity.MatchSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", matchID, err)
	}
	return &session, nil
}

// Save сохраняет сессию целиком. Запись в Redis best-effort: при сбое
// ошибка логируется, локальная копия обновляется и обработка продолжается -
// падение всего матча для обоих игроков хуже потерянной записи.
func (r *SessionRepo) Save(session *entity.MatchSession) error {
	r.local.Store(session.MatchID, session.Clone())

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := r.client.Set(r.ctx, sessionKey(session.MatchID), data, r.ttl).Err(); err != nil {
		log.Printf("[SessionRepo] WARNING: не удалось сохранить сессию %s в Redis: %v", session.MatchID, err)
	}
	return nil
}

// Delete удаляет сессию завершённого матча
func (r *SessionRepo) Delete(matchID string) error {
	r.local.Delete(matchID)
	if err := r.client.Del(r.ctx, sessionKey(matchID)).Err(); err != nil {
		log.Printf("[SessionRepo] WARNING: не удалось удалить сессию %s из Redis: %v", matchID, err)
		return err
	}
	return nil
}

// SetActiveMatch запоминает активный матч игрока
func (r *SessionRepo) SetActiveMatch(playerID string, matchID string) error {
	r.localActive.Store(playerID, matchID)
	if err := r.client.Set(r.ctx, activeMatchKey(playerID), matchID, r.ttl).Err(); err != nil {
		log.Printf("[SessionRepo] WARNING: не удалось сохранить активный матч игрока %s: %v", playerID, err)
	}
	return nil
}

// GetActiveMatch возвращает ID активного матча игрока
func (r *SessionRepo) GetActiveMatch(playerID string) (string, error) {
	matchID, err := r.client.Get(r.ctx, activeMatchKey(playerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.ErrNotFound
		}
		log.Printf("[SessionRepo] WARNING: Redis недоступен при чтении активного матча %s: %v. Используется локальный fallback.", playerID, err)
		if cached, ok := r.localActive.Load(playerID); ok {
			return cached.(string), nil
		}
		return "", apperrors.ErrUnavailable
	}
	return matchID, nil
}

// ClearActiveMatch сбрасывает указатель на активный матч
func (r *SessionRepo) ClearActiveMatch(playerID string) error {
	r.localActive.Delete(playerID)
	if err := r.client.Del(r.ctx, activeMatchKey(playerID)).Err(); err != nil {
		log.Printf("[SessionRepo] WARNING: не удалось удалить активный матч игрока %s: %v", playerID, err)
		return err
	}
	return nil
}
