package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"
)

const (
	connKeyPrefix   = "ws:conn:"
	playerKeyPrefix = "ws:player:"
)

// SocketDirectory реализует repository.SocketDirectory поверх Redis.
// Привязка - две примитивные записи (SET + SADD), выполняемые одним
// батчем, чтобы частично применённое состояние не было видимо.
type SocketDirectory struct {
	client redis.UniversalClient
	ctx    context.Context
}

// NewSocketDirectory создает новый справочник соединений
func NewSocketDirectory(client redis.UniversalClient) (*SocketDirectory, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for SocketDirectory")
	}
	return &SocketDirectory{
		client: client,
		ctx:    context.Background(),
	}, nil
}

func connKey(connID string) string {
	return connKeyPrefix + connID
}

func playerKey(playerID string) string {
	return playerKeyPrefix + playerID
}

// Bind связывает соединение с игроком
func (d *SocketDirectory) Bind(connID string, playerID string) error {
	_, err := d.client.TxPipelined(d.ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(d.ctx, connKey(connID), playerID, 0)
		pipe.SAdd(d.ctx, playerKey(playerID), connID)
		return nil
	})
	return err
}

// Resolve возвращает идентичность владельца соединения
func (d *SocketDirectory) Resolve(connID string) (string, error) {
	playerID, err := d.client.Get(d.ctx, connKey(connID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.ErrNotFound
		}
		return "", err
	}
	return playerID, nil
}

// Connections возвращает все соединения игрока
func (d *SocketDirectory) Connections(playerID string) ([]string, error) {
	return d.client.SMembers(d.ctx, playerKey(playerID)).Result()
}

// ClaimSingle привязывает соединение и возвращает соединения, существовавшие
// у игрока до привязки. Чтение старого набора и запись нового уходят в Redis
// одним батчем (MULTI/EXEC), поэтому конкурентная привязка с другого
// инстанса не может вклиниться между чтением и записью.
func (d *SocketDirectory) ClaimSingle(connID string, playerID string) ([]string, error) {
	var prevCmd *redis.StringSliceCmd
	_, err := d.client.TxPipelined(d.ctx, func(pipe redis.Pipeliner) error {
		prevCmd = pipe.SMembers(d.ctx, playerKey(playerID))
		pipe.Set(d.ctx, connKey(connID), playerID, 0)
		pipe.SAdd(d.ctx, playerKey(playerID), connID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	prev := prevCmd.Val()
	// Само новое соединение не считается "прежним"
	result := make([]string, 0, len(prev))
	for _, id := range prev {
		if id != connID {
			result = append(result, id)
		}
	}
	return result, nil
}

// Unbind снимает привязку соединения
func (d *SocketDirectory) Unbind(connID string) error {
	playerID, err := d.client.Get(d.ctx, connKey(connID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil // Соединение уже не привязано
		}
		return err
	}

	_, err = d.client.TxPipelined(d.ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(d.ctx, connKey(connID))
		pipe.SRem(d.ctx, playerKey(playerID), connID)
		return nil
	})
	return err
}
