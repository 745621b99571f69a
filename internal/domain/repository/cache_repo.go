package repository

import (
	"time"
)

// ZMember - элемент сортированного множества со счётом
type ZMember struct {
	Member string
	Score  float64
}

// CacheRepository определяет методы для работы с общим кешем (Redis)
type CacheRepository interface {
	// Set сохраняет значение с временем жизни
	Set(key string, value interface{}, expiration time.Duration) error

	// Get получает строковое значение
	Get(key string) (string, error)

	// Delete удаляет ключ
	Delete(key string) error

	// Exists проверяет существование ключа
	Exists(key string) (bool, error)

	// SetNX устанавливает значение, только если ключ не существует.
	// Возвращает true, если ключ был установлен.
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)

	// SAdd добавляет элементы в множество
	SAdd(key string, members ...string) error

	// SRem удаляет элементы из множества
	SRem(key string, members ...string) error

	// SMembers возвращает все элементы множества
	SMembers(key string) ([]string, error)

	// ZAdd добавляет элемент в сортированное множество
	ZAdd(key string, score float64, member string) error

	// ZRevRangeWithScores возвращает топ элементов по убыванию счёта
	// с сохранением порядка (используется для таблицы лидеров)
	ZRevRangeWithScores(key string, start, stop int64) ([]ZMember, error)
}
