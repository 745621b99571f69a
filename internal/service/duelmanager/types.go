package duelmanager

import (
	"time"

	"github.com/yourusername/duel-api/internal/config"
	"github.com/yourusername/duel-api/internal/domain/entity"
	"github.com/yourusername/duel-api/internal/domain/repository"
)

// Config содержит тайминги движка дуэлей, производные от config.DuelConfig
type Config struct {
	// QuestionTime - жёсткий дедлайн вопроса
	QuestionTime time.Duration

	// SoftTimeout - мягкий таймаут игрока (информационный)
	SoftTimeout time.Duration

	// FreezeTime - длительность заморозки за неверный ответ
	FreezeTime time.Duration

	// RevealDelay - пауза между показом правильного ответа и следующим вопросом
	RevealDelay time.Duration

	// QuestionsPerMatch - количество вопросов в матче
	QuestionsPerMatch int

	// QueueLock - время жизни лока от повторных запросов подбора
	QueueLock time.Duration
}

// NewConfig создает конфигурацию движка из загруженной конфигурации приложения
func NewConfig(cfg *config.DuelConfig) *Config {
	return &Config{
		QuestionTime:      time.Duration(cfg.QuestionTimeSec) * time.Second,
		SoftTimeout:       time.Duration(cfg.SoftTimeoutSec) * time.Second,
		FreezeTime:        time.Duration(cfg.FreezeTimeSec) * time.Second,
		RevealDelay:       time.Duration(cfg.RevealDelayMs) * time.Millisecond,
		QuestionsPerMatch: cfg.QuestionsPerMatch,
		QueueLock:         time.Duration(cfg.QueueLockSec) * time.Second,
	}
}

// Broadcaster определяет требования движка к транспортному слою:
// комнаты матчей, адресная отправка и рассылка. Реализуется
// websocket.Manager, в тестах подменяется моком.
type Broadcaster interface {
	// JoinRoom добавляет соединение в комнату матча
	JoinRoom(roomID, connID string)

	// LeaveRoom удаляет соединение из комнаты матча
	LeaveRoom(roomID, connID string)

	// EmitToRoom отправляет событие всем участникам комнаты
	EmitToRoom(roomID string, eventType string, data interface{}) error

	// EmitToConn отправляет событие конкретному соединению
	EmitToConn(connID string, eventType string, data interface{}) error
}

// RatingEngine - внешний рейтинговый движок. Для ядра дуэлей это
// чёрный ящик: чистая функция дельты и синхронизация уровня.
type RatingEngine interface {
	// ComputeDelta возвращает изменение рейтинга за победу
	// (победитель получает +delta, проигравший -delta)
	ComputeDelta(winnerTier, loserTier int) int

	// SyncTier пересчитывает уровень пользователя по его рейтингу
	// и возвращает актуальное значение
	SyncTier(user *entity.User) int
}

// Dependencies группирует зависимости компонентов движка дуэлей
type Dependencies struct {
	UserRepo     repository.UserRepository
	QuestionRepo repository.QuestionRepository
	MatchRepo    repository.MatchRepository
	SessionRepo  repository.SessionRepository
	QueueRepo    repository.QueueRepository
	JobRepo      repository.JobRepository
	Directory    repository.SocketDirectory
	CacheRepo    repository.CacheRepository
	Broadcaster  Broadcaster
	Rating       RatingEngine
}
