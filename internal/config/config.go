package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Duel      DuelConfig
	WebSocket WebSocketConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно).
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах).
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах).
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig содержит настройки проверки access-токенов при подключении по WebSocket
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// DuelConfig содержит тайминги и параметры дуэльного движка
type DuelConfig struct {
	// QuestionTimeSec - жёсткий дедлайн вопроса (question_end)
	QuestionTimeSec int `mapstructure:"question_time_sec"`

	// SoftTimeoutSec - мягкий таймаут игрока (player_timeout, информационный)
	SoftTimeoutSec int `mapstructure:"soft_timeout_sec"`

	// FreezeTimeSec - длительность заморозки за неверный ответ
	FreezeTimeSec int `mapstructure:"freeze_time_sec"`

	// RevealDelayMs - пауза после показа правильного ответа перед следующим вопросом
	RevealDelayMs int `mapstructure:"reveal_delay_ms"`

	// QuestionsPerMatch - количество вопросов в матче
	QuestionsPerMatch int `mapstructure:"questions_per_match"`

	// QueueLockSec - время жизни лока от повторных запросов подбора
	QueueLockSec int `mapstructure:"queue_lock_sec"`

	// PollIntervalSec - интервал опроса планировщика (процесс sweeper)
	PollIntervalSec int `mapstructure:"poll_interval_sec"`

	// PollBatchLimit - максимум задач, снимаемых за один тик
	PollBatchLimit int `mapstructure:"poll_batch_limit"`

	// JobChannel - канал pub/sub для уведомлений о сработавших задачах
	JobChannel string `mapstructure:"job_channel"`

	// SessionTTLMin - время жизни сессии матча в Redis
	SessionTTLMin int `mapstructure:"session_ttl_min"`
}

// WebSocketConfig содержит настройки WebSocket-подсистемы
type WebSocketConfig struct {
	Buffers BuffersConfig
	Ping    PingConfig
	Cluster ClusterConfig
}

// BuffersConfig содержит настройки буферов
type BuffersConfig struct {
	ClientSendBuffer int
	BroadcastBuffer  int
}

// PingConfig содержит настройки пингов
type PingConfig struct {
	Interval int
	Timeout  int
}

// ClusterConfig содержит настройки кластеризации (несколько инстансов API)
type ClusterConfig struct {
	Enabled       bool
	InstanceID    string
	RoomChannel   string
	DirectChannel string
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// applyDuelDefaults проставляет умолчания для незаданных таймингов движка
func applyDuelDefaults(cfg *DuelConfig) {
	if cfg.QuestionTimeSec <= 0 {
		cfg.QuestionTimeSec = 30
	}
	if cfg.SoftTimeoutSec <= 0 {
		cfg.SoftTimeoutSec = 15
	}
	if cfg.FreezeTimeSec <= 0 {
		cfg.FreezeTimeSec = 15
	}
	if cfg.RevealDelayMs <= 0 {
		cfg.RevealDelayMs = 2000
	}
	if cfg.QuestionsPerMatch <= 0 {
		cfg.QuestionsPerMatch = 5
	}
	if cfg.QueueLockSec <= 0 {
		cfg.QueueLockSec = 3
	}
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = 1
	}
	if cfg.PollBatchLimit <= 0 {
		cfg.PollBatchLimit = 100
	}
	if cfg.JobChannel == "" {
		cfg.JobChannel = "duel:jobs:due"
	}
	if cfg.SessionTTLMin <= 0 {
		cfg.SessionTTLMin = 120
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// Привязываем переменные окружения ЯВНО
	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	// Привязка для секции Duel
	vip.BindEnv("duel.question_time_sec", "DUEL_QUESTION_TIME_SEC")
	vip.BindEnv("duel.questions_per_match", "DUEL_QUESTIONS_PER_MATCH")
	vip.BindEnv("duel.job_channel", "DUEL_JOB_CHANNEL")
	vip.BindEnv("duel.poll_interval_sec", "DUEL_POLL_INTERVAL_SEC")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// Привязка для WebSocket Cluster
	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	vip.BindEnv("websocket.cluster.instanceid", "WEBSOCKET_CLUSTER_INSTANCE_ID")

	// Путь к файлу конфигурации (не страшно, если файла нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// Анмаршалим конфигурацию (Viper объединит значения из файла и env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDuelDefaults(&cfg.Duel)

	// Логирование конфигурации (только вне release-режима)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Duel Job Channel: %s", cfg.Duel.JobChannel)
		log.Printf("WebSocket Cluster Enabled: %t", cfg.WebSocket.Cluster.Enabled)
		log.Printf("-----------------------------------------")
	}

	// Проверка обязательных параметров
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}

	return &cfg, nil
}
