// Команда sweeper - выделенный процесс распределённого планировщика:
// единственный цикл опроса задач на всю инсталляцию. Созревшие задачи
// публикуются в общий канал, применяют их serving-инстансы.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourusername/duel-api/internal/config"
	redisrepo "github.com/yourusername/duel-api/internal/repository/redis"
	"github.com/yourusername/duel-api/internal/service/duelmanager"
	"github.com/yourusername/duel-api/internal/websocket"
	"github.com/yourusername/duel-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Ошибка подключения к Redis: %v", err)
	}
	defer redisClient.Close()

	jobRepo, err := redisrepo.NewJobRepo(redisClient)
	if err != nil {
		log.Fatalf("Ошибка инициализации планировщика: %v", err)
	}
	pubsub, err := websocket.NewRedisPubSub(redisClient)
	if err != nil {
		log.Fatalf("Ошибка инициализации Redis Pub/Sub: %v", err)
	}
	defer pubsub.Close()

	poller := duelmanager.NewPoller(
		jobRepo,
		pubsub,
		cfg.Duel.JobChannel,
		time.Duration(cfg.Duel.PollIntervalSec)*time.Second,
		cfg.Duel.PollBatchLimit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Останавливаем sweeper...")
		cancel()
	}()

	poller.Run(ctx)
	log.Println("Sweeper остановлен")
}
