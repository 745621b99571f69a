package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/duel-api/internal/config"
	"github.com/yourusername/duel-api/internal/handler"
	redisrepo "github.com/yourusername/duel-api/internal/repository/redis"

	pgrepo "github.com/yourusername/duel-api/internal/repository/postgres"

	"github.com/yourusername/duel-api/internal/service"
	"github.com/yourusername/duel-api/internal/service/duelmanager"
	"github.com/yourusername/duel-api/internal/websocket"
	"github.com/yourusername/duel-api/pkg/auth"
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

	// PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	if err := database.MigrateDB(db); err != nil {
		log.Fatalf("Ошибка применения миграций: %v", err)
	}

	// Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Ошибка подключения к Redis: %v", err)
	}
	defer redisClient.Close()

	// Репозитории
	userRepo := pgrepo.NewUserRepo(db)
	questionRepo := pgrepo.NewQuestionRepo(db)
	matchRepo := pgrepo.NewMatchRepo(db)

	cacheRepo, err := redisrepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Fatalf("Ошибка инициализации кеша: %v", err)
	}
	sessionRepo, err := redisrepo.NewSessionRepo(redisClient, time.Duration(cfg.Duel.SessionTTLMin)*time.Minute)
	if err != nil {
		log.Fatalf("Ошибка инициализации хранилища сессий: %v", err)
	}
	queueRepo, err := redisrepo.NewQueueRepo(redisClient)
	if err != nil {
		log.Fatalf("Ошибка инициализации очередей подбора: %v", err)
	}
	jobRepo, err := redisrepo.NewJobRepo(redisClient)
	if err != nil {
		log.Fatalf("Ошибка инициализации планировщика: %v", err)
	}
	directory, err := redisrepo.NewSocketDirectory(redisClient)
	if err != nil {
		log.Fatalf("Ошибка инициализации справочника соединений: %v", err)
	}

	// WebSocket: хаб, кластерный мост, менеджер
	instanceID := cfg.WebSocket.Cluster.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	hub := websocket.NewHub(instanceID)

	pubsub, err := websocket.NewRedisPubSub(redisClient)
	if err != nil {
		log.Fatalf("Ошибка инициализации Redis Pub/Sub: %v", err)
	}
	defer pubsub.Close()

	clusterHub := websocket.NewClusterHub(hub, cfg.WebSocket.Cluster, pubsub)
	if err := clusterHub.Start(); err != nil {
		log.Fatalf("Ошибка запуска кластерного режима: %v", err)
	}
	defer clusterHub.Stop()

	wsManager := websocket.NewManager(hub, clusterHub)

	// Движок дуэлей
	ratingService := service.NewRatingService(userRepo, cacheRepo)

	duelConfig := duelmanager.NewConfig(&cfg.Duel)
	deps := &duelmanager.Dependencies{
		UserRepo:     userRepo,
		QuestionRepo: questionRepo,
		MatchRepo:    matchRepo,
		SessionRepo:  sessionRepo,
		QueueRepo:    queueRepo,
		JobRepo:      jobRepo,
		Directory:    directory,
		CacheRepo:    cacheRepo,
		Broadcaster:  wsManager,
		Rating:       ratingService,
	}
	engine := duelmanager.NewEngine(duelConfig, deps)
	creator := duelmanager.NewMatchCreator(duelConfig, deps, engine)
	matchmaker := duelmanager.NewMatchmaker(duelConfig, deps, creator)

	duelService := service.NewDuelService(deps, matchmaker, engine, wsManager)
	duelService.RegisterHandlers()

	// Слушатель уведомлений планировщика
	listenerCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()
	jobListener := duelmanager.NewJobListener(pubsub, engine, cfg.Duel.JobChannel)
	go func() {
		if err := jobListener.Run(listenerCtx); err != nil {
			log.Printf("CRITICAL: слушатель планировщика завершился с ошибкой: %v", err)
		}
	}()

	// HTTP
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	wsHandler := handler.NewWSHandler(hub, wsManager, duelService, jwtService)
	apiHandler := handler.NewAPIHandler(ratingService)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", apiHandler.Health)
	router.GET("/ws", wsHandler.HandleConnection)
	router.GET("/api/leaderboard", apiHandler.Leaderboard)

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Сервер дуэлей запущен на порту %s (инстанс %s)", port, instanceID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка остановки сервера: %v", err)
	}
	log.Println("Сервер остановлен")
}
