package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/duel-api/internal/config"
)

// PubSubProvider определяет интерфейс для провайдеров публикации/подписки
type PubSubProvider interface {
	// Publish публикует сообщение в указанный канал
	Publish(channel string, message []byte) error

	// Subscribe подписывается на указанный канал и возвращает канал для сообщений
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close закрывает все соединения и освобождает ресурсы
	Close() error
}

// ClusterMessage представляет сообщение, передаваемое между инстансами
type ClusterMessage struct {
	// MessageType определяет тип сообщения кластера:
	// room - рассылка в логическую комнату матча
	// direct - сообщение конкретному соединению
	MessageType string `json:"type"`

	// Room содержит имя комнаты для room-сообщений
	Room string `json:"room,omitempty"`

	// RecipientID содержит connection id получателя для direct-сообщений
	RecipientID string `json:"recipient_id,omitempty"`

	// InstanceID содержит ID отправителя для избежания дублирования
	InstanceID string `json:"instance_id"`

	// Payload содержит данные сообщения
	Payload json.RawMessage `json:"payload"`

	// Timestamp содержит время создания сообщения
	Timestamp time.Time `json:"timestamp"`
}

// NoOpPubSub реализует PubSubProvider для одиночного режима работы:
// реальных действий не выполняет, используется при отключенном кластере
type NoOpPubSub struct{}

// Publish реализует метод PubSubProvider.Publish для NoOpPubSub
func (p *NoOpPubSub) Publish(channel string, message []byte) error {
	return nil
}

// Subscribe реализует метод PubSubProvider.Subscribe для NoOpPubSub
func (p *NoOpPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	msgCh := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(msgCh)
	}()
	return msgCh, nil
}

// Close реализует метод PubSubProvider.Close для NoOpPubSub
func (p *NoOpPubSub) Close() error {
	return nil
}

// ClusterHub пробрасывает комнатные и адресные рассылки между инстансами
// через Pub/Sub, чтобы broadcast достигал соединений, живущих на других
// процессах.
type ClusterHub struct {
	config   config.ClusterConfig
	hub      *Hub
	Provider PubSubProvider
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewClusterHub создает новый экземпляр ClusterHub
func NewClusterHub(hub *Hub, cfg config.ClusterConfig, provider PubSubProvider) *ClusterHub {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.RoomChannel == "" {
		cfg.RoomChannel = "ws:cluster:rooms"
	}
	if cfg.DirectChannel == "" {
		cfg.DirectChannel = "ws:cluster:direct"
	}
	if provider == nil {
		log.Println("ClusterHub: Провайдер Pub/Sub не предоставлен, используется NoOpPubSub")
		provider = &NoOpPubSub{}
	}

	return &ClusterHub{
		config:   cfg,
		hub:      hub,
		Provider: provider,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start запускает обработку сообщений кластера
func (ch *ClusterHub) Start() error {
	if !ch.config.Enabled {
		log.Println("ClusterHub: кластерный режим отключен, работаем в автономном режиме")
		return nil
	}

	log.Printf("ClusterHub: запуск кластерного режима, ID экземпляра: %s", ch.hub.InstanceID())

	ch.wg.Add(1)
	go func() {
		defer ch.wg.Done()
		ch.handleChannel(ch.config.RoomChannel)
	}()

	ch.wg.Add(1)
	go func() {
		defer ch.wg.Done()
		ch.handleChannel(ch.config.DirectChannel)
	}()

	return nil
}

// Stop останавливает обработку сообщений кластера
func (ch *ClusterHub) Stop() {
	if !ch.config.Enabled {
		return
	}
	log.Println("ClusterHub: остановка кластерного режима")
	ch.cancel()
	ch.wg.Wait()
}

// BroadcastRoomToCluster отправляет комнатную рассылку остальным инстансам
func (ch *ClusterHub) BroadcastRoomToCluster(room string, payload []byte) error {
	if !ch.config.Enabled {
		return nil
	}

	msg := ClusterMessage{
		MessageType: "room",
		Room:        room,
		InstanceID:  ch.hub.InstanceID(),
		Payload:     payload,
		Timestamp:   time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ch.Provider.Publish(ch.config.RoomChannel, data)
}

// SendToConnInCluster отправляет сообщение соединению через кластер
func (ch *ClusterHub) SendToConnInCluster(connID string, payload []byte) error {
	if !ch.config.Enabled {
		return nil
	}

	msg := ClusterMessage{
		MessageType: "direct",
		RecipientID: connID,
		InstanceID:  ch.hub.InstanceID(),
		Payload:     payload,
		Timestamp:   time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ch.Provider.Publish(ch.config.DirectChannel, data)
}

// handleChannel обрабатывает входящие сообщения кластера из одного канала
func (ch *ClusterHub) handleChannel(channel string) {
	msgCh, err := ch.Provider.Subscribe(ch.ctx, channel)
	if err != nil {
		log.Printf("ClusterHub: CRITICAL: ошибка подписки на канал %s: %v", channel, err)
		return
	}
	log.Printf("ClusterHub: начата обработка сообщений канала %s", channel)

	for {
		select {
		case <-ch.ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				log.Printf("ClusterHub: канал %s закрыт", channel)
				return
			}

			var msg ClusterMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("ClusterHub: ошибка десериализации сообщения из %s: %v", channel, err)
				continue
			}

			// Пропускаем сообщения от самого себя
			if msg.InstanceID == ch.hub.InstanceID() {
				continue
			}

			switch msg.MessageType {
			case "room":
				// Локальная рассылка, без повторной отправки в кластер
				ch.hub.BroadcastToRoom(msg.Room, msg.Payload)
			case "direct":
				if msg.RecipientID != "" {
					_ = ch.hub.SendToConn(msg.RecipientID, msg.Payload)
				}
			default:
				log.Printf("ClusterHub: получено неизвестное сообщение от %s: %s", msg.InstanceID, msg.MessageType)
			}
		}
	}
}

// RedisPubSub реализует PubSubProvider с использованием Redis
type RedisPubSub struct {
	client        redis.UniversalClient
	ctx           context.Context
	cancel        context.CancelFunc
	subscriptions sync.Map // channel -> *redis.PubSub
	mu            sync.Mutex
}

// NewRedisPubSub создает новый Redis Pub/Sub провайдер, используя существующий клиент
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}

	ctx, cancelCheck := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCheck()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("provided redis client failed ping check: %w", err)
	}

	ctxPubSub, cancelPubSub := context.WithCancel(context.Background())
	return &RedisPubSub{
		client: client,
		ctx:    ctxPubSub,
		cancel: cancelPubSub,
	}, nil
}

// Publish публикует сообщение в указанный канал
func (p *RedisPubSub) Publish(channel string, message []byte) error {
	cmd := p.client.Publish(p.ctx, channel, message)
	if err := cmd.Err(); err != nil {
		log.Printf("RedisPubSub: ошибка публикации в канал '%s': %v", channel, err)
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe подписывается на указанный канал Redis
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pubsub := p.client.Subscribe(p.ctx, channel)

	// Ждем подтверждения подписки
	if _, err := pubsub.Receive(p.ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	p.subscriptions.Store(channel, pubsub)
	log.Printf("RedisPubSub: подписка на канал '%s' установлена", channel)

	msgCh := make(chan []byte, 100)

	go func() {
		defer func() {
			p.subscriptions.Delete(channel)
			pubsub.Close()
			close(msgCh)
			log.Printf("RedisPubSub: подписка на канал '%s' закрыта", channel)
		}()

		redisCh := pubsub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				case <-p.ctx.Done():
					return
				case <-ctx.Done():
					return
				}
			case <-p.ctx.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgCh, nil
}

// Close закрывает все активные подписки
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancel()

	var lastErr error
	p.subscriptions.Range(func(key, value interface{}) bool {
		if pubsub, ok := value.(*redis.PubSub); ok {
			if err := pubsub.Close(); err != nil {
				lastErr = err
			}
		}
		return true
	})
	return lastErr
}
