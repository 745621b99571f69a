package duelmanager

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/yourusername/duel-api/internal/domain/entity"
	"github.com/yourusername/duel-api/internal/domain/repository"
)

// Имя канала уведомлений о сработавших задачах по умолчанию
const DefaultJobChannel = "duel:jobs:due"

// JobPublisher публикует уведомления о сработавших задачах.
// Реализуется websocket.RedisPubSub.
type JobPublisher interface {
	Publish(channel string, message []byte) error
}

// JobSubscriber подписывается на канал уведомлений.
// Реализуется websocket.RedisPubSub.
type JobSubscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Poller - цикл опроса распределённого планировщика. Работает в одном
// выделенном процессе (sweeper): с фиксированным интервалом атомарно
// изымает созревшие задачи и публикует уведомление о каждой в общий
// канал. Какой инстанс применит задачу, решают сами инстансы.
type Poller struct {
	jobs      repository.JobRepository
	publisher JobPublisher
	channel   string
	interval  time.Duration
	limit     int
}

// NewPoller создает Poller
func NewPoller(jobs repository.JobRepository, publisher JobPublisher, channel string, interval time.Duration, limit int) *Poller {
	if channel == "" {
		channel = DefaultJobChannel
	}
	if interval <= 0 {
		interval = time.Second
	}
	if limit <= 0 {
		limit = 100
	}
	return &Poller{
		jobs:      jobs,
		publisher: publisher,
		channel:   channel,
		interval:  interval,
		limit:     limit,
	}
}

// Run крутит цикл опроса до отмены контекста. Ошибка тика логируется,
// следующий тик повторяет попытку: изъятие атомарно с выборкой, поэтому
// упавший тик задач не теряет.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("[Poller] Запуск цикла опроса: интервал %s, лимит %d, канал '%s'",
		p.interval, p.limit, p.channel)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Poller] Цикл опроса остановлен")
			return
		case <-ticker.C:
			p.tick(time.Now().UnixMilli())
		}
	}
}

// tick изымает созревшие задачи и публикует уведомления
func (p *Poller) tick(nowMs int64) {
	due, err := p.jobs.PollDue(nowMs, p.limit)
	if err != nil {
		log.Printf("[Poller] WARNING: ошибка опроса планировщика: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Printf("[Poller] Созрело задач: %d", len(due))

	for i := range due {
		data, err := json.Marshal(&due[i])
		if err != nil {
			log.Printf("[Poller] CRITICAL: ошибка сериализации задачи %s: %v", due[i].ID(), err)
			continue
		}
		if err := p.publisher.Publish(p.channel, data); err != nil {
			log.Printf("[Poller] CRITICAL: ошибка публикации задачи %s: %v", due[i].ID(), err)
		}
	}
}

// JobListener - принимающая сторона канала уведомлений: каждый serving-
// инстанс слушает канал и передаёт задачи движку, который сам решает,
// применять ли их (отметка SetNX плюс сверка индекса).
type JobListener struct {
	subscriber JobSubscriber
	engine     *Engine
	channel    string
}

// NewJobListener создает JobListener
func NewJobListener(subscriber JobSubscriber, engine *Engine, channel string) *JobListener {
	if channel == "" {
		channel = DefaultJobChannel
	}
	return &JobListener{
		subscriber: subscriber,
		engine:     engine,
		channel:    channel,
	}
}

// Run слушает канал уведомлений до отмены контекста
func (l *JobListener) Run(ctx context.Context) error {
	msgCh, err := l.subscriber.Subscribe(ctx, l.channel)
	if err != nil {
		return err
	}
	log.Printf("[JobListener] Подписка на канал '%s' установлена", l.channel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-msgCh:
			if !ok {
				log.Println("[JobListener] Канал уведомлений закрыт")
				return nil
			}
			var job entity.ScheduledJob
			if err := json.Unmarshal(data, &job); err != nil {
				log.Printf("[JobListener] WARNING: ошибка разбора уведомления: %v", err)
				continue
			}
			if err := l.engine.HandleJobNotification(&job); err != nil {
				log.Printf("[JobListener] WARNING: ошибка применения задачи %s: %v", job.ID(), err)
			}
		}
	}
}
