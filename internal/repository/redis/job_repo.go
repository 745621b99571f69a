package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/duel-api/internal/domain/entity"
)

const jobsKey = "duel:jobs"

// popDueScript атомарно выбирает и удаляет задачи с score <= ARGV[1].
// Выборка и удаление в одном скрипте гарантируют, что упавший вызов
// не потеряет задачи: либо задачи изъяты и возвращены, либо остались в месте.
var popDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
if #due > 0 then
	redis.call('ZREM', KEYS[1], unpack(due))
end
return due
`)

// JobRepo реализует repository.JobRepository поверх сортированного
// множества Redis: member - JSON задачи, score - время срабатывания (ms).
// Повторная вставка задачи с тем же кортежем идентификации перезаписывает
// тот же member и дубликата не создаёт.
type JobRepo struct {
	client redis.UniversalClient
	ctx    context.Context
}

// NewJobRepo создает новое хранилище отложенных событий
func NewJobRepo(client redis.UniversalClient) (*JobRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for JobRepo")
	}
	return &JobRepo{
		client: client,
		ctx:    context.Background(),
	}, nil
}

// Schedule вставляет задачу в хранилище
func (r *JobRepo) Schedule(job *entity.ScheduledJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return r.client.ZAdd(r.ctx, jobsKey, &redis.Z{
		Score:  float64(job.RunAtMs),
		Member: data,
	}).Err()
}

// Cancel удаляет задачи матча с указанным индексом вопроса.
// Пустой eventType снимает задачи всех типов.
func (r *JobRepo) Cancel(matchID string, questionIndex int, eventType string) (int, error) {
	raw, err := r.client.ZRange(r.ctx, jobsKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, item := range raw {
		var job entity.ScheduledJob
		if err := json.Unmarshal([]byte(item), &job); err != nil {
			continue
		}
		if job.MatchID != matchID || job.QuestionIndex != questionIndex {
			continue
		}
		if eventType != "" && job.EventType != eventType {
			continue
		}
		if err := r.client.ZRem(r.ctx, jobsKey, item).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// PollDue атомарно изымает задачи со временем срабатывания <= nowMs
func (r *JobRepo) PollDue(nowMs int64, limit int) ([]entity.ScheduledJob, error) {
	raw, err := popDueScript.Run(r.ctx, r.client,
		[]string{jobsKey},
		strconv.FormatInt(nowMs, 10),
		strconv.Itoa(limit),
	).StringSlice()
	if err != nil {
		return nil, err
	}

	jobs := make([]entity.ScheduledJob, 0, len(raw))
	for _, item := range raw {
		var job entity.ScheduledJob
		if err := json.Unmarshal([]byte(item), &job); err != nil {
			// Битая запись уже изъята из множества, просто пропускаем
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
