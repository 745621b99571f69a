package entity

import "fmt"

// Типы отложенных событий планировщика
const (
	// JobPlayerTimeout - мягкий таймаут игрока, вопрос не завершает
	JobPlayerTimeout = "player_timeout"

	// JobQuestionEnd - жёсткий дедлайн вопроса
	JobQuestionEnd = "question_end"

	// JobUnfreeze - снятие заморозки с конкретного игрока
	JobUnfreeze = "unfreeze"
)

// ScheduledJob - отложенное событие матча в распределённом планировщике.
// Однозначно идентифицируется кортежем (MatchID, QuestionIndex, RunAtMs,
// EventType), что делает вставку и отмену идемпотентными.
type ScheduledJob struct {
	MatchID       string `json:"match_id"`
	QuestionIndex int    `json:"question_index"`
	RunAtMs       int64  `json:"run_at_ms"`
	EventType     string `json:"event_type"`

	// PlayerID заполняется только для событий unfreeze
	PlayerID string `json:"player_id,omitempty"`
}

// ID возвращает уникальный идентификатор задачи
func (j *ScheduledJob) ID() string {
	return fmt.Sprintf("%s:%d:%d:%s", j.MatchID, j.QuestionIndex, j.RunAtMs, j.EventType)
}
