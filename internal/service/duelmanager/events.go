package duelmanager

import (
	"github.com/yourusername/duel-api/internal/domain/entity"
)

// Типы событий, отправляемых клиентам
const (
	EventMatchFound   = "duel:match_found"
	EventQuestion     = "duel:question"
	EventAnswerResult = "duel:answer_result"
	EventQuestionEnd  = "duel:question_end"
	EventUnfrozen     = "duel:unfrozen"
	EventMatchEnd     = "duel:end"
	EventOpponentLeft = "duel:opponent_left"
	EventFreezeState  = "duel:freeze_state"
)

// Ключи Redis движка дуэлей
const (
	// KeyQueueLock - лок от повторных запросов подбора, + playerID
	KeyQueueLock = "mm:lock:"

	// KeyJobDone - отметка о применённой задаче планировщика, + job.ID()
	KeyJobDone = "duel:jobdone:"

	// KeyMatchEnded - отметка о завершении матча, + matchID
	KeyMatchEnded = "duel:ended:"

	// KeyLeaderboard - сортированное множество рейтингов
	KeyLeaderboard = "leaderboard:rating"
)

// MatchFoundEvent отправляется каждому игроку индивидуально: каждый
// видит себя как player, а соперника как opponent
type MatchFoundEvent struct {
	MatchID        string            `json:"match_id"`
	Subject        string            `json:"subject"`
	QuestionsTotal int               `json:"questions_total"`
	Player         entity.PlayerInfo `json:"player"`
	Opponent       entity.PlayerInfo `json:"opponent"`
}

// QuestionEvent объявляет старт вопроса
type QuestionEvent struct {
	MatchID        string   `json:"match_id"`
	QuestionIndex  int      `json:"question_index"`
	QuestionsTotal int      `json:"questions_total"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	DeadlineMs     int64    `json:"deadline_ms"`
	DurationSec    int      `json:"duration_sec"`
}

// AnswerResultEvent сообщает итог проверки ответа
type AnswerResultEvent struct {
	MatchID       string         `json:"match_id"`
	QuestionIndex int            `json:"question_index"`
	PlayerID      string         `json:"player_id"`
	Correct       bool           `json:"correct"`
	Option        int            `json:"option"`
	Frozen        bool           `json:"frozen"`
	UnfreezeAtMs  int64          `json:"unfreeze_at_ms,omitempty"`
	Scores        map[string]int `json:"scores"`
}

// QuestionEndEvent раскрывает правильный вариант по завершении вопроса
type QuestionEndEvent struct {
	MatchID       string         `json:"match_id"`
	QuestionIndex int            `json:"question_index"`
	CorrectOption int            `json:"correct_option"`
	WinnerID      string         `json:"winner_id,omitempty"`
	Scores        map[string]int `json:"scores"`
}

// UnfrozenEvent сообщает о снятии заморозки с игрока
type UnfrozenEvent struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// MatchEndEvent - терминальное событие матча
type MatchEndEvent struct {
	MatchID  string              `json:"match_id"`
	WinnerID string              `json:"winner_id,omitempty"`
	Draw     bool                `json:"draw"`
	Scores   map[string]int      `json:"scores"`
	Players  []entity.PlayerInfo `json:"players"`
	Deltas   map[string]int      `json:"deltas,omitempty"`
}

// OpponentLeftEvent - уведомление о выходе соперника перед форфейтом
type OpponentLeftEvent struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// FreezeStateEvent - синхронизация состояния для переподключившегося клиента
type FreezeStateEvent struct {
	MatchID       string         `json:"match_id"`
	QuestionIndex int            `json:"question_index"`
	Frozen        bool           `json:"frozen"`
	UnfreezeAtMs  int64          `json:"unfreeze_at_ms,omitempty"`
	DeadlineMs    int64          `json:"deadline_ms"`
	Scores        map[string]int `json:"scores"`
}
