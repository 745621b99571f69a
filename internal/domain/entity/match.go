package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Статусы матча
const (
	MatchStatusInProgress = "in_progress"
	MatchStatusFinished   = "finished"
)

// MatchResultData - итог матча, сохраняемый в JSONB:
// победитель (пустая строка при ничьей), счёт и снимки игроков
type MatchResultData struct {
	WinnerID string         `json:"winner_id"`
	Draw     bool           `json:"draw"`
	Scores   map[string]int `json:"scores"`
	Players  []PlayerInfo   `json:"players"`
	Deltas   map[string]int `json:"deltas,omitempty"`
}

// Scan реализует интерфейс sql.Scanner для MatchResultData
func (r *MatchResultData) Scan(value interface{}) error {
	if value == nil {
		*r = MatchResultData{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	if len(bytes) == 0 {
		*r = MatchResultData{}
		return nil
	}
	return json.Unmarshal(bytes, r)
}

// Value реализует интерфейс driver.Valuer для MatchResultData
func (r MatchResultData) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Match представляет сохранённую запись матча.
// Создаётся при старте, обновляется при завершении; используется
// движком для регидрации сессии, если её нет в общем хранилище.
type Match struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	Player1ID   string          `gorm:"size:64;not null;index" json:"player1_id"`
	Player2ID   string          `gorm:"size:64;not null;index" json:"player2_id"`
	Subject     string          `gorm:"size:50;not null" json:"subject"`
	QuestionIDs UintArray       `gorm:"type:jsonb;not null" json:"question_ids"`
	Status      string          `gorm:"size:20;not null;index" json:"status"`
	Result      MatchResultData `gorm:"type:jsonb" json:"result"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (Match) TableName() string {
	return "matches"
}

// PlayerIDs возвращает идентичности обоих участников
func (m *Match) PlayerIDs() []string {
	return []string{m.Player1ID, m.Player2ID}
}

// IsFinished возвращает true для завершённого матча
func (m *Match) IsFinished() bool {
	return m.Status == MatchStatusFinished
}
