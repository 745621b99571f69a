package entity

// SessionQuestion - ссылка на вопрос внутри сессии матча.
// Правильный вариант кешируется, чтобы проверка ответа не ходила в базу.
type SessionQuestion struct {
	QuestionID    uint `json:"question_id"`
	CorrectOption int  `json:"correct_option"`
}

// MatchSession - эфемерное авторитетное состояние идущего матча.
// Живёт в общем хранилище на время матча; любой инстанс читает и
// патчит её целиком через SessionRepository.
type MatchSession struct {
	MatchID string `json:"match_id"`

	// CurrentIndex: -1 до старта первого вопроса, далее монотонно растёт
	CurrentIndex int `json:"current_index"`

	Questions []SessionQuestion `json:"questions"`

	// Participants - активные connection id, подписанные на матч
	// (при реконнекте добавляются новые)
	Participants []string `json:"participants"`

	// PlayerIDs - две логические идентичности игроков
	PlayerIDs []string `json:"player_ids"`

	Scores map[string]int `json:"scores"`

	// Usernames: playerID -> отображаемое имя на момент создания матча.
	// Для гостей это единственный источник имени.
	Usernames map[string]string `json:"usernames"`

	// Frozen: playerID -> абсолютный момент разморозки (unix ms).
	// Отсутствие ключа = не заморожен; прошедшее время = протухшая
	// запись, читатели обязаны лениво её удалить.
	Frozen map[string]int64 `json:"frozen"`

	// Activity: questionIndex -> был ли хоть один ответ на вопрос
	Activity map[int]bool `json:"activity"`

	// QuestionEndAt - жёсткий дедлайн текущего вопроса (unix ms)
	QuestionEndAt int64 `json:"question_end_at"`

	Subject string `json:"subject"`
}

// NewMatchSession создаёт начальное состояние сессии матча
func NewMatchSession(matchID string, playerIDs []string, questions []SessionQuestion, subject string) *MatchSession {
	scores := make(map[string]int, len(playerIDs))
	for _, id := range playerIDs {
		scores[id] = 0
	}
	return &MatchSession{
		MatchID:      matchID,
		CurrentIndex: -1,
		Questions:    questions,
		Participants: []string{},
		PlayerIDs:    playerIDs,
		Scores:       scores,
		Usernames:    make(map[string]string, len(playerIDs)),
		Frozen:       make(map[string]int64),
		Activity:     make(map[int]bool),
		Subject:      subject,
	}
}

// Clone возвращает глубокую копию сессии. Используется локальным
// fallback-хранилищем, чтобы вызывающий код не делил карты с кешем.
func (s *MatchSession) Clone() *MatchSession {
	cp := *s
	cp.Questions = append([]SessionQuestion(nil), s.Questions...)
	cp.Participants = append([]string(nil), s.Participants...)
	cp.PlayerIDs = append([]string(nil), s.PlayerIDs...)
	cp.Scores = make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		cp.Scores[k] = v
	}
	cp.Usernames = make(map[string]string, len(s.Usernames))
	for k, v := range s.Usernames {
		cp.Usernames[k] = v
	}
	cp.Frozen = make(map[string]int64, len(s.Frozen))
	for k, v := range s.Frozen {
		cp.Frozen[k] = v
	}
	cp.Activity = make(map[int]bool, len(s.Activity))
	for k, v := range s.Activity {
		cp.Activity[k] = v
	}
	return &cp
}

// EvictStaleFreezes удаляет протухшие записи заморозки (unfreezeAt <= now).
// Возвращает true, если хоть одна запись была удалена и сессию нужно сохранить.
func (s *MatchSession) EvictStaleFreezes(nowMs int64) bool {
	changed := false
	for playerID, unfreezeAt := range s.Frozen {
		if unfreezeAt <= nowMs {
			delete(s.Frozen, playerID)
			changed = true
		}
	}
	return changed
}

// IsFrozen сообщает, заморожен ли игрок в данный момент.
// Перед проверкой лениво вычищает протухшие записи.
func (s *MatchSession) IsFrozen(playerID string, nowMs int64) bool {
	s.EvictStaleFreezes(nowMs)
	_, ok := s.Frozen[playerID]
	return ok
}

// AllFrozen возвращает true, когда заморожены оба игрока
func (s *MatchSession) AllFrozen(nowMs int64) bool {
	s.EvictStaleFreezes(nowMs)
	if len(s.PlayerIDs) == 0 {
		return false
	}
	for _, playerID := range s.PlayerIDs {
		if _, ok := s.Frozen[playerID]; !ok {
			return false
		}
	}
	return true
}

// AddParticipant добавляет connection id, если его ещё нет
func (s *MatchSession) AddParticipant(connID string) bool {
	for _, existing := range s.Participants {
		if existing == connID {
			return false
		}
	}
	s.Participants = append(s.Participants, connID)
	return true
}

// Opponent возвращает идентичность второго игрока
func (s *MatchSession) Opponent(playerID string) string {
	for _, id := range s.PlayerIDs {
		if id != playerID {
			return id
		}
	}
	return ""
}

// HasPlayer проверяет принадлежность идентичности к матчу
func (s *MatchSession) HasPlayer(playerID string) bool {
	for _, id := range s.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// LastQuestionIndex возвращает индекс последнего вопроса
func (s *MatchSession) LastQuestionIndex() int {
	return len(s.Questions) - 1
}
