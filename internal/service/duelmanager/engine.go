package duelmanager

import (
	"errors"
	"fmt"
	"log"
	"time"

	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"

	"github.com/yourusername/duel-api/internal/domain/entity"
)

// Время жизни отметки о применённой задаче планировщика
const jobClaimTTL = 5 * time.Minute

// Время жизни отметки о завершении матча
const matchEndClaimTTL = 10 * time.Minute

// Engine - машина состояний матча. Запускает вопросы, проверяет ответы,
// замораживает ошибившихся, продвигает и завершает матчи, сверяет
// протухшие задачи планировщика. Не держит состояния в памяти:
// каждый вызов читает сессию из общего хранилища и пишет её обратно,
// поэтому любой инстанс может обработать любое событие любого матча.
type Engine struct {
	config *Config
	deps   *Dependencies
}

// NewEngine создает движок матчей
func NewEngine(config *Config, deps *Dependencies) *Engine {
	return &Engine{
		config: config,
		deps:   deps,
	}
}

// StartNextQuestion продвигает матч к следующему вопросу: сбрасывает
// заморозки, вычисляет дедлайн, рассылает вопрос и ставит задачи
// player_timeout и question_end. Если вопросы закончились, ничего не
// делает: завершение матча идёт через путь question_end / ответа.
func (e *Engine) StartNextQuestion(matchID string) error {
	sess, err := e.deps.SessionRepo.Get(matchID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("failed to load session for match %s: %w", matchID, err)
		}
		// Сессии нет в общем хранилище (истёк TTL или инстанс не видел
		// создания матча) - регидрируем минимальную из сохранённого матча
		sess, err = e.rehydrateSession(matchID)
		if err != nil {
			return err
		}
	}

	nextIndex := sess.CurrentIndex + 1
	if nextIndex >= len(sess.Questions) {
		return nil
	}

	question, err := e.deps.QuestionRepo.GetByID(sess.Questions[nextIndex].QuestionID)
	if err != nil {
		log.Printf("[DuelEngine] WARNING: вопрос %d матча %s не найден: %v",
			sess.Questions[nextIndex].QuestionID, matchID, err)
		return fmt.Errorf("failed to load question for match %s: %w", matchID, err)
	}

	now := time.Now()
	deadline := now.Add(e.config.QuestionTime)

	sess.CurrentIndex = nextIndex
	sess.Frozen = make(map[string]int64)
	sess.QuestionEndAt = deadline.UnixMilli()

	if err := e.deps.SessionRepo.Save(sess); err != nil {
		return fmt.Errorf("failed to save session for match %s: %w", matchID, err)
	}

	event := &QuestionEvent{
		MatchID:        matchID,
		QuestionIndex:  nextIndex,
		QuestionsTotal: len(sess.Questions),
		Text:           question.Text,
		Options:        question.Options,
		DeadlineMs:     sess.QuestionEndAt,
		DurationSec:    int(e.config.QuestionTime.Seconds()),
	}

	// Рассылаем и в комнату, и каждому известному соединению отдельно:
	// соединение могло не попасть в комнату из-за провалов распространения
	// членства между инстансами
	e.emitToMatch(sess, EventQuestion, event)

	e.scheduleJob(&entity.ScheduledJob{
		MatchID:       matchID,
		QuestionIndex: nextIndex,
		RunAtMs:       now.Add(e.config.SoftTimeout).UnixMilli(),
		EventType:     entity.JobPlayerTimeout,
	})
	e.scheduleJob(&entity.ScheduledJob{
		MatchID:       matchID,
		QuestionIndex: nextIndex,
		RunAtMs:       sess.QuestionEndAt,
		EventType:     entity.JobQuestionEnd,
	})

	log.Printf("[DuelEngine] Матч %s: вопрос %d/%d, дедлайн %s",
		matchID, nextIndex+1, len(sess.Questions), deadline.Format(time.RFC3339))
	return nil
}

// SubmitAnswer проверяет ответ игрока на вопрос. Устаревшие отправки
// (индекс не совпадает с текущим) молча игнорируются; ответ замороженного
// игрока отклоняется с ошибкой-конфликтом.
func (e *Engine) SubmitAnswer(matchID string, questionIndex int, option int, playerID string) error {
	sess, err := e.deps.SessionRepo.Get(matchID)
	if err != nil {
		return fmt.Errorf("failed to load session for match %s: %w", matchID, err)
	}
	if !sess.HasPlayer(playerID) {
		return apperrors.ErrUnauthorized
	}
	if questionIndex != sess.CurrentIndex || questionIndex < 0 || questionIndex >= len(sess.Questions) {
		// Вопрос уже сменился - устаревшая отправка, не ошибка
		log.Printf("[DuelEngine] Матч %s: устаревший ответ игрока %s на вопрос %d (текущий %d), игнорируется",
			matchID, playerID, questionIndex, sess.CurrentIndex)
		return nil
	}

	nowMs := time.Now().UnixMilli()
	if sess.IsFrozen(playerID, nowMs) {
		return fmt.Errorf("player %s is frozen until %d: %w", playerID, sess.Frozen[playerID], apperrors.ErrConflict)
	}

	sess.Activity[questionIndex] = true
	correct := option == sess.Questions[questionIndex].CorrectOption

	if correct {
		return e.applyCorrectAnswer(sess, questionIndex, option, playerID)
	}
	return e.applyWrongAnswer(sess, questionIndex, option, playerID, nowMs)
}

// applyCorrectAnswer досрочно завершает вопрос: счёт, отмена задач,
// раскрытие правильного варианта и отложенное продвижение
func (e *Engine) applyCorrectAnswer(sess *entity.MatchSession, questionIndex int, option int, playerID string) error {
	sess.Scores[playerID]++
	sess.Frozen = make(map[string]int64)

	if err := e.deps.SessionRepo.Save(sess); err != nil {
		return fmt.Errorf("failed to save session for match %s: %w", sess.MatchID, err)
	}

	if removed, err := e.deps.JobRepo.Cancel(sess.MatchID, questionIndex, ""); err != nil {
		log.Printf("[DuelEngine] WARNING: ошибка отмены задач вопроса %d матча %s: %v",
			questionIndex, sess.MatchID, err)
	} else if removed > 0 {
		log.Printf("[DuelEngine] Матч %s: отменено %d задач досрочно завершённого вопроса %d",
			sess.MatchID, removed, questionIndex)
	}

	e.emitToRoom(sess, EventAnswerResult, &AnswerResultEvent{
		MatchID:       sess.MatchID,
		QuestionIndex: questionIndex,
		PlayerID:      playerID,
		Correct:       true,
		Option:        option,
		Scores:        sess.Scores,
	})
	e.emitToRoom(sess, EventQuestionEnd, &QuestionEndEvent{
		MatchID:       sess.MatchID,
		QuestionIndex: questionIndex,
		CorrectOption: sess.Questions[questionIndex].CorrectOption,
		WinnerID:      playerID,
		Scores:        sess.Scores,
	})

	matchID := sess.MatchID
	time.AfterFunc(e.config.RevealDelay, func() {
		e.advanceAfterReveal(matchID, questionIndex)
	})
	return nil
}

// applyWrongAnswer замораживает ошибившегося игрока до ближайшего из
// now+FreezeTime и дедлайна вопроса. Если заморозка оставила бы
// замороженными обоих игроков, обе снимаются немедленно: прогресс матча
// не должен зависеть от третьей стороны.
func (e *Engine) applyWrongAnswer(sess *entity.MatchSession, questionIndex int, option int, playerID string, nowMs int64) error {
	unfreezeAt := nowMs + e.config.FreezeTime.Milliseconds()
	if sess.QuestionEndAt > 0 && unfreezeAt > sess.QuestionEndAt {
		unfreezeAt = sess.QuestionEndAt
	}
	sess.Frozen[playerID] = unfreezeAt

	if sess.AllFrozen(nowMs) {
		sess.Frozen = make(map[string]int64)
		if err := e.deps.SessionRepo.Save(sess); err != nil {
			return fmt.Errorf("failed to save session for match %s: %w", sess.MatchID, err)
		}
		e.emitToRoom(sess, EventAnswerResult, &AnswerResultEvent{
			MatchID:       sess.MatchID,
			QuestionIndex: questionIndex,
			PlayerID:      playerID,
			Correct:       false,
			Option:        option,
			Scores:        sess.Scores,
		})
		for _, id := range sess.PlayerIDs {
			e.emitToRoom(sess, EventUnfrozen, &UnfrozenEvent{MatchID: sess.MatchID, PlayerID: id})
		}
		log.Printf("[DuelEngine] Матч %s: оба игрока заморожены на вопросе %d, немедленная разморозка обоих",
			sess.MatchID, questionIndex)
		return nil
	}

	if err := e.deps.SessionRepo.Save(sess); err != nil {
		return fmt.Errorf("failed to save session for match %s: %w", sess.MatchID, err)
	}

	e.emitToRoom(sess, EventAnswerResult, &AnswerResultEvent{
		MatchID:       sess.MatchID,
		QuestionIndex: questionIndex,
		PlayerID:      playerID,
		Correct:       false,
		Option:        option,
		Frozen:        true,
		UnfreezeAtMs:  unfreezeAt,
		Scores:        sess.Scores,
	})

	e.scheduleJob(&entity.ScheduledJob{
		MatchID:       sess.MatchID,
		QuestionIndex: questionIndex,
		RunAtMs:       unfreezeAt,
		EventType:     entity.JobUnfreeze,
		PlayerID:      playerID,
	})
	return nil
}

// HandleJobNotification применяет сработавшую задачу планировщика.
// Уведомление приходит всем инстансам; право применения разыгрывается
// через SetNX-отметку, после чего задача сверяется с текущим индексом
// сессии - задача уже завершившегося вопроса безопасно игнорируется.
func (e *Engine) HandleJobNotification(job *entity.ScheduledJob) error {
	claimed, err := e.deps.CacheRepo.SetNX(KeyJobDone+job.ID(), "1", jobClaimTTL)
	if err != nil {
		// Кеш недоступен - применяем без отметки: повторное применение
		// безопасно благодаря сверке индекса
		log.Printf("[DuelEngine] WARNING: ошибка отметки задачи %s: %v", job.ID(), err)
	} else if !claimed {
		return nil
	}

	sess, err := e.deps.SessionRepo.Get(job.MatchID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Матч уже завершён и сессия удалена
			return nil
		}
		return fmt.Errorf("failed to load session for job %s: %w", job.ID(), err)
	}

	if job.QuestionIndex != sess.CurrentIndex {
		log.Printf("[DuelEngine] Матч %s: задача %s относится к вопросу %d (текущий %d), игнорируется",
			job.MatchID, job.EventType, job.QuestionIndex, sess.CurrentIndex)
		return nil
	}

	switch job.EventType {
	case entity.JobPlayerTimeout:
		// Мягкий таймаут состояние не меняет (зарезервировано под
		// предупреждающий UX)
		return nil

	case entity.JobUnfreeze:
		return e.applyUnfreeze(sess, job.PlayerID)

	case entity.JobQuestionEnd:
		return e.applyQuestionEnd(sess, job.QuestionIndex)

	default:
		log.Printf("[DuelEngine] WARNING: неизвестный тип задачи '%s' для матча %s", job.EventType, job.MatchID)
		return nil
	}
}

// applyUnfreeze снимает заморозку с одного игрока
func (e *Engine) applyUnfreeze(sess *entity.MatchSession, playerID string) error {
	if _, ok := sess.Frozen[playerID]; !ok {
		return nil
	}
	delete(sess.Frozen, playerID)
	if err := e.deps.SessionRepo.Save(sess); err != nil {
		return fmt.Errorf("failed to save session for match %s: %w", sess.MatchID, err)
	}
	e.emitToRoom(sess, EventUnfrozen, &UnfrozenEvent{MatchID: sess.MatchID, PlayerID: playerID})
	return nil
}

// applyQuestionEnd обрабатывает жёсткий дедлайн вопроса. Если по вопросу
// не было ни одной попытки ответа, матч целиком завершается ничьёй
// (игроки его бросили); иначе вопрос раскрывается и матч продвигается.
func (e *Engine) applyQuestionEnd(sess *entity.MatchSession, questionIndex int) error {
	if !sess.Activity[questionIndex] {
		log.Printf("[DuelEngine] Матч %s: вопрос %d остался без единого ответа, матч завершается ничьёй",
			sess.MatchID, questionIndex)
		return e.endMatch(sess, "", true)
	}

	e.emitToRoom(sess, EventQuestionEnd, &QuestionEndEvent{
		MatchID:       sess.MatchID,
		QuestionIndex: questionIndex,
		CorrectOption: sess.Questions[questionIndex].CorrectOption,
		Scores:        sess.Scores,
	})

	matchID := sess.MatchID
	time.AfterFunc(e.config.RevealDelay, func() {
		e.advanceAfterReveal(matchID, questionIndex)
	})
	return nil
}

// advanceAfterReveal вызывается по истечении паузы показа правильного
// ответа: продвигает матч или завершает его, если вопрос был последним.
// Перепроверяет индекс - за время паузы матч мог продвинуться иначе.
func (e *Engine) advanceAfterReveal(matchID string, resolvedIndex int) {
	sess, err := e.deps.SessionRepo.Get(matchID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[DuelEngine] WARNING: ошибка загрузки сессии матча %s после показа ответа: %v", matchID, err)
		}
		return
	}
	if sess.CurrentIndex != resolvedIndex {
		return
	}

	if resolvedIndex >= sess.LastQuestionIndex() {
		if err := e.endMatch(sess, "", false); err != nil {
			log.Printf("[DuelEngine] CRITICAL: ошибка завершения матча %s: %v", matchID, err)
		}
		return
	}
	if err := e.StartNextQuestion(matchID); err != nil {
		log.Printf("[DuelEngine] CRITICAL: ошибка старта следующего вопроса матча %s: %v", matchID, err)
	}
}

// Forfeit принудительно завершает матч в пользу соперника покинувшего
// игрока. Используется при явном выходе и при разрыве соединения.
func (e *Engine) Forfeit(matchID string, leavingPlayerID string) error {
	sess, err := e.deps.SessionRepo.Get(matchID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load session for match %s: %w", matchID, err)
	}
	if !sess.HasPlayer(leavingPlayerID) {
		return nil
	}

	// Отметку завершения берём до уведомления: форфейт может гнаться
	// с question_end, и для уже завершённого матча opponent_left не шлём
	if !e.claimMatchEnd(matchID) {
		return nil
	}

	e.emitToRoom(sess, EventOpponentLeft, &OpponentLeftEvent{
		MatchID:  matchID,
		PlayerID: leavingPlayerID,
	})

	winnerID := sess.Opponent(leavingPlayerID)
	return e.finalizeMatch(sess, winnerID, false)
}

// FreezeState собирает снимок состояния текущего вопроса для
// переподключившегося клиента
func (e *Engine) FreezeState(matchID string, playerID string) (*FreezeStateEvent, error) {
	sess, err := e.deps.SessionRepo.Get(matchID)
	if err != nil {
		return nil, err
	}
	if !sess.HasPlayer(playerID) {
		return nil, apperrors.ErrUnauthorized
	}

	nowMs := time.Now().UnixMilli()
	state := &FreezeStateEvent{
		MatchID:       matchID,
		QuestionIndex: sess.CurrentIndex,
		DeadlineMs:    sess.QuestionEndAt,
		Scores:        sess.Scores,
	}
	if sess.IsFrozen(playerID, nowMs) {
		state.Frozen = true
		state.UnfreezeAtMs = sess.Frozen[playerID]
	}
	return state, nil
}

// claimMatchEnd берёт SetNX-отметку завершения матча. Повторное
// завершение (гонка форфейта с question_end) отметку не получает.
// При недоступности Redis завершение не блокируем.
func (e *Engine) claimMatchEnd(matchID string) bool {
	claimed, err := e.deps.CacheRepo.SetNX(KeyMatchEnded+matchID, "1", matchEndClaimTTL)
	if err != nil {
		log.Printf("[DuelEngine] WARNING: ошибка отметки завершения матча %s: %v", matchID, err)
		return true
	}
	return claimed
}

// endMatch завершает матч, если отметка завершения ещё не взята
func (e *Engine) endMatch(sess *entity.MatchSession, forcedWinnerID string, forceDraw bool) error {
	if !e.claimMatchEnd(sess.MatchID) {
		return nil
	}
	return e.finalizeMatch(sess, forcedWinnerID, forceDraw)
}

// finalizeMatch определяет победителя, сохраняет итог, применяет
// рейтинги реальным участникам и рассылает терминальное событие.
// Вызывается строго после взятия отметки завершения.
func (e *Engine) finalizeMatch(sess *entity.MatchSession, forcedWinnerID string, forceDraw bool) error {
	if _, err := e.deps.JobRepo.Cancel(sess.MatchID, sess.CurrentIndex, ""); err != nil {
		log.Printf("[DuelEngine] WARNING: ошибка отмены задач завершаемого матча %s: %v", sess.MatchID, err)
	}

	winnerID, draw := e.resolveOutcome(sess, forcedWinnerID, forceDraw)
	players := e.loadPlayerInfos(sess)

	var deltas map[string]int
	if !draw {
		deltas = e.applyRatings(sess, winnerID, players)
	}

	result := entity.MatchResultData{
		WinnerID: winnerID,
		Draw:     draw,
		Scores:   sess.Scores,
		Players:  players,
		Deltas:   deltas,
	}
	if err := e.deps.MatchRepo.Finish(sess.MatchID, result); err != nil {
		log.Printf("[DuelEngine] WARNING: ошибка сохранения итога матча %s: %v", sess.MatchID, err)
	}

	e.emitToRoom(sess, EventMatchEnd, &MatchEndEvent{
		MatchID:  sess.MatchID,
		WinnerID: winnerID,
		Draw:     draw,
		Scores:   sess.Scores,
		Players:  players,
		Deltas:   deltas,
	})

	if err := e.deps.SessionRepo.Delete(sess.MatchID); err != nil {
		log.Printf("[DuelEngine] WARNING: ошибка удаления сессии матча %s: %v", sess.MatchID, err)
	}
	for _, playerID := range sess.PlayerIDs {
		if err := e.deps.SessionRepo.ClearActiveMatch(playerID); err != nil {
			log.Printf("[DuelEngine] WARNING: ошибка сброса активного матча игрока %s: %v", playerID, err)
		}
	}

	if draw {
		log.Printf("[DuelEngine] Матч %s завершён ничьёй, счёт %v", sess.MatchID, sess.Scores)
	} else {
		log.Printf("[DuelEngine] Матч %s завершён, победитель %s, счёт %v", sess.MatchID, winnerID, sess.Scores)
	}
	return nil
}

// resolveOutcome определяет победителя: принудительный исход (форфейт,
// заброшенный матч) или сравнение счёта, где равенство даёт ничью
func (e *Engine) resolveOutcome(sess *entity.MatchSession, forcedWinnerID string, forceDraw bool) (string, bool) {
	if forceDraw {
		return "", true
	}
	if forcedWinnerID != "" {
		return forcedWinnerID, false
	}
	if len(sess.PlayerIDs) != 2 {
		return "", true
	}
	s1 := sess.Scores[sess.PlayerIDs[0]]
	s2 := sess.Scores[sess.PlayerIDs[1]]
	switch {
	case s1 > s2:
		return sess.PlayerIDs[0], false
	case s2 > s1:
		return sess.PlayerIDs[1], false
	default:
		return "", true
	}
}

// applyRatings применяет счётчики побед/поражений и дельту рейтинга
// реальным (не гостевым) участникам, обновляя таблицу лидеров.
// Возвращает дельты по идентичностям для терминального события.
func (e *Engine) applyRatings(sess *entity.MatchSession, winnerID string, players []entity.PlayerInfo) map[string]int {
	tiers := make(map[string]int, len(players))
	for _, p := range players {
		tiers[p.PlayerID] = p.Tier
	}
	loserID := sess.Opponent(winnerID)
	delta := e.deps.Rating.ComputeDelta(tiers[winnerID], tiers[loserID])

	deltas := make(map[string]int, 2)
	for _, playerID := range sess.PlayerIDs {
		won := playerID == winnerID
		if won {
			deltas[playerID] = delta
		} else {
			deltas[playerID] = -delta
		}

		userID, ok := entity.UserIDFromPlayerID(playerID)
		if !ok {
			// Гости в рейтинговый движок не попадают
			continue
		}
		user, err := e.deps.UserRepo.GetByID(userID)
		if err != nil {
			log.Printf("[DuelEngine] WARNING: пользователь %d не найден при применении рейтинга: %v", userID, err)
			continue
		}

		newRating := user.Rating + deltas[playerID]
		if newRating < 0 {
			newRating = 0
		}
		user.Rating = newRating
		newTier := e.deps.Rating.SyncTier(user)

		if err := e.deps.UserRepo.ApplyMatchOutcome(userID, won, newRating, newTier); err != nil {
			log.Printf("[DuelEngine] WARNING: ошибка применения итога матча пользователю %d: %v", userID, err)
			continue
		}
		if err := e.deps.CacheRepo.ZAdd(KeyLeaderboard, float64(newRating), playerID); err != nil {
			log.Printf("[DuelEngine] WARNING: ошибка обновления таблицы лидеров для %s: %v", playerID, err)
		}
	}
	return deltas
}

// loadPlayerInfos собирает снимки отображаемых данных участников:
// реальные пользователи читаются из хранилища, гости собираются из сессии
func (e *Engine) loadPlayerInfos(sess *entity.MatchSession) []entity.PlayerInfo {
	players := make([]entity.PlayerInfo, 0, len(sess.PlayerIDs))
	for _, playerID := range sess.PlayerIDs {
		if userID, ok := entity.UserIDFromPlayerID(playerID); ok {
			if user, err := e.deps.UserRepo.GetByID(userID); err == nil {
				players = append(players, entity.PlayerInfo{
					PlayerID: playerID,
					Username: user.Username,
					Avatar:   user.Avatar,
					Rating:   user.Rating,
					Tier:     user.Tier,
				})
				continue
			}
			log.Printf("[DuelEngine] WARNING: не удалось загрузить пользователя для %s", playerID)
		}
		players = append(players, entity.PlayerInfo{
			PlayerID: playerID,
			Username: sess.Usernames[playerID],
			Guest:    entity.IsGuestID(playerID),
		})
	}
	return players
}

// rehydrateSession восстанавливает минимальную сессию из сохранённой
// записи матча, когда эфемерное состояние потеряно
func (e *Engine) rehydrateSession(matchID string) (*entity.MatchSession, error) {
	match, err := e.deps.MatchRepo.GetByID(matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to rehydrate match %s: %w", matchID, err)
	}
	if match.IsFinished() {
		return nil, apperrors.ErrNotFound
	}

	questions, err := e.deps.QuestionRepo.GetByIDs([]uint(match.QuestionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to rehydrate questions for match %s: %w", matchID, err)
	}
	byID := make(map[uint]*entity.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	sessionQuestions := make([]entity.SessionQuestion, 0, len(match.QuestionIDs))
	for _, id := range match.QuestionIDs {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %d referenced by match %s is missing: %w", id, matchID, apperrors.ErrNotFound)
		}
		sessionQuestions = append(sessionQuestions, entity.SessionQuestion{
			QuestionID:    q.ID,
			CorrectOption: q.CorrectOption,
		})
	}

	sess := entity.NewMatchSession(matchID, match.PlayerIDs(), sessionQuestions, match.Subject)
	for _, playerID := range sess.PlayerIDs {
		if userID, ok := entity.UserIDFromPlayerID(playerID); ok {
			if user, err := e.deps.UserRepo.GetByID(userID); err == nil {
				sess.Usernames[playerID] = user.Username
			}
		}
	}

	if err := e.deps.SessionRepo.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to save rehydrated session for match %s: %w", matchID, err)
	}
	log.Printf("[DuelEngine] WARNING: сессия матча %s восстановлена из сохранённой записи", matchID)
	return sess, nil
}

// emitToRoom рассылает событие в комнату матча
func (e *Engine) emitToRoom(sess *entity.MatchSession, eventType string, data interface{}) {
	if err := e.deps.Broadcaster.EmitToRoom(sess.MatchID, eventType, data); err != nil {
		log.Printf("[DuelEngine] WARNING: ошибка рассылки %s в комнату %s: %v", eventType, sess.MatchID, err)
	}
}

// emitToMatch рассылает событие в комнату матча И дублирует его каждому
// известному соединению участников: соединение могло не попасть в комнату
// из-за провалов распространения членства между инстансами
func (e *Engine) emitToMatch(sess *entity.MatchSession, eventType string, data interface{}) {
	e.emitToRoom(sess, eventType, data)
	for _, connID := range sess.Participants {
		if err := e.deps.Broadcaster.EmitToConn(connID, eventType, data); err != nil {
			log.Printf("[DuelEngine] WARNING: ошибка отправки %s соединению %s: %v", eventType, connID, err)
		}
	}
}

// scheduleJob ставит задачу планировщика, логируя сбой вместо аварии:
// матч с потерянной задачей доиграется через сверки индексов
func (e *Engine) scheduleJob(job *entity.ScheduledJob) {
	if err := e.deps.JobRepo.Schedule(job); err != nil {
		log.Printf("[DuelEngine] WARNING: ошибка постановки задачи %s: %v", job.ID(), err)
	}
}
