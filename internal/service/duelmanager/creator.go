package duelmanager

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"

	"github.com/yourusername/duel-api/internal/domain/entity"
)

// MatchCreator переводит пару заявок в запущенный матч. Единая точка
// входа для всех способов образования пары (публичная очередь, приватные
// матчи, приглашения): все они строят те же два QueueEntry и делегируют
// сюда, чтобы логика создания матча не расходилась.
type MatchCreator struct {
	config *Config
	deps   *Dependencies
	engine *Engine
}

// NewMatchCreator создает MatchCreator
func NewMatchCreator(config *Config, deps *Dependencies, engine *Engine) *MatchCreator {
	return &MatchCreator{
		config: config,
		deps:   deps,
		engine: engine,
	}
}

// CreateMatchForParticipants создает и запускает матч для двух участников:
// выбирает вопросы, сохраняет запись матча, пишет начальную сессию,
// подписывает соединения на комнату, рассылает match_found и запускает
// первый вопрос
func (c *MatchCreator) CreateMatchForParticipants(p1, p2 *entity.QueueEntry, subject string) (*entity.Match, error) {
	subject, questions, err := c.pickQuestions(subject)
	if err != nil {
		return nil, err
	}

	match := &entity.Match{
		ID:        uuid.New().String(),
		Player1ID: p1.PlayerID(),
		Player2ID: p2.PlayerID(),
		Subject:   subject,
		Status:    entity.MatchStatusInProgress,
		StartedAt: time.Now(),
	}
	sessionQuestions := make([]entity.SessionQuestion, 0, len(questions))
	for _, q := range questions {
		match.QuestionIDs = append(match.QuestionIDs, q.ID)
		sessionQuestions = append(sessionQuestions, entity.SessionQuestion{
			QuestionID:    q.ID,
			CorrectOption: q.CorrectOption,
		})
	}

	if err := c.deps.MatchRepo.Create(match); err != nil {
		return nil, fmt.Errorf("failed to persist match: %w", err)
	}

	sess := entity.NewMatchSession(match.ID, match.PlayerIDs(), sessionQuestions, subject)
	sess.Usernames[p1.PlayerID()] = p1.Username
	sess.Usernames[p2.PlayerID()] = p2.Username
	sess.AddParticipant(p1.ConnID)
	sess.AddParticipant(p2.ConnID)
	if err := c.deps.SessionRepo.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to save initial session for match %s: %w", match.ID, err)
	}

	for _, entry := range []*entity.QueueEntry{p1, p2} {
		if err := c.deps.SessionRepo.SetActiveMatch(entry.PlayerID(), match.ID); err != nil {
			log.Printf("[MatchCreator] WARNING: ошибка записи активного матча игрока %s: %v", entry.PlayerID(), err)
		}
		c.deps.Broadcaster.JoinRoom(match.ID, entry.ConnID)
	}

	info1 := c.participantInfo(p1)
	info2 := c.participantInfo(p2)

	// Каждый игрок видит себя как player, а соперника как opponent
	c.emitMatchFound(p1.ConnID, match, info1, info2)
	c.emitMatchFound(p2.ConnID, match, info2, info1)

	log.Printf("[MatchCreator] Матч %s создан: %s vs %s, тема '%s', вопросов %d",
		match.ID, p1.PlayerID(), p2.PlayerID(), subject, len(questions))

	if err := c.engine.StartNextQuestion(match.ID); err != nil {
		return nil, err
	}
	return match, nil
}

// pickQuestions выбирает вопросы матча: запрошенная тема с откатом на
// джокер, выборка со случайным смещением, чтобы та же тема не давала
// раз за разом одно подмножество
func (c *MatchCreator) pickQuestions(subject string) (string, []entity.Question, error) {
	if subject == "" {
		subject = entity.SubjectAny
	}

	count, err := c.deps.QuestionRepo.CountBySubject(subject)
	if err != nil {
		return "", nil, fmt.Errorf("failed to count questions for subject %s: %w", subject, err)
	}
	if count == 0 && subject != entity.SubjectAny {
		log.Printf("[MatchCreator] WARNING: по теме '%s' нет вопросов, матч создаётся по всем темам", subject)
		subject = entity.SubjectAny
		count, err = c.deps.QuestionRepo.CountBySubject(subject)
		if err != nil {
			return "", nil, fmt.Errorf("failed to count questions: %w", err)
		}
	}
	if count == 0 {
		return "", nil, fmt.Errorf("no questions available: %w", apperrors.ErrUnavailable)
	}

	limit := c.config.QuestionsPerMatch
	skip := 0
	if int(count) > limit {
		skip = rand.Intn(int(count) - limit + 1)
	} else {
		limit = int(count)
	}

	questions, err := c.deps.QuestionRepo.GetBySubjectRange(subject, skip, limit)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load questions for subject %s: %w", subject, err)
	}
	if len(questions) == 0 {
		return "", nil, fmt.Errorf("no questions loaded: %w", apperrors.ErrUnavailable)
	}

	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	return subject, questions, nil
}

// participantInfo собирает снимок отображаемых данных участника:
// для реальных пользователей из хранилища, для гостей из заявки
func (c *MatchCreator) participantInfo(entry *entity.QueueEntry) entity.PlayerInfo {
	if entry.UserID != 0 {
		if user, err := c.deps.UserRepo.GetByID(entry.UserID); err == nil {
			return entity.PlayerInfo{
				PlayerID: entry.PlayerID(),
				Username: user.Username,
				Avatar:   user.Avatar,
				Rating:   user.Rating,
				Tier:     user.Tier,
			}
		}
		log.Printf("[MatchCreator] WARNING: не удалось загрузить пользователя %d, используется снимок из заявки", entry.UserID)
	}
	return entity.PlayerInfo{
		PlayerID: entry.PlayerID(),
		Username: entry.Username,
		Guest:    entry.UserID == 0,
	}
}

func (c *MatchCreator) emitMatchFound(connID string, match *entity.Match, self, opponent entity.PlayerInfo) {
	err := c.deps.Broadcaster.EmitToConn(connID, EventMatchFound, &MatchFoundEvent{
		MatchID:        match.ID,
		Subject:        match.Subject,
		QuestionsTotal: len(match.QuestionIDs),
		Player:         self,
		Opponent:       opponent,
	})
	if err != nil {
		log.Printf("[MatchCreator] WARNING: ошибка отправки match_found соединению %s: %v", connID, err)
	}
}
