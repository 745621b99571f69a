package service

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"

	"github.com/yourusername/duel-api/internal/domain/entity"
	"github.com/yourusername/duel-api/internal/service/duelmanager"
	"github.com/yourusername/duel-api/internal/websocket"
)

// Команды клиента
const (
	CmdFind        = "duel:find"
	CmdCancel      = "duel:cancel"
	CmdAnswer      = "duel:answer"
	CmdLeave       = "duel:leave"
	CmdRejoin      = "duel:rejoin"
	CmdFreezeState = "duel:freeze_state"
)

// DuelService связывает транспортный слой с движком дуэлей: жизненный
// цикл соединений, маршрутизация команд клиента и форфейты при разрывах
type DuelService struct {
	deps       *duelmanager.Dependencies
	matchmaker *duelmanager.Matchmaker
	engine     *duelmanager.Engine
	wsManager  *websocket.Manager
}

// NewDuelService создает DuelService
func NewDuelService(deps *duelmanager.Dependencies, matchmaker *duelmanager.Matchmaker,
	engine *duelmanager.Engine, wsManager *websocket.Manager) *DuelService {
	return &DuelService{
		deps:       deps,
		matchmaker: matchmaker,
		engine:     engine,
		wsManager:  wsManager,
	}
}

// RegisterHandlers регистрирует обработчики команд клиента
func (s *DuelService) RegisterHandlers() {
	s.wsManager.RegisterHandler(CmdFind, s.handleFind)
	s.wsManager.RegisterHandler(CmdCancel, s.handleCancel)
	s.wsManager.RegisterHandler(CmdAnswer, s.handleAnswer)
	s.wsManager.RegisterHandler(CmdLeave, s.handleLeave)
	s.wsManager.RegisterHandler(CmdRejoin, s.handleRejoin)
	s.wsManager.RegisterHandler(CmdFreezeState, s.handleFreezeState)
}

// HandleConnect привязывает новое соединение к идентичности игрока
// в общем справочнике соединений
func (s *DuelService) HandleConnect(client *websocket.Client) {
	previous, err := s.deps.Directory.ClaimSingle(client.ConnID, client.PlayerID)
	if err != nil {
		log.Printf("[DuelService] WARNING: ошибка привязки соединения %s: %v", client.ConnID, err)
		return
	}
	if len(previous) > 0 {
		log.Printf("[DuelService] Игрок %s подключился повторно (connID=%s, прежних соединений %d)",
			client.PlayerID, client.ConnID, len(previous))
	} else {
		log.Printf("[DuelService] Игрок %s подключился (connID=%s)", client.PlayerID, client.ConnID)
	}
}

// HandleDisconnect чистит привязки разорванного соединения, снимает
// заявки подбора и форфейтит активный матч, если это было последнее
// соединение игрока
func (s *DuelService) HandleDisconnect(client *websocket.Client) {
	if err := s.deps.Directory.Unbind(client.ConnID); err != nil {
		log.Printf("[DuelService] WARNING: ошибка отвязки соединения %s: %v", client.ConnID, err)
	}
	if err := s.matchmaker.RemoveAll(client.ConnID, client.UserID, s.guestID(client)); err != nil {
		log.Printf("[DuelService] WARNING: ошибка чистки очередей для %s: %v", client.PlayerID, err)
	}

	// У игрока могут оставаться другие соединения (вторая вкладка) -
	// форфейтим только когда не осталось ни одного
	remaining, err := s.deps.Directory.Connections(client.PlayerID)
	if err != nil {
		log.Printf("[DuelService] WARNING: ошибка чтения соединений игрока %s: %v", client.PlayerID, err)
	}
	if len(remaining) > 0 {
		log.Printf("[DuelService] Игрок %s отключился (connID=%s), остаются соединения: %d",
			client.PlayerID, client.ConnID, len(remaining))
		return
	}

	matchID, err := s.deps.SessionRepo.GetActiveMatch(client.PlayerID)
	if err != nil || matchID == "" {
		return
	}
	log.Printf("[DuelService] Игрок %s отключился во время матча %s, форфейт", client.PlayerID, matchID)
	if err := s.engine.Forfeit(matchID, client.PlayerID); err != nil {
		log.Printf("[DuelService] CRITICAL: ошибка форфейта матча %s: %v", matchID, err)
	}
}

// handleFind ставит игрока в очередь подбора
func (s *DuelService) handleFind(client *websocket.Client, data json.RawMessage) {
	var req struct {
		Subject string `json:"subject"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.wsManager.SendErrorToClient(client, "INVALID_PAYLOAD", "Некорректный запрос подбора")
			return
		}
	}

	entry := &entity.QueueEntry{
		ConnID:   client.ConnID,
		UserID:   client.UserID,
		GuestID:  s.guestID(client),
		Username: client.Username,
		Subject:  strings.ToLower(strings.TrimSpace(req.Subject)),
	}
	if _, err := s.matchmaker.Enqueue(entry); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			s.wsManager.SendErrorToClient(client, "MATCHMAKING_REJECTED",
				"Запрос подбора отклонён: повторный запрос или активный матч")
		case errors.Is(err, apperrors.ErrUnavailable):
			s.wsManager.SendErrorToClient(client, "NO_QUESTIONS", "Нет доступных вопросов для матча")
		default:
			log.Printf("[DuelService] Ошибка подбора для %s: %v", client.PlayerID, err)
			s.wsManager.SendErrorToClient(client, "MATCHMAKING_FAILED", "Не удалось обработать запрос подбора")
		}
	}
}

// handleCancel снимает заявки игрока со всех очередей
func (s *DuelService) handleCancel(client *websocket.Client, data json.RawMessage) {
	if err := s.matchmaker.RemoveAll(client.ConnID, client.UserID, s.guestID(client)); err != nil {
		log.Printf("[DuelService] Ошибка отмены подбора для %s: %v", client.PlayerID, err)
		s.wsManager.SendErrorToClient(client, "CANCEL_FAILED", "Не удалось отменить подбор")
	}
}

// handleAnswer передает ответ игрока движку
func (s *DuelService) handleAnswer(client *websocket.Client, data json.RawMessage) {
	var req struct {
		MatchID       string `json:"match_id"`
		QuestionIndex int    `json:"question_index"`
		AnswerIndex   int    `json:"answer_index"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		s.wsManager.SendErrorToClient(client, "INVALID_PAYLOAD", "Некорректный ответ")
		return
	}
	matchID := req.MatchID
	if matchID == "" {
		matchID = s.activeMatch(client)
	}
	if matchID == "" {
		s.wsManager.SendErrorToClient(client, "NO_ACTIVE_MATCH", "Нет активного матча")
		return
	}

	if err := s.engine.SubmitAnswer(matchID, req.QuestionIndex, req.AnswerIndex, client.PlayerID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			s.wsManager.SendErrorToClient(client, "FROZEN", "Вы заморожены и пока не можете отвечать")
		case errors.Is(err, apperrors.ErrUnauthorized):
			s.wsManager.SendErrorToClient(client, "NOT_IN_MATCH", "Вы не участник этого матча")
		case errors.Is(err, apperrors.ErrNotFound):
			s.wsManager.SendErrorToClient(client, "MATCH_NOT_FOUND", "Матч не найден")
		default:
			log.Printf("[DuelService] Ошибка обработки ответа %s в матче %s: %v", client.PlayerID, matchID, err)
			s.wsManager.SendErrorToClient(client, "ANSWER_FAILED", "Не удалось обработать ответ")
		}
	}
}

// handleLeave - добровольный выход из матча, немедленный форфейт
func (s *DuelService) handleLeave(client *websocket.Client, data json.RawMessage) {
	var req struct {
		MatchID string `json:"match_id"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.wsManager.SendErrorToClient(client, "INVALID_PAYLOAD", "Некорректный запрос выхода")
			return
		}
	}
	matchID := req.MatchID
	if matchID == "" {
		matchID = s.activeMatch(client)
	}
	if matchID == "" {
		s.wsManager.SendErrorToClient(client, "NO_ACTIVE_MATCH", "Нет активного матча")
		return
	}

	if err := s.engine.Forfeit(matchID, client.PlayerID); err != nil {
		log.Printf("[DuelService] Ошибка выхода %s из матча %s: %v", client.PlayerID, matchID, err)
		s.wsManager.SendErrorToClient(client, "LEAVE_FAILED", "Не удалось покинуть матч")
		return
	}
	s.wsManager.LeaveRoom(matchID, client.ConnID)
}

// handleRejoin возвращает переподключившегося клиента в комнату его
// активного матча и синхронизирует состояние текущего вопроса.
// Возврат в комнату возможен, пока форфейт по разрыву не сработал.
func (s *DuelService) handleRejoin(client *websocket.Client, data json.RawMessage) {
	matchID := s.activeMatch(client)
	if matchID == "" {
		s.wsManager.SendErrorToClient(client, "NO_ACTIVE_MATCH", "Нет активного матча")
		return
	}

	sess, err := s.deps.SessionRepo.Get(matchID)
	if err != nil {
		s.wsManager.SendErrorToClient(client, "MATCH_NOT_FOUND", "Матч не найден")
		return
	}
	if sess.AddParticipant(client.ConnID) {
		if err := s.deps.SessionRepo.Save(sess); err != nil {
			log.Printf("[DuelService] WARNING: ошибка сохранения сессии матча %s при rejoin: %v", matchID, err)
		}
	}
	s.wsManager.JoinRoom(matchID, client.ConnID)
	log.Printf("[DuelService] Игрок %s вернулся в матч %s (connID=%s)", client.PlayerID, matchID, client.ConnID)

	s.sendFreezeState(client, matchID)
}

// handleFreezeState - синхронизация состояния по запросу клиента
func (s *DuelService) handleFreezeState(client *websocket.Client, data json.RawMessage) {
	var req struct {
		MatchID string `json:"match_id"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.wsManager.SendErrorToClient(client, "INVALID_PAYLOAD", "Некорректный запрос состояния")
			return
		}
	}
	matchID := req.MatchID
	if matchID == "" {
		matchID = s.activeMatch(client)
	}
	if matchID == "" {
		s.wsManager.SendErrorToClient(client, "NO_ACTIVE_MATCH", "Нет активного матча")
		return
	}
	s.sendFreezeState(client, matchID)
}

func (s *DuelService) sendFreezeState(client *websocket.Client, matchID string) {
	state, err := s.engine.FreezeState(matchID, client.PlayerID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUnauthorized):
			s.wsManager.SendErrorToClient(client, "NOT_IN_MATCH", "Вы не участник этого матча")
		case errors.Is(err, apperrors.ErrNotFound):
			s.wsManager.SendErrorToClient(client, "MATCH_NOT_FOUND", "Матч не найден")
		default:
			log.Printf("[DuelService] Ошибка синхронизации состояния матча %s: %v", matchID, err)
			s.wsManager.SendErrorToClient(client, "SYNC_FAILED", "Не удалось получить состояние матча")
		}
		return
	}
	if err := s.wsManager.EmitToConn(client.ConnID, duelmanager.EventFreezeState, state); err != nil {
		log.Printf("[DuelService] WARNING: ошибка отправки состояния соединению %s: %v", client.ConnID, err)
	}
}

// activeMatch возвращает ID активного матча игрока или пустую строку
func (s *DuelService) activeMatch(client *websocket.Client) string {
	matchID, err := s.deps.SessionRepo.GetActiveMatch(client.PlayerID)
	if err != nil {
		return ""
	}
	return matchID
}

// guestID извлекает гостевой идентификатор из канонической идентичности
func (s *DuelService) guestID(client *websocket.Client) string {
	if !client.IsGuest() {
		return ""
	}
	return strings.TrimPrefix(client.PlayerID, "g:")
}
