package handler

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/yourusername/duel-api/internal/service"
	"github.com/yourusername/duel-api/internal/websocket"
	"github.com/yourusername/duel-api/pkg/auth"
)

// WSHandler обрабатывает входящие websocket-подключения: аутентификация
// (JWT или сгенерированная гостевая идентичность), апгрейд соединения
// и запуск насосов клиента
type WSHandler struct {
	hub         *websocket.Hub
	wsManager   *websocket.Manager
	duelService *service.DuelService
	jwtService  *auth.JWTService
	upgrader    gorilla.Upgrader
}

// NewWSHandler создает WSHandler
func NewWSHandler(hub *websocket.Hub, wsManager *websocket.Manager,
	duelService *service.DuelService, jwtService *auth.JWTService) *WSHandler {
	return &WSHandler{
		hub:         hub,
		wsManager:   wsManager,
		duelService: duelService,
		jwtService:  jwtService,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Браузерные клиенты ходят с разных origin; доступ к игровым
			// операциям всё равно ограничен идентичностью соединения
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection обрабатывает GET /ws
func (h *WSHandler) HandleConnection(c *gin.Context) {
	playerID, userID, username, err := h.resolveIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "невалидный токен"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Ошибка апгрейда соединения: %v", err)
		return
	}

	client := websocket.NewClient(conn, h.hub, playerID, userID, username,
		h.wsManager.HandleMessage,
		h.duelService.HandleDisconnect,
	)

	h.duelService.HandleConnect(client)
	client.Run()
}

// resolveIdentity определяет идентичность подключающегося: владелец
// валидного JWT становится "u:<id>", остальные получают гостевую
// идентичность "g:<uuid>" (клиент может передать свою через guest_id,
// чтобы пережить переподключение)
func (h *WSHandler) resolveIdentity(c *gin.Context) (playerID string, userID uint, username string, err error) {
	token := c.Query("token")
	if token == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}

	if token != "" {
		claims, parseErr := h.jwtService.ParseToken(token)
		if parseErr != nil {
			return "", 0, "", parseErr
		}
		return fmt.Sprintf("u:%d", claims.UserID), claims.UserID, claims.Username, nil
	}

	guestID := c.Query("guest_id")
	if _, parseErr := uuid.Parse(guestID); parseErr != nil {
		guestID = uuid.New().String()
	}
	username = strings.TrimSpace(c.Query("username"))
	if username == "" {
		username = "Гость-" + guestID[:8]
	}
	return "g:" + guestID, 0, username, nil
}
