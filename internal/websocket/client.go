package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания pong-ответа от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping-сообщений (должен быть меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 4096

	// Размер буфера исходящих сообщений
	sendBufferSize = 64
)

// Client представляет одно websocket-соединение игрока
type Client struct {
	// ConnID — уникальный идентификатор соединения (транспортная идентичность)
	ConnID string

	// PlayerID — каноническая идентичность игрока ("u:<id>" или "g:<uuid>")
	PlayerID string

	// UserID — числовой ID для зарегистрированных пользователей, 0 для гостей
	UserID uint

	// Username — отображаемое имя
	Username string

	conn *websocket.Conn
	hub  *Hub

	send      chan []byte
	closeOnce sync.Once

	// onMessage вызывается для каждого входящего текстового сообщения
	onMessage func(*Client, []byte)

	// onDisconnect вызывается один раз после закрытия соединения
	onDisconnect func(*Client)
}

// NewClient создает клиента для принятого websocket-соединения
func NewClient(conn *websocket.Conn, hub *Hub, playerID string, userID uint, username string,
	onMessage func(*Client, []byte), onDisconnect func(*Client)) *Client {
	return &Client{
		ConnID:       uuid.New().String(),
		PlayerID:     playerID,
		UserID:       userID,
		Username:     username,
		conn:         conn,
		hub:          hub,
		send:         make(chan []byte, sendBufferSize),
		onMessage:    onMessage,
		onDisconnect: onDisconnect,
	}
}

// IsGuest сообщает, является ли соединение гостевым
func (c *Client) IsGuest() bool {
	return c.UserID == 0
}

// Run регистрирует клиента в хабе и запускает насосы чтения и записи.
// Блокируется до завершения readPump (то есть до разрыва соединения).
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.readPump()
}

// enqueue ставит сообщение в очередь отправки. При переполненном буфере
// сообщение отбрасывается: медленный клиент не должен блокировать рассылку.
func (c *Client) enqueue(message []byte) {
	defer func() {
		// enqueue после closeSend безопасно превращается в no-op
		_ = recover()
	}()
	select {
	case c.send <- message:
	default:
		log.Printf("Client: WARNING: буфер отправки переполнен, сообщение для connID=%s отброшено", c.ConnID)
	}
}

// closeSend закрывает канал отправки ровно один раз
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump читает входящие сообщения и передает их обработчику
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		if c.onDisconnect != nil {
			c.onDisconnect(c)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Client: неожиданное закрытие соединения connID=%s: %v", c.ConnID, err)
			}
			break
		}
		if c.onMessage != nil {
			c.onMessage(c, message)
		}
	}
}

// writePump пишет исходящие сообщения и поддерживает соединение ping-ами
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Хаб закрыл канал отправки
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
