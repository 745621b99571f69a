package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Event представляет структуру всех сообщений, проходящих через websocket
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MessageHandler обрабатывает одну команду клиента
type MessageHandler func(client *Client, data json.RawMessage)

// Manager маршрутизирует входящие команды к обработчикам и предоставляет
// движку дуэлей отправку событий в комнаты и конкретным соединениям,
// прозрачно доставляя их через кластер при необходимости.
type Manager struct {
	hub     *Hub
	cluster *ClusterHub

	handlersMu sync.RWMutex
	handlers   map[string]MessageHandler
}

// NewManager создает новый Manager поверх хаба и кластерного моста
func NewManager(hub *Hub, cluster *ClusterHub) *Manager {
	return &Manager{
		hub:      hub,
		cluster:  cluster,
		handlers: make(map[string]MessageHandler),
	}
}

// RegisterHandler регистрирует обработчик для типа сообщения
func (m *Manager) RegisterHandler(messageType string, handler MessageHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[messageType] = handler
}

// HandleMessage разбирает входящее сообщение и вызывает обработчик его типа
func (m *Manager) HandleMessage(client *Client, raw []byte) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("Manager: ошибка разбора сообщения от connID=%s: %v", client.ConnID, err)
		m.SendErrorToClient(client, "INVALID_MESSAGE", "Некорректный формат сообщения")
		return
	}
	if envelope.Type == "" {
		m.SendErrorToClient(client, "INVALID_MESSAGE", "Сообщение без типа")
		return
	}

	m.handlersMu.RLock()
	handler, ok := m.handlers[envelope.Type]
	m.handlersMu.RUnlock()

	if !ok {
		log.Printf("Manager: неизвестный тип сообщения '%s' от connID=%s", envelope.Type, client.ConnID)
		m.SendErrorToClient(client, "UNKNOWN_MESSAGE_TYPE", fmt.Sprintf("Неизвестный тип сообщения: %s", envelope.Type))
		return
	}

	handler(client, envelope.Data)
}

// JoinRoom добавляет локальное соединение в комнату матча
func (m *Manager) JoinRoom(roomID, connID string) {
	if !m.hub.JoinRoom(roomID, connID) {
		log.Printf("Manager: WARNING: попытка добавить несуществующее соединение %s в комнату %s", connID, roomID)
	}
}

// LeaveRoom удаляет соединение из комнаты матча
func (m *Manager) LeaveRoom(roomID, connID string) {
	m.hub.LeaveRoom(roomID, connID)
}

// EmitToRoom отправляет событие всем участникам комнаты на всех инстансах
func (m *Manager) EmitToRoom(roomID string, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", eventType, err)
	}

	m.hub.BroadcastToRoom(roomID, payload)

	if m.cluster != nil {
		if err := m.cluster.BroadcastRoomToCluster(roomID, payload); err != nil {
			log.Printf("Manager: WARNING: ошибка кластерной рассылки в комнату %s: %v", roomID, err)
		}
	}
	return nil
}

// EmitToConn отправляет событие конкретному соединению, где бы оно ни жило
func (m *Manager) EmitToConn(connID string, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", eventType, err)
	}

	if m.hub.SendToConn(connID, payload) {
		return nil
	}

	// Соединение не на этом инстансе: пробуем доставить через кластер
	if m.cluster != nil {
		return m.cluster.SendToConnInCluster(connID, payload)
	}
	return nil
}

// SendErrorToClient отправляет клиенту структурированную ошибку
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	payload, err := json.Marshal(Event{
		Type: "server:error",
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	})
	if err != nil {
		return
	}
	client.enqueue(payload)
}
