package websocket

import (
	"log"
	"sync"
)

// Hub управляет набором активных соединений на этом инстансе и их
// членством в комнатах матчей. Комната существует только локально:
// каждый инстанс добавляет в нее свои соединения, а кросс-инстансная
// доставка идет через ClusterHub.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client            // connID -> клиент
	rooms      map[string]map[string]*Client // roomID -> connID -> клиент
	instanceID string
}

// NewHub создает новый Hub для указанного инстанса
func NewHub(instanceID string) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		instanceID: instanceID,
	}
}

// InstanceID возвращает идентификатор инстанса, которым помечаются
// сообщения кластера
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Register добавляет клиента в реестр соединений
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[client.ConnID]; ok && old != client {
		// Не должно происходить: connID генерируется uuid-ом
		log.Printf("Hub: WARNING: повторная регистрация connID=%s, старое соединение закрывается", client.ConnID)
		old.closeSend()
	}
	h.clients[client.ConnID] = client
}

// Unregister удаляет клиента из реестра и из всех его комнат
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.ConnID]; !ok || current != client {
		return
	}
	delete(h.clients, client.ConnID)

	for roomID, members := range h.rooms {
		if _, ok := members[client.ConnID]; ok {
			delete(members, client.ConnID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	client.closeSend()
}

// JoinRoom добавляет локальное соединение в комнату
func (h *Hub) JoinRoom(roomID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[connID] = client
	return true
}

// LeaveRoom удаляет соединение из комнаты
func (h *Hub) LeaveRoom(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// SendToConn отправляет сообщение локальному соединению.
// Возвращает false, если такого соединения на этом инстансе нет.
func (h *Hub) SendToConn(connID string, message []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.enqueue(message)
	return true
}

// BroadcastToRoom рассылает сообщение всем локальным участникам комнаты
func (h *Hub) BroadcastToRoom(roomID string, message []byte) int {
	h.mu.RLock()
	members := h.rooms[roomID]
	targets := make([]*Client, 0, len(members))
	for _, client := range members {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.enqueue(message)
	}
	return len(targets)
}

// HasConn проверяет, обслуживается ли соединение этим инстансом
func (h *Hub) HasConn(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

// ClientCount возвращает число локальных соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
