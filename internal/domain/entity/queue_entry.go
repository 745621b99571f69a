package entity

import "fmt"

// QueueEntry - заявка игрока в очереди подбора.
// Создаётся при запросе матча, удаляется при спаривании, явной
// отмене или разрыве соединения.
type QueueEntry struct {
	ConnID   string `json:"conn_id"`
	UserID   uint   `json:"user_id,omitempty"`
	GuestID  string `json:"guest_id,omitempty"`
	Username string `json:"username"`
	Subject  string `json:"subject"`
}

// PlayerID возвращает каноническую идентичность заявителя
func (e *QueueEntry) PlayerID() string {
	if e.UserID != 0 {
		return fmt.Sprintf("u:%d", e.UserID)
	}
	return "g:" + e.GuestID
}

// SameIdentity проверяет, принадлежат ли две заявки одному игроку
// или одному физическому соединению
func (e *QueueEntry) SameIdentity(other *QueueEntry) bool {
	if other == nil {
		return false
	}
	if e.ConnID != "" && e.ConnID == other.ConnID {
		return true
	}
	if e.UserID != 0 && e.UserID == other.UserID {
		return true
	}
	if e.GuestID != "" && e.GuestID == other.GuestID {
		return true
	}
	return false
}

// MatchesIdentity проверяет, относится ли заявка к указанной
// идентичности (по connID, userID или guestID)
func (e *QueueEntry) MatchesIdentity(connID string, userID uint, guestID string) bool {
	if connID != "" && e.ConnID == connID {
		return true
	}
	if userID != 0 && e.UserID == userID {
		return true
	}
	if guestID != "" && e.GuestID == guestID {
		return true
	}
	return false
}
