package entity

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Уровни (tier) игрока. Конкретная формула перехода между уровнями
// принадлежит рейтинговому движку и здесь не дублируется.
const (
	TierBronze = iota
	TierSilver
	TierGold
	TierDiamond
)

// User представляет пользователя в системе
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email    string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password string `gorm:"size:100;not null" json:"-"`
	Avatar   string `gorm:"size:255;not null;default:''" json:"avatar"`

	// Рейтинговые поля, обновляются при завершении матча
	Rating int `gorm:"not null;default:1000;index:idx_users_leaderboard" json:"rating"`
	Tier   int `gorm:"not null;default:0" json:"tier"`
	Wins   int `gorm:"not null;default:0;index:idx_users_leaderboard" json:"wins"`
	Losses int `gorm:"not null;default:0" json:"losses"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// PlayerID возвращает каноническую строковую идентичность игрока
func (u *User) PlayerID() string {
	return fmt.Sprintf("u:%d", u.ID)
}

// BeforeSave хеширует пароль перед сохранением, только если он не является bcrypt-хешем
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) > 0 && !strings.HasPrefix(u.Password, "$2a$") &&
		!strings.HasPrefix(u.Password, "$2b$") && !strings.HasPrefix(u.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword проверяет, соответствует ли переданный пароль хешу
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// PlayerInfo - снимок отображаемых данных игрока, отправляемый клиентам
// и сохраняемый в записи завершённого матча
type PlayerInfo struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Rating   int    `json:"rating"`
	Tier     int    `json:"tier"`
	Guest    bool   `json:"guest,omitempty"`
}

// IsGuestID возвращает true для синтетической гостевой идентичности
func IsGuestID(playerID string) bool {
	return strings.HasPrefix(playerID, "g:")
}

// UserIDFromPlayerID извлекает числовой ID пользователя из канонической
// идентичности "u:<id>". Для гостей возвращает 0 и false.
func UserIDFromPlayerID(playerID string) (uint, bool) {
	if !strings.HasPrefix(playerID, "u:") {
		return 0, false
	}
	var id uint
	if _, err := fmt.Sscanf(playerID, "u:%d", &id); err != nil {
		return 0, false
	}
	return id, true
}
