package service

import (
	"fmt"
	"log"

	"github.com/yourusername/duel-api/internal/domain/entity"
	"github.com/yourusername/duel-api/internal/domain/repository"
	"github.com/yourusername/duel-api/internal/service/duelmanager"
)

// Базовая дельта рейтинга и её границы
const (
	ratingBaseDelta = 25
	ratingTierStep  = 5
	ratingMinDelta  = 10
	ratingMaxDelta  = 40
)

// Пороги рейтинга для уровней
var tierThresholds = []struct {
	tier      int
	minRating int
}{
	{entity.TierDiamond, 1600},
	{entity.TierGold, 1300},
	{entity.TierSilver, 1100},
	{entity.TierBronze, 0},
}

// RatingService - рейтинговый движок: дельта за победу, синхронизация
// уровня и чтение таблицы лидеров. Для движка дуэлей это чёрный ящик
// за интерфейсом duelmanager.RatingEngine.
type RatingService struct {
	userRepo  repository.UserRepository
	cacheRepo repository.CacheRepository
}

// NewRatingService создает RatingService
func NewRatingService(userRepo repository.UserRepository, cacheRepo repository.CacheRepository) *RatingService {
	return &RatingService{
		userRepo:  userRepo,
		cacheRepo: cacheRepo,
	}
}

// ComputeDelta возвращает изменение рейтинга за победу. Победа над
// соперником более высокого уровня ценится дороже, над более низким -
// дешевле; дельта ограничена с обеих сторон.
func (s *RatingService) ComputeDelta(winnerTier, loserTier int) int {
	delta := ratingBaseDelta + ratingTierStep*(loserTier-winnerTier)
	if delta < ratingMinDelta {
		delta = ratingMinDelta
	}
	if delta > ratingMaxDelta {
		delta = ratingMaxDelta
	}
	return delta
}

// SyncTier приводит уровень пользователя в соответствие рейтингу
// и возвращает актуальное значение
func (s *RatingService) SyncTier(user *entity.User) int {
	for _, t := range tierThresholds {
		if user.Rating >= t.minRating {
			if user.Tier != t.tier {
				log.Printf("[RatingService] Пользователь %d переходит с уровня %d на %d (рейтинг %d)",
					user.ID, user.Tier, t.tier, user.Rating)
			}
			user.Tier = t.tier
			return t.tier
		}
	}
	user.Tier = entity.TierBronze
	return entity.TierBronze
}

// LeaderboardEntry - строка таблицы лидеров
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Tier     int    `json:"tier"`
	Wins     int    `json:"wins"`
}

// Leaderboard возвращает топ игроков по рейтингу из сортированного
// множества, дополняя строки данными пользователей
func (s *RatingService) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	top, err := s.cacheRepo.ZRevRangeWithScores(duelmanager.KeyLeaderboard, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	ids := make([]uint, 0, len(top))
	for _, m := range top {
		if userID, ok := entity.UserIDFromPlayerID(m.Member); ok {
			ids = append(ids, userID)
		}
	}
	users, err := s.userRepo.GetByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard users: %w", err)
	}
	byID := make(map[uint]*entity.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	entries := make([]LeaderboardEntry, 0, len(top))
	for i, m := range top {
		entry := LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: m.Member,
			Rating:   int(m.Score),
		}
		if userID, ok := entity.UserIDFromPlayerID(m.Member); ok {
			if user, found := byID[userID]; found {
				entry.Username = user.Username
				entry.Tier = user.Tier
				entry.Wins = user.Wins
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
