package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/duel-api/internal/domain/entity"
	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"
)

func sampleSession(matchID string) *entity.MatchSession {
	sess := entity.NewMatchSession(matchID, []string{"u:1", "u:2"}, []entity.SessionQuestion{
		{QuestionID: 101, CorrectOption: 2},
		{QuestionID: 102, CorrectOption: 0},
	}, "history")
	sess.CurrentIndex = 1
	sess.Scores["u:1"] = 1
	sess.Frozen["u:2"] = time.Now().Add(5 * time.Second).UnixMilli()
	sess.Activity[0] = true
	sess.Usernames["u:1"] = "alice"
	sess.AddParticipant("conn-1")
	return sess
}

// ============================================================================
// Тесты хранилища сессий
// ============================================================================

func TestSessionRepo_SaveGet_Roundtrip(t *testing.T) {
	// Arrange
	client, _ := newTestRedis(t)
	repo, err := NewSessionRepo(client, time.Hour)
	require.NoError(t, err)

	original := sampleSession("m-1")

	// Act
	require.NoError(t, repo.Save(original))
	loaded, err := repo.Get("m-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, original.CurrentIndex, loaded.CurrentIndex)
	assert.Equal(t, original.Scores, loaded.Scores)
	assert.Equal(t, original.Frozen, loaded.Frozen)
	assert.Equal(t, original.Activity, loaded.Activity)
	assert.Equal(t, original.Usernames, loaded.Usernames)
	assert.Equal(t, original.Participants, loaded.Participants)
	assert.Equal(t, original.Questions, loaded.Questions)
}

func TestSessionRepo_Get_Missing(t *testing.T) {
	client, _ := newTestRedis(t)
	repo, err := NewSessionRepo(client, time.Hour)
	require.NoError(t, err)

	_, err = repo.Get("m-ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionRepo_Delete(t *testing.T) {
	client, _ := newTestRedis(t)
	repo, err := NewSessionRepo(client, time.Hour)
	require.NoError(t, err)

	require.NoError(t, repo.Save(sampleSession("m-1")))
	require.NoError(t, repo.Delete("m-1"))

	_, err = repo.Get("m-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionRepo_ActiveMatchPointers(t *testing.T) {
	// Arrange
	client, _ := newTestRedis(t)
	repo, err := NewSessionRepo(client, time.Hour)
	require.NoError(t, err)

	// Act / Assert
	require.NoError(t, repo.SetActiveMatch("u:1", "m-1"))

	matchID, err := repo.GetActiveMatch("u:1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", matchID)

	require.NoError(t, repo.ClearActiveMatch("u:1"))
	_, err = repo.GetActiveMatch("u:1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionRepo_LocalFallback_WhenRedisDown(t *testing.T) {
	// Arrange: сессия сохранена при живом Redis
	client, mr := newTestRedis(t)
	repo, err := NewSessionRepo(client, time.Hour)
	require.NoError(t, err)

	original := sampleSession("m-1")
	require.NoError(t, repo.Save(original))
	require.NoError(t, repo.SetActiveMatch("u:1", "m-1"))

	// Act: Redis падает
	mr.Close()

	// Assert: чтения деградируют на локальную копию процесса
	loaded, err := repo.Get("m-1")
	require.NoError(t, err)
	assert.Equal(t, original.CurrentIndex, loaded.CurrentIndex)
	assert.Equal(t, original.Scores, loaded.Scores)

	matchID, err := repo.GetActiveMatch("u:1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", matchID)

	// Неизвестный матч при недоступном Redis - ErrUnavailable, не ErrNotFound
	_, err = repo.Get("m-unknown")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)

	// Save при недоступном Redis не падает: локальная копия обновляется
	original.Scores["u:1"] = 2
	require.NoError(t, repo.Save(original))
	updated, err := repo.Get("m-1")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Scores["u:1"])
}

func TestSessionRepo_Get_ReturnsIndependentCopyFromFallback(t *testing.T) {
	// Arrange
	client, mr := newTestRedis(t)
	repo, err := NewSessionRepo(client, time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Save(sampleSession("m-1")))
	mr.Close()

	// Act: мутация одной копии из fallback
	first, err := repo.Get("m-1")
	require.NoError(t, err)
	first.Scores["u:1"] = 99

	// Assert: вторая копия мутации не видит
	second, err := repo.Get("m-1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Scores["u:1"])
}
