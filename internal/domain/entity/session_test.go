package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *MatchSession {
	return NewMatchSession("m-1", []string{"u:1", "g:abc"}, []SessionQuestion{
		{QuestionID: 101, CorrectOption: 2},
		{QuestionID: 102, CorrectOption: 0},
	}, "history")
}

func TestNewMatchSession_InitialState(t *testing.T) {
	sess := newTestSession()

	assert.Equal(t, -1, sess.CurrentIndex)
	assert.Equal(t, map[string]int{"u:1": 0, "g:abc": 0}, sess.Scores)
	assert.Empty(t, sess.Frozen)
	assert.Empty(t, sess.Participants)
	assert.Equal(t, 1, sess.LastQuestionIndex())
}

func TestMatchSession_FreezeLifecycle(t *testing.T) {
	sess := newTestSession()
	now := time.Now().UnixMilli()

	// Активная заморозка видна, протухшая лениво вычищается
	sess.Frozen["u:1"] = now + 5000
	sess.Frozen["g:abc"] = now - 1

	assert.True(t, sess.IsFrozen("u:1", now))
	assert.False(t, sess.IsFrozen("g:abc", now))
	_, stale := sess.Frozen["g:abc"]
	assert.False(t, stale, "протухшая запись должна быть удалена при чтении")
}

func TestMatchSession_AllFrozen(t *testing.T) {
	sess := newTestSession()
	now := time.Now().UnixMilli()

	assert.False(t, sess.AllFrozen(now))

	sess.Frozen["u:1"] = now + 5000
	assert.False(t, sess.AllFrozen(now))

	sess.Frozen["g:abc"] = now + 5000
	assert.True(t, sess.AllFrozen(now))

	// Протухание одной заморозки снимает условие
	sess.Frozen["u:1"] = now - 1
	assert.False(t, sess.AllFrozen(now))
}

func TestMatchSession_AddParticipant_Dedupes(t *testing.T) {
	sess := newTestSession()

	assert.True(t, sess.AddParticipant("conn-1"))
	assert.False(t, sess.AddParticipant("conn-1"))
	assert.True(t, sess.AddParticipant("conn-2"))
	assert.Equal(t, []string{"conn-1", "conn-2"}, sess.Participants)
}

func TestMatchSession_OpponentAndMembership(t *testing.T) {
	sess := newTestSession()

	assert.Equal(t, "g:abc", sess.Opponent("u:1"))
	assert.Equal(t, "u:1", sess.Opponent("g:abc"))
	assert.True(t, sess.HasPlayer("u:1"))
	assert.False(t, sess.HasPlayer("u:99"))
}

func TestMatchSession_Clone_Independent(t *testing.T) {
	// Arrange
	original := newTestSession()
	original.CurrentIndex = 0
	original.Scores["u:1"] = 1
	original.Frozen["g:abc"] = time.Now().Add(5 * time.Second).UnixMilli()
	original.Activity[0] = true
	original.Usernames["u:1"] = "alice"
	original.AddParticipant("conn-1")

	// Act
	clone := original.Clone()
	clone.Scores["u:1"] = 99
	clone.Frozen["u:1"] = 1
	clone.Activity[1] = true
	clone.Usernames["u:1"] = "mallory"
	clone.AddParticipant("conn-2")
	clone.Questions[0].CorrectOption = 0

	// Assert: мутации копии не видны оригиналу
	assert.Equal(t, 1, original.Scores["u:1"])
	assert.NotContains(t, original.Frozen, "u:1")
	assert.False(t, original.Activity[1])
	assert.Equal(t, "alice", original.Usernames["u:1"])
	require.Len(t, original.Participants, 1)
	assert.Equal(t, 2, original.Questions[0].CorrectOption)
}
