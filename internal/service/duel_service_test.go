package service

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"

	"github.com/yourusername/duel-api/internal/domain/entity"
	"github.com/yourusername/duel-api/internal/service/duelmanager"
	"github.com/yourusername/duel-api/internal/websocket"
)

// ============================================================================
// Моки и фейки
// ============================================================================

// MockMatchRepo реализует repository.MatchRepository
type MockMatchRepo struct {
	mock.Mock
}

func (m *MockMatchRepo) Create(match *entity.Match) error {
	args := m.Called(match)
	return args.Error(0)
}

func (m *MockMatchRepo) GetByID(id string) (*entity.Match, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Match), args.Error(1)
}

func (m *MockMatchRepo) Finish(id string, result entity.MatchResultData) error {
	args := m.Called(id, result)
	return args.Error(0)
}

// fakeSessionStore реализует repository.SessionRepository в памяти
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*entity.MatchSession
	active   map[string]string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]*entity.MatchSession),
		active:   make(map[string]string),
	}
}

func (f *fakeSessionStore) Get(matchID string) (*entity.MatchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[matchID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return sess.Clone(), nil
}

func (f *fakeSessionStore) Save(session *entity.MatchSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.MatchID] = session.Clone()
	return nil
}

func (f *fakeSessionStore) Delete(matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, matchID)
	return nil
}

func (f *fakeSessionStore) SetActiveMatch(playerID string, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[playerID] = matchID
	return nil
}

func (f *fakeSessionStore) GetActiveMatch(playerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[playerID], nil
}

func (f *fakeSessionStore) ClearActiveMatch(playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, playerID)
	return nil
}

// fakeQueueStore реализует repository.QueueRepository в памяти
type fakeQueueStore struct {
	mu     sync.Mutex
	queues map[string][]*entity.QueueEntry
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{queues: make(map[string][]*entity.QueueEntry)}
}

func (f *fakeQueueStore) Enqueue(subject string, entry *entity.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[subject] = append(f.queues[subject], entry)
	return nil
}

func (f *fakeQueueStore) Pop(subject string) (*entity.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.queues[subject]
	if len(queue) == 0 {
		return nil, apperrors.ErrNotFound
	}
	entry := queue[0]
	f.queues[subject] = queue[1:]
	return entry, nil
}

func (f *fakeQueueStore) PushFront(subject string, entry *entity.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[subject] = append([]*entity.QueueEntry{entry}, f.queues[subject]...)
	return nil
}

func (f *fakeQueueStore) RemoveIdentity(subject string, connID string, userID uint, guestID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.queues[subject][:0]
	removed := 0
	for _, e := range f.queues[subject] {
		if e.MatchesIdentity(connID, userID, guestID) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.queues[subject] = kept
	return removed, nil
}

func (f *fakeQueueStore) Subjects() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subjects := make([]string, 0, len(f.queues))
	for subject := range f.queues {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects, nil
}

func (f *fakeQueueStore) depth(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[subject])
}

// fakeJobStore реализует repository.JobRepository в памяти
type fakeJobStore struct {
	mu   sync.Mutex
	jobs []*entity.ScheduledJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{}
}

func (f *fakeJobStore) Schedule(job *entity.ScheduledJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobStore) Cancel(matchID string, questionIndex int, eventType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.jobs[:0]
	removed := 0
	for _, j := range f.jobs {
		if j.MatchID == matchID && j.QuestionIndex == questionIndex &&
			(eventType == "" || j.EventType == eventType) {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	f.jobs = kept
	return removed, nil
}

func (f *fakeJobStore) PollDue(nowMs int64, limit int) ([]entity.ScheduledJob, error) {
	return nil, nil
}

// fakeConnDirectory реализует repository.SocketDirectory в памяти
type fakeConnDirectory struct {
	mu     sync.Mutex
	byConn map[string]string
}

func newFakeConnDirectory() *fakeConnDirectory {
	return &fakeConnDirectory{byConn: make(map[string]string)}
}

func (f *fakeConnDirectory) Bind(connID string, playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byConn[connID] = playerID
	return nil
}

func (f *fakeConnDirectory) Resolve(connID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	playerID, ok := f.byConn[connID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return playerID, nil
}

func (f *fakeConnDirectory) Connections(playerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var conns []string
	for connID, owner := range f.byConn {
		if owner == playerID {
			conns = append(conns, connID)
		}
	}
	sort.Strings(conns)
	return conns, nil
}

func (f *fakeConnDirectory) ClaimSingle(connID string, playerID string) ([]string, error) {
	previous, _ := f.Connections(playerID)
	_ = f.Bind(connID, playerID)
	return previous, nil
}

func (f *fakeConnDirectory) Unbind(connID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byConn, connID)
	return nil
}

// fakeDuelBroadcaster реализует duelmanager.Broadcaster и запоминает
// отправленные события
type duelEvent struct {
	Room   string
	ConnID string
	Type   string
	Data   interface{}
}

type fakeDuelBroadcaster struct {
	mu     sync.Mutex
	events []duelEvent
}

func newFakeDuelBroadcaster() *fakeDuelBroadcaster {
	return &fakeDuelBroadcaster{}
}

func (f *fakeDuelBroadcaster) JoinRoom(roomID, connID string)  {}
func (f *fakeDuelBroadcaster) LeaveRoom(roomID, connID string) {}

func (f *fakeDuelBroadcaster) EmitToRoom(roomID string, eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, duelEvent{Room: roomID, Type: eventType, Data: data})
	return nil
}

func (f *fakeDuelBroadcaster) EmitToConn(connID string, eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, duelEvent{ConnID: connID, Type: eventType, Data: data})
	return nil
}

func (f *fakeDuelBroadcaster) all() []duelEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]duelEvent(nil), f.events...)
}

func (f *fakeDuelBroadcaster) roomEvents(roomID string, eventType string) []duelEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []duelEvent
	for _, e := range f.events {
		if e.Room == roomID && e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// ============================================================================
// Окружение
// ============================================================================

type duelServiceEnv struct {
	userRepo    *MockUserRepo
	matchRepo   *MockMatchRepo
	cache       *MockCacheRepo
	sessions    *fakeSessionStore
	queue       *fakeQueueStore
	jobs        *fakeJobStore
	directory   *fakeConnDirectory
	broadcaster *fakeDuelBroadcaster

	hub     *websocket.Hub
	manager *websocket.Manager
	svc     *DuelService
}

func newDuelServiceEnv() *duelServiceEnv {
	env := &duelServiceEnv{
		userRepo:    new(MockUserRepo),
		matchRepo:   new(MockMatchRepo),
		cache:       new(MockCacheRepo),
		sessions:    newFakeSessionStore(),
		queue:       newFakeQueueStore(),
		jobs:        newFakeJobStore(),
		directory:   newFakeConnDirectory(),
		broadcaster: newFakeDuelBroadcaster(),
	}

	cfg := &duelmanager.Config{
		QuestionTime:      10 * time.Second,
		SoftTimeout:       5 * time.Second,
		FreezeTime:        5 * time.Second,
		RevealDelay:       10 * time.Millisecond,
		QuestionsPerMatch: 3,
		QueueLock:         10 * time.Second,
	}
	deps := &duelmanager.Dependencies{
		UserRepo:    env.userRepo,
		MatchRepo:   env.matchRepo,
		SessionRepo: env.sessions,
		QueueRepo:   env.queue,
		JobRepo:     env.jobs,
		Directory:   env.directory,
		CacheRepo:   env.cache,
		Broadcaster: env.broadcaster,
		Rating:      NewRatingService(nil, nil),
	}

	engine := duelmanager.NewEngine(cfg, deps)
	creator := duelmanager.NewMatchCreator(cfg, deps, engine)
	matchmaker := duelmanager.NewMatchmaker(cfg, deps, creator)

	env.hub = websocket.NewHub("test-instance")
	env.manager = websocket.NewManager(env.hub, nil)
	env.svc = NewDuelService(deps, matchmaker, engine, env.manager)
	env.svc.RegisterHandlers()
	return env
}

// newDuelClient создает клиента без живого соединения с фиксированным connID
func newDuelClient(env *duelServiceEnv, connID, playerID string, userID uint, username string) *websocket.Client {
	client := websocket.NewClient(nil, env.hub, playerID, userID, username, nil, nil)
	client.ConnID = connID
	return client
}

// seedMatch кладёт в хранилище сессию матча u:1 против u:2 на первом вопросе
func seedMatch(env *duelServiceEnv, matchID string) *entity.MatchSession {
	sess := entity.NewMatchSession(matchID, []string{"u:1", "u:2"}, []entity.SessionQuestion{
		{QuestionID: 101, CorrectOption: 2},
		{QuestionID: 102, CorrectOption: 0},
		{QuestionID: 103, CorrectOption: 1},
	}, "history")
	sess.CurrentIndex = 0
	sess.QuestionEndAt = time.Now().Add(10 * time.Second).UnixMilli()
	sess.Usernames["u:1"] = "alice"
	sess.Usernames["u:2"] = "bob"
	_ = env.sessions.Save(sess)
	_ = env.sessions.SetActiveMatch("u:1", matchID)
	_ = env.sessions.SetActiveMatch("u:2", matchID)
	return sess
}

// ============================================================================
// Тесты жизненного цикла соединений
// ============================================================================

func TestDuelService_HandleDisconnect_OtherConnectionRemains_NoForfeit(t *testing.T) {
	// Arrange: у игрока две вкладки, активный матч идёт
	env := newDuelServiceEnv()
	seedMatch(env, "m-1")
	require.NoError(t, env.directory.Bind("conn-a", "u:1"))
	require.NoError(t, env.directory.Bind("conn-b", "u:1"))
	client := newDuelClient(env, "conn-a", "u:1", 1, "alice")

	// Act: рвётся только одно из соединений
	env.svc.HandleDisconnect(client)

	// Assert: привязка снята, но матч живёт дальше
	_, err := env.directory.Resolve("conn-a")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = env.sessions.Get("m-1")
	assert.NoError(t, err, "сессия матча не должна удаляться, пока есть другие соединения")
	assert.Empty(t, env.broadcaster.roomEvents("m-1", duelmanager.EventOpponentLeft))
	assert.Empty(t, env.broadcaster.roomEvents("m-1", duelmanager.EventMatchEnd))
	env.matchRepo.AssertNotCalled(t, "Finish", mock.Anything, mock.Anything)
}

func TestDuelService_HandleDisconnect_LastConnection_ForfeitsAndPurgesQueue(t *testing.T) {
	// Arrange: единственное соединение игрока, заявка в очереди и активный матч
	env := newDuelServiceEnv()
	seedMatch(env, "m-1")
	require.NoError(t, env.directory.Bind("conn-a", "u:1"))
	require.NoError(t, env.queue.Enqueue("history", &entity.QueueEntry{
		ConnID: "conn-a", UserID: 1, Username: "alice", Subject: "history",
	}))
	client := newDuelClient(env, "conn-a", "u:1", 1, "alice")

	env.cache.On("SetNX", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	env.cache.On("ZAdd", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	env.userRepo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, Username: "alice", Rating: 1200, Tier: entity.TierSilver}, nil)
	env.userRepo.On("GetByID", uint(2)).Return(&entity.User{ID: 2, Username: "bob", Rating: 1000, Tier: entity.TierBronze}, nil)
	env.matchRepo.On("Finish", "m-1", mock.MatchedBy(func(r entity.MatchResultData) bool {
		return r.WinnerID == "u:2" && !r.Draw
	})).Return(nil)
	// delta = 25 + 5*(silver-bronze) = 30
	env.userRepo.On("ApplyMatchOutcome", uint(2), true, 1030, entity.TierBronze).Return(nil)
	env.userRepo.On("ApplyMatchOutcome", uint(1), false, 1170, entity.TierSilver).Return(nil)

	// Act: последнее соединение рвётся
	env.svc.HandleDisconnect(client)

	// Assert: заявка снята, матч форфейтнут в пользу оставшегося
	assert.Zero(t, env.queue.depth("history"), "заявки подбора должны сниматься при дисконнекте")
	assert.Len(t, env.broadcaster.roomEvents("m-1", duelmanager.EventOpponentLeft), 1)
	assert.Len(t, env.broadcaster.roomEvents("m-1", duelmanager.EventMatchEnd), 1)
	_, err := env.sessions.Get("m-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "сессия завершённого матча должна удаляться")
	active, _ := env.sessions.GetActiveMatch("u:1")
	assert.Empty(t, active)
	active, _ = env.sessions.GetActiveMatch("u:2")
	assert.Empty(t, active)
	env.matchRepo.AssertExpectations(t)
	env.userRepo.AssertExpectations(t)
}

func TestDuelService_HandleDisconnect_NoActiveMatch_NoOp(t *testing.T) {
	// Arrange: игрок без матча и без заявок
	env := newDuelServiceEnv()
	require.NoError(t, env.directory.Bind("conn-a", "u:1"))
	client := newDuelClient(env, "conn-a", "u:1", 1, "alice")

	// Act
	env.svc.HandleDisconnect(client)

	// Assert: ничего не рассылается
	assert.Empty(t, env.broadcaster.all())
}

// ============================================================================
// Тесты разбора команд
// ============================================================================

func TestDuelService_HandleAnswer_DecodesAnswerIndex(t *testing.T) {
	// Arrange: идёт первый вопрос, правильный вариант 2
	env := newDuelServiceEnv()
	seedMatch(env, "m-1")
	client := newDuelClient(env, "conn-a", "u:1", 1, "alice")

	// Act: клиент присылает вариант 1 в поле answer_index
	raw := []byte(`{"type":"duel:answer","data":{"match_id":"m-1","question_index":0,"answer_index":1}}`)
	env.manager.HandleMessage(client, raw)

	// Assert: движок получил именно вариант 1 и заморозил ответившего
	results := env.broadcaster.roomEvents("m-1", duelmanager.EventAnswerResult)
	require.Len(t, results, 1)
	result, ok := results[0].Data.(*duelmanager.AnswerResultEvent)
	require.True(t, ok)
	assert.Equal(t, "u:1", result.PlayerID)
	assert.Equal(t, 1, result.Option)
	assert.False(t, result.Correct)
	assert.True(t, result.Frozen)

	sess, err := env.sessions.Get("m-1")
	require.NoError(t, err)
	assert.True(t, sess.IsFrozen("u:1", time.Now().UnixMilli()))
}
