package duelmanager

import (
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	apperrors "github.com/yourusername/duel-api/internal/pkg/errors"

	"github.com/yourusername/duel-api/internal/domain/entity"
	"github.com/yourusername/duel-api/internal/domain/repository"
)

// ============================================================================
// Моки внешних хранилищ (testify)
// ============================================================================

// MockUserRepo реализует repository.UserRepository
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) GetByIDs(ids []uint) ([]entity.User, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepo) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepo) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepo) ApplyMatchOutcome(id uint, won bool, newRating int, newTier int) error {
	args := m.Called(id, won, newRating, newTier)
	return args.Error(0)
}

// MockQuestionRepo реализует repository.QuestionRepository
type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) GetByID(id uint) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) GetByIDs(ids []uint) ([]entity.Question, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) CountBySubject(subject string) (int64, error) {
	args := m.Called(subject)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuestionRepo) GetBySubjectRange(subject string, skip int, limit int) ([]entity.Question, error) {
	args := m.Called(subject, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

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

// ============================================================================
// In-memory фейки разделяемых хранилищ: состояние мутируется в ходе
// теста, поэтому запись/воспроизведение вызовов здесь неудобны
// ============================================================================

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
	matchID, ok := f.active[playerID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return matchID, nil
}

func (f *fakeSessionStore) ClearActiveMatch(playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, playerID)
	return nil
}

// fakeCache реализует repository.CacheRepository в памяти
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	sets   map[string]map[string]struct{}
	zsets  map[string]map[string]float64
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
		zsets:  make(map[string]map[string]float64),
	}
}

func (f *fakeCache) Set(key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = toString(value)
	return nil
}

func (f *fakeCache) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return val, nil
}

func (f *fakeCache) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeCache) Exists(key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeCache) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = toString(value)
	return true, nil
}

func (f *fakeCache) SAdd(key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (f *fakeCache) SRem(key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		delete(f.sets[key], m)
	}
	return nil
}

func (f *fakeCache) SMembers(key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (f *fakeCache) ZAdd(key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	zset, ok := f.zsets[key]
	if !ok {
		zset = make(map[string]float64)
		f.zsets[key] = zset
	}
	zset[member] = score
	return nil
}

func (f *fakeCache) ZRevRangeWithScores(key string, start, stop int64) ([]repository.ZMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]repository.ZMember, 0, len(f.zsets[key]))
	for m, score := range f.zsets[key] {
		members = append(members, repository.ZMember{Member: m, Score: score})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Score > members[j].Score })
	return members, nil
}

func toString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return "1"
}

// fakeJobStore реализует repository.JobRepository в памяти
type fakeJobStore struct {
	mu   sync.Mutex
	jobs []entity.ScheduledJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{}
}

func (f *fakeJobStore) Schedule(job *entity.ScheduledJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.jobs {
		if existing.ID() == job.ID() {
			return nil
		}
	}
	f.jobs = append(f.jobs, *job)
	return nil
}

func (f *fakeJobStore) Cancel(matchID string, questionIndex int, eventType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.jobs[:0]
	removed := 0
	for _, job := range f.jobs {
		if job.MatchID == matchID && job.QuestionIndex == questionIndex &&
			(eventType == "" || job.EventType == eventType) {
			removed++
			continue
		}
		kept = append(kept, job)
	}
	f.jobs = kept
	return removed, nil
}

func (f *fakeJobStore) PollDue(nowMs int64, limit int) ([]entity.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []entity.ScheduledJob
	kept := f.jobs[:0]
	for _, job := range f.jobs {
		if job.RunAtMs <= nowMs && len(due) < limit {
			due = append(due, job)
			continue
		}
		kept = append(kept, job)
	}
	f.jobs = kept
	return due, nil
}

// scheduled возвращает снимок запланированных задач
func (f *fakeJobStore) scheduled() []entity.ScheduledJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.ScheduledJob(nil), f.jobs...)
}

// byType возвращает задачи указанного типа
func (f *fakeJobStore) byType(eventType string) []entity.ScheduledJob {
	var filtered []entity.ScheduledJob
	for _, job := range f.scheduled() {
		if job.EventType == eventType {
			filtered = append(filtered, job)
		}
	}
	return filtered
}

// fakeQueue реализует repository.QueueRepository в памяти
type fakeQueue struct {
	mu       sync.Mutex
	queues   map[string][]*entity.QueueEntry
	subjects map[string]struct{}
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		queues:   make(map[string][]*entity.QueueEntry),
		subjects: make(map[string]struct{}),
	}
}

func (f *fakeQueue) Enqueue(subject string, entry *entity.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.queues[subject][:0]
	for _, existing := range f.queues[subject] {
		if !existing.MatchesIdentity(entry.ConnID, entry.UserID, entry.GuestID) {
			kept = append(kept, existing)
		}
	}
	f.queues[subject] = append(kept, entry)
	f.subjects[subject] = struct{}{}
	return nil
}

func (f *fakeQueue) Pop(subject string) (*entity.QueueEntry, error) {
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

func (f *fakeQueue) PushFront(subject string, entry *entity.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[subject] = append([]*entity.QueueEntry{entry}, f.queues[subject]...)
	f.subjects[subject] = struct{}{}
	return nil
}

func (f *fakeQueue) RemoveIdentity(subject string, connID string, userID uint, guestID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.queues[subject][:0]
	removed := 0
	for _, entry := range f.queues[subject] {
		if entry.MatchesIdentity(connID, userID, guestID) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	f.queues[subject] = kept
	return removed, nil
}

func (f *fakeQueue) Subjects() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subjects := make([]string, 0, len(f.subjects))
	for s := range f.subjects {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// depth возвращает длину очереди темы
func (f *fakeQueue) depth(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[subject])
}

// fakeDirectory реализует repository.SocketDirectory в памяти
type fakeDirectory struct {
	mu      sync.Mutex
	byConn  map[string]string
	byOwner map[string]map[string]struct{}
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		byConn:  make(map[string]string),
		byOwner: make(map[string]map[string]struct{}),
	}
}

func (f *fakeDirectory) Bind(connID string, playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindLocked(connID, playerID)
	return nil
}

func (f *fakeDirectory) bindLocked(connID string, playerID string) {
	f.byConn[connID] = playerID
	conns, ok := f.byOwner[playerID]
	if !ok {
		conns = make(map[string]struct{})
		f.byOwner[playerID] = conns
	}
	conns[connID] = struct{}{}
}

func (f *fakeDirectory) Resolve(connID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	playerID, ok := f.byConn[connID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return playerID, nil
}

func (f *fakeDirectory) Connections(playerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conns := make([]string, 0, len(f.byOwner[playerID]))
	for c := range f.byOwner[playerID] {
		conns = append(conns, c)
	}
	sort.Strings(conns)
	return conns, nil
}

func (f *fakeDirectory) ClaimSingle(connID string, playerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	previous := make([]string, 0, len(f.byOwner[playerID]))
	for c := range f.byOwner[playerID] {
		previous = append(previous, c)
	}
	sort.Strings(previous)
	f.bindLocked(connID, playerID)
	return previous, nil
}

func (f *fakeDirectory) Unbind(connID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	playerID, ok := f.byConn[connID]
	if !ok {
		return nil
	}
	delete(f.byConn, connID)
	delete(f.byOwner[playerID], connID)
	return nil
}

// ============================================================================
// Фейковый транспорт: записывает все отправленные события
// ============================================================================

type sentEvent struct {
	Room   string
	ConnID string
	Type   string
	Data   interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
	rooms  map[string]map[string]struct{}
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		rooms: make(map[string]map[string]struct{}),
	}
}

func (f *fakeBroadcaster) JoinRoom(roomID, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members, ok := f.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		f.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

func (f *fakeBroadcaster) LeaveRoom(roomID, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[roomID], connID)
}

func (f *fakeBroadcaster) EmitToRoom(roomID string, eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{Room: roomID, Type: eventType, Data: data})
	return nil
}

func (f *fakeBroadcaster) EmitToConn(connID string, eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{ConnID: connID, Type: eventType, Data: data})
	return nil
}

// roomEvents возвращает события указанного типа, отправленные в комнату
func (f *fakeBroadcaster) roomEvents(roomID, eventType string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var filtered []sentEvent
	for _, ev := range f.events {
		if ev.Room == roomID && ev.Type == eventType {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

// connEvents возвращает события указанного типа, отправленные соединению
func (f *fakeBroadcaster) connEvents(connID, eventType string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var filtered []sentEvent
	for _, ev := range f.events {
		if ev.ConnID == connID && ev.Type == eventType {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

// inRoom проверяет членство соединения в комнате
func (f *fakeBroadcaster) inRoom(roomID, connID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[roomID][connID]
	return ok
}

// ============================================================================
// Фиксированный рейтинговый движок для тестов
// ============================================================================

type stubRating struct {
	delta int
}

func (s *stubRating) ComputeDelta(winnerTier, loserTier int) int {
	return s.delta
}

func (s *stubRating) SyncTier(user *entity.User) int {
	return user.Tier
}

// ============================================================================
// Сборка тестового окружения
// ============================================================================

type testEnv struct {
	userRepo     *MockUserRepo
	questionRepo *MockQuestionRepo
	matchRepo    *MockMatchRepo
	sessions     *fakeSessionStore
	queue        *fakeQueue
	jobs         *fakeJobStore
	directory    *fakeDirectory
	cache        *fakeCache
	broadcaster  *fakeBroadcaster
	rating       *stubRating

	config     *Config
	deps       *Dependencies
	engine     *Engine
	creator    *MatchCreator
	matchmaker *Matchmaker
}

// newTestEnv собирает движок с фейками и моками. Пауза показа ответа
// укорочена, чтобы тесты продвижения не ждали реального времени.
func newTestEnv() *testEnv {
	env := &testEnv{
		userRepo:     new(MockUserRepo),
		questionRepo: new(MockQuestionRepo),
		matchRepo:    new(MockMatchRepo),
		sessions:     newFakeSessionStore(),
		queue:        newFakeQueue(),
		jobs:         newFakeJobStore(),
		directory:    newFakeDirectory(),
		cache:        newFakeCache(),
		broadcaster:  newFakeBroadcaster(),
		rating:       &stubRating{delta: 25},
	}
	env.config = &Config{
		QuestionTime:      30 * time.Second,
		SoftTimeout:       15 * time.Second,
		FreezeTime:        15 * time.Second,
		RevealDelay:       10 * time.Millisecond,
		QuestionsPerMatch: 3,
		QueueLock:         3 * time.Second,
	}
	env.deps = &Dependencies{
		UserRepo:     env.userRepo,
		QuestionRepo: env.questionRepo,
		MatchRepo:    env.matchRepo,
		SessionRepo:  env.sessions,
		QueueRepo:    env.queue,
		JobRepo:      env.jobs,
		Directory:    env.directory,
		CacheRepo:    env.cache,
		Broadcaster:  env.broadcaster,
		Rating:       env.rating,
	}
	env.engine = NewEngine(env.config, env.deps)
	env.creator = NewMatchCreator(env.config, env.deps, env.engine)
	env.matchmaker = NewMatchmaker(env.config, env.deps, env.creator)
	return env
}

// seedSession кладёт сессию активного матча в хранилище
func (env *testEnv) seedSession(sess *entity.MatchSession) {
	_ = env.sessions.Save(sess)
	for _, playerID := range sess.PlayerIDs {
		_ = env.sessions.SetActiveMatch(playerID, sess.MatchID)
	}
}

// testSession строит типовую сессию из трёх вопросов для u:1 и u:2
func testSession(matchID string, currentIndex int) *entity.MatchSession {
	sess := entity.NewMatchSession(matchID, []string{"u:1", "u:2"}, []entity.SessionQuestion{
		{QuestionID: 101, CorrectOption: 2},
		{QuestionID: 102, CorrectOption: 0},
		{QuestionID: 103, CorrectOption: 1},
	}, "history")
	sess.Usernames["u:1"] = "alice"
	sess.Usernames["u:2"] = "bob"
	sess.AddParticipant("conn-1")
	sess.AddParticipant("conn-2")
	sess.CurrentIndex = currentIndex
	if currentIndex >= 0 {
		sess.QuestionEndAt = time.Now().Add(30 * time.Second).UnixMilli()
	}
	return sess
}
