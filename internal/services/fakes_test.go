package services

import (
	"advisor-app/session-service/internal/models"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory stand-in for the mongo repositories and the
// transaction runner. WithTx serializes transactions and restores a snapshot
// on error, matching the abort semantics the coordinator relies on.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	advisors map[string]models.Advisor
	requests map[primitive.ObjectID]models.SessionRequest
	sessions map[string]models.Session
	messages []models.Message
}

func newMemStore() *memStore {
	return &memStore{
		advisors: make(map[string]models.Advisor),
		requests: make(map[primitive.ObjectID]models.SessionRequest),
		sessions: make(map[string]models.Session),
	}
}

func (s *memStore) snapshot() (map[string]models.Advisor, map[primitive.ObjectID]models.SessionRequest, map[string]models.Session, []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	advisors := make(map[string]models.Advisor, len(s.advisors))
	for k, v := range s.advisors {
		advisors[k] = v
	}
	requests := make(map[primitive.ObjectID]models.SessionRequest, len(s.requests))
	for k, v := range s.requests {
		requests[k] = v
	}
	sessions := make(map[string]models.Session, len(s.sessions))
	for k, v := range s.sessions {
		sessions[k] = v
	}
	messages := append([]models.Message(nil), s.messages...)
	return advisors, requests, sessions, messages
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	advisors, requests, sessions, messages := s.snapshot()
	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.advisors, s.requests, s.sessions, s.messages = advisors, requests, sessions, messages
		s.mu.Unlock()
		return err
	}
	return nil
}

// --- AdvisorRepository ---

func (s *memStore) GetByID(_ context.Context, id string) (*models.Advisor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	advisor, ok := s.advisors[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &advisor, nil
}

func (s *memStore) SetAvailability(_ context.Context, id string, busy bool, at time.Time) (*models.Advisor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	advisor, ok := s.advisors[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if advisor.Busy != busy {
		advisor.Busy = busy
		if busy {
			since := at
			advisor.BusySince = &since
		} else {
			advisor.BusySince = nil
		}
		s.advisors[id] = advisor
	}
	return &advisor, nil
}

func (s *memStore) MarkBusy(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	advisor, ok := s.advisors[id]
	if !ok {
		return models.ErrNotFound
	}
	if advisor.Busy {
		return models.ErrAdvisorBusy
	}
	since := at
	advisor.Busy = true
	advisor.BusySince = &since
	s.advisors[id] = advisor
	return nil
}

func (s *memStore) ReleaseBusy(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	advisor, ok := s.advisors[id]
	if !ok {
		return models.ErrNotFound
	}
	if !advisor.Busy {
		return nil
	}
	advisor.Busy = false
	advisor.BusySince = nil
	advisor.TotalSessionsAttended++
	s.advisors[id] = advisor
	return nil
}

// --- RequestRepository ---

func (s *memStore) Create(_ context.Context, req *models.SessionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = primitive.NewObjectID()
	req.Status = models.RequestPending
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	s.requests[req.ID] = *req
	return nil
}

func (s *memStore) GetRequestByID(_ context.Context, id primitive.ObjectID) (*models.SessionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &req, nil
}

func (s *memStore) GetByRoomID(_ context.Context, roomID string) (*models.SessionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.RoomID == roomID {
			r := req
			return &r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) ListPending(_ context.Context, advisorID string) ([]models.SessionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SessionRequest
	for _, req := range s.requests {
		if req.AdvisorID == advisorID && req.Status == models.RequestPending {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListPendingBefore(_ context.Context, cutoff time.Time) ([]models.SessionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SessionRequest
	for _, req := range s.requests {
		if req.Status == models.RequestPending && req.CreatedAt.Before(cutoff) {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *memStore) MarkAccepted(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return models.ErrNotFound
	}
	if req.Status != models.RequestPending {
		return models.ErrInvalidState
	}
	accepted := at
	req.Status = models.RequestAccepted
	req.AcceptedAt = &accepted
	s.requests[id] = req
	return nil
}

func (s *memStore) MarkClosed(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if req.Status == models.RequestClosed {
		return false, nil
	}
	closed := at
	req.Status = models.RequestClosed
	req.ClosedAt = &closed
	s.requests[id] = req
	return true, nil
}

// --- SessionRepository ---

func (s *memStore) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return models.ErrAlreadyExists
	}
	session.Status = models.SessionActive
	session.CreatedAt = time.Now()
	s.sessions[session.ID] = *session
	return nil
}

func (s *memStore) GetActiveByAdvisor(_ context.Context, advisorID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.AdvisorID == advisorID && session.Status == models.SessionActive {
			active := session
			return &active, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) GetSessionByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &session, nil
}

func (s *memStore) MarkSessionClosed(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if session.Status == models.SessionClosed {
		return false, nil
	}
	closed := at
	session.Status = models.SessionClosed
	session.ClosedAt = &closed
	s.sessions[id] = session
	return true, nil
}

func (s *memStore) AppendMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[msg.SessionID]
	if !ok {
		return models.ErrNotFound
	}
	if session.Status != models.SessionActive {
		return models.ErrSessionClosed
	}
	session.MessageSeq++
	s.sessions[msg.SessionID] = session

	msg.ID = primitive.NewObjectID()
	msg.Seq = session.MessageSeq
	msg.CreatedAt = time.Now()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *memStore) ListMessages(_ context.Context, sessionID string, afterSeq int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.messages {
		if msg.SessionID == sessionID && msg.Seq > afterSeq {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *memStore) ListByStatus(_ context.Context, status models.SessionStatus) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for _, session := range s.sessions {
		if status == "" || session.Status == status {
			out = append(out, session)
		}
	}
	return out, nil
}

// --- interface adapters ---

// The store carries every repository; the adapters below pick out the
// methods whose names collide across interfaces.

type requestRepoAdapter struct{ *memStore }

func (a requestRepoAdapter) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SessionRequest, error) {
	return a.memStore.GetRequestByID(ctx, id)
}

type sessionRepoAdapter struct{ *memStore }

func (a sessionRepoAdapter) Create(ctx context.Context, session *models.Session) error {
	return a.memStore.CreateSession(ctx, session)
}

func (a sessionRepoAdapter) GetByID(ctx context.Context, id string) (*models.Session, error) {
	return a.memStore.GetSessionByID(ctx, id)
}

func (a sessionRepoAdapter) MarkClosed(ctx context.Context, id string, at time.Time) (bool, error) {
	return a.memStore.MarkSessionClosed(ctx, id, at)
}

// recordingNotifier captures push notifications for assertions. Pushes are
// dispatched off the request path, so tests wait on fired.
type recordingNotifier struct {
	mu     sync.Mutex
	pushes []string
	fired  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{fired: make(chan struct{}, 16)}
}

func (n *recordingNotifier) Push(_ context.Context, recipientID, title, _ string) {
	n.mu.Lock()
	n.pushes = append(n.pushes, recipientID+":"+title)
	n.mu.Unlock()
	n.fired <- struct{}{}
}

func (n *recordingNotifier) waitFired(timeout time.Duration) bool {
	select {
	case <-n.fired:
		return true
	case <-time.After(timeout):
		return false
	}
}

// blockingNotifier stalls delivery until released, to prove callers do not
// wait on push delivery.
type blockingNotifier struct {
	release chan struct{}
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{release: make(chan struct{})}
}

func (n *blockingNotifier) Push(ctx context.Context, _, _, _ string) {
	select {
	case <-n.release:
	case <-ctx.Done():
	}
}

// fakeRooms records video room provisioning calls.
type fakeRooms struct {
	mu    sync.Mutex
	rooms []string
	fired chan struct{}
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{fired: make(chan struct{}, 16)}
}

func (r *fakeRooms) ProvisionRoom(_ context.Context, roomID string) error {
	r.mu.Lock()
	r.rooms = append(r.rooms, roomID)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *fakeRooms) waitFired(timeout time.Duration) bool {
	select {
	case <-r.fired:
		return true
	case <-time.After(timeout):
		return false
	}
}

// fakeWebhook records session-end notifications.
type fakeWebhook struct {
	mu    sync.Mutex
	calls []string
	fail  bool
	fired chan struct{}
}

func newFakeWebhook() *fakeWebhook {
	return &fakeWebhook{fired: make(chan struct{}, 16)}
}

func (w *fakeWebhook) NotifySessionEnded(_ context.Context, roomID, _, _ string) error {
	w.mu.Lock()
	w.calls = append(w.calls, roomID)
	fail := w.fail
	w.mu.Unlock()
	w.fired <- struct{}{}
	if fail {
		return context.DeadlineExceeded
	}
	return nil
}

func (w *fakeWebhook) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func (w *fakeWebhook) waitFired(timeout time.Duration) bool {
	select {
	case <-w.fired:
		return true
	case <-time.After(timeout):
		return false
	}
}

// fixture wires a full service stack over the in-memory store.
type fixture struct {
	store       *memStore
	broker      Broker
	webhook     *fakeWebhook
	rooms       *fakeRooms
	notifier    *recordingNotifier
	presence    *PresenceService
	coordinator *Coordinator
	registry    *RegistryService
	queue       *QueueService
}

func newFixture() *fixture {
	store := newMemStore()
	broker := NewMemoryBroker()
	webhook := newFakeWebhook()
	rooms := newFakeRooms()
	notifier := newRecordingNotifier()

	presence := NewPresenceService(store, sessionRepoAdapter{store}, store, nil, broker)
	coordinator := NewCoordinator(
		store,
		requestRepoAdapter{store},
		sessionRepoAdapter{store},
		store,
		presence,
		broker,
		webhook,
		rooms,
		notifier,
	)
	registry := NewRegistryService(sessionRepoAdapter{store}, broker, notifier)
	queue := NewQueueService(requestRepoAdapter{store}, coordinator, broker, notifier)

	return &fixture{
		store:       store,
		broker:      broker,
		webhook:     webhook,
		rooms:       rooms,
		notifier:    notifier,
		presence:    presence,
		coordinator: coordinator,
		registry:    registry,
		queue:       queue,
	}
}

func (f *fixture) seedAdvisor(id string) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.advisors[id] = models.Advisor{ID: id}
}

func (f *fixture) seedRequest(userID, advisorID string, kind models.SessionKind) *models.SessionRequest {
	req := &models.SessionRequest{
		UserID:    userID,
		AdvisorID: advisorID,
		RoomID:    "room-" + primitive.NewObjectID().Hex(),
		Kind:      kind,
		Payment:   models.PaymentRef{PaymentID: "pay_test"},
	}
	if err := f.store.Create(context.Background(), req); err != nil {
		panic(err)
	}
	return req
}

func (f *fixture) advisor(id string) models.Advisor {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.advisors[id]
}

func (f *fixture) request(id primitive.ObjectID) models.SessionRequest {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.requests[id]
}

func (f *fixture) session(id string) (models.Session, bool) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	session, ok := f.store.sessions[id]
	return session, ok
}
