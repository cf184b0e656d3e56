package dao

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"singlish-bot/model"
)

// MemoryStore keeps everything in process. It backs tests and the
// database-less mode; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	intents  map[string]model.Intent
	sessions map[string]model.Session
	messages map[string][]model.Message
	events   []model.AnalyticsEvent
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:  make(map[string]model.Intent),
		sessions: make(map[string]model.Session),
		messages: make(map[string][]model.Message),
		now:      time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

func cloneIntent(in model.Intent) model.Intent {
	in.Phrases = slices.Clone(in.Phrases)
	in.Responses = slices.Clone(in.Responses)
	return in
}

func (s *MemoryStore) ListIntents(context.Context) ([]model.Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Intent, 0, len(s.intents))
	for _, in := range s.intents {
		out = append(out, cloneIntent(in))
	}
	SortIntents(out)
	return out, nil
}

func (s *MemoryStore) GetIntent(_ context.Context, id string) (*model.Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.intents[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := cloneIntent(in)
	return &c, nil
}

func (s *MemoryStore) CountIntents(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.intents)), nil
}

func (s *MemoryStore) nameTakenLocked(name, exceptID string) bool {
	for id, in := range s.intents {
		if id != exceptID && in.Name == name {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateIntent(_ context.Context, intent *model.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTakenLocked(intent.Name, "") {
		return model.ErrDuplicateName
	}
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	now := s.now()
	intent.CreatedAt, intent.UpdatedAt = now, now
	s.intents[intent.ID] = cloneIntent(*intent)
	return nil
}

func (s *MemoryStore) UpdateIntent(_ context.Context, intent *model.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.intents[intent.ID]
	if !ok {
		return model.ErrNotFound
	}
	if s.nameTakenLocked(intent.Name, intent.ID) {
		return model.ErrDuplicateName
	}
	intent.CreatedAt = cur.CreatedAt
	intent.UpdatedAt = s.now()
	s.intents[intent.ID] = cloneIntent(*intent)
	return nil
}

func (s *MemoryStore) CreateSession(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, ownerID string) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Session, 0)
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			out = append(out, sess)
		}
	}
	slices.SortFunc(out, func(a, b model.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	s.events = slices.DeleteFunc(s.events, func(e model.AnalyticsEvent) bool {
		return e.SessionID == id
	})
	return nil
}

func (s *MemoryStore) SaveTurn(_ context.Context, turn TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sid := turn.Session.ID
	if _, ok := s.sessions[sid]; !ok {
		sess := turn.Session
		if sess.CreatedAt.IsZero() {
			sess.CreatedAt = now
		}
		s.sessions[sid] = sess
	}

	user, bot, ev := turn.UserMessage, turn.BotMessage, turn.Event
	stamp(&user.ID, &user.CreatedAt, now)
	// the bot reply sorts after the user message it answers
	stamp(&bot.ID, &bot.CreatedAt, now.Add(time.Microsecond))
	stamp(&ev.ID, &ev.CreatedAt, now)
	ev.Data = maps.Clone(ev.Data)

	s.messages[sid] = append(s.messages[sid], user, bot)
	s.events = append(s.events, ev)
	return nil
}

func stamp(id *string, at *time.Time, now time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if at.IsZero() {
		*at = now
	}
}

func (s *MemoryStore) ListMessages(_ context.Context, sessionID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, model.ErrNotFound
	}
	return slices.Clone(s.messages[sessionID]), nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}

func (s *MemoryStore) Summarize(_ context.Context, from, to time.Time) (*model.AnalyticsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &model.AnalyticsSummary{From: from, To: to}
	users := make(map[string]struct{})
	counts := make(map[string]int64)
	var conf, rt float64

	for _, ev := range s.events {
		if ev.EventType != EventChatTurn || ev.CreatedAt.Before(from) || ev.CreatedAt.After(to) {
			continue
		}
		sum.TotalInteractions++
		users[ev.UserID] = struct{}{}
		counts[ev.Intent]++
		conf += ev.Confidence
		rt += float64(ev.ResponseTimeMs)
	}

	if sum.TotalInteractions > 0 {
		sum.AvgConfidence = conf / float64(sum.TotalInteractions)
		sum.AvgResponseTimeMs = rt / float64(sum.TotalInteractions)
	}
	sum.UniqueUsers = int64(len(users))
	for name, n := range counts {
		sum.IntentDistribution = append(sum.IntentDistribution, model.IntentStat{Intent: name, Count: n})
	}
	finishSummary(sum)
	return sum, nil
}

var _ Store = (*MemoryStore)(nil)
