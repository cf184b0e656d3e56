package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"singlish-bot/dao"
	"singlish-bot/internal/logger"
	"singlish-bot/model"
	"singlish-bot/utils"
)

const displayNameLen = 50

// SessionManager assigns session ids and records answered turns for
// authenticated owners. Anonymous conversations are never persisted.
// Persistence failures are logged and never reach the caller of the chat
// path.
type SessionManager struct {
	repo  dao.SessionRepo
	log   *zap.Logger
	newID func() string
	now   func() time.Time
}

func NewSessionManager(repo dao.SessionRepo, log *zap.Logger) *SessionManager {
	return &SessionManager{
		repo:  repo,
		log:   logger.Named(log, "session_manager"),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// ResolveSession reuses providedID verbatim, or mints a new id which is
// stored only when owner is set.
func (m *SessionManager) ResolveSession(ctx context.Context, providedID, owner string) string {
	if providedID != "" {
		return providedID
	}
	id := m.newID()
	if owner == "" {
		return id
	}
	err := m.repo.CreateSession(ctx, &model.Session{
		ID:        id,
		OwnerID:   owner,
		Active:    true,
		CreatedAt: m.now().UTC(),
	})
	if err != nil {
		m.log.Error("create session failed", zap.Error(err), zap.String("session_id", id))
	}
	return id
}

// AppendTurn stores the user message, the reply and an analytics event in
// one transaction. The result is returned unchanged whatever happens.
func (m *SessionManager) AppendTurn(ctx context.Context, sessionID, owner, userText string, receivedAt time.Time, result model.ResolutionResult) model.ResolutionResult {
	if owner == "" || sessionID == "" {
		return result
	}
	log := m.log.With(zap.String("session_id", sessionID))

	existing, err := m.repo.GetSession(ctx, sessionID)
	switch {
	case err == nil && existing.OwnerID != owner:
		log.Warn("session belongs to another owner, turn not stored")
		return result
	case err != nil && !errors.Is(err, model.ErrNotFound):
		log.Error("load session failed", zap.Error(err))
		return result
	}

	if receivedAt.IsZero() {
		receivedAt = m.now()
	}
	receivedAt = receivedAt.UTC()
	answeredAt := receivedAt.Add(result.Latency)
	if !answeredAt.After(receivedAt) {
		answeredAt = receivedAt.Add(time.Microsecond)
	}

	intent := result.Intent
	confidence := result.Confidence
	latency := result.LatencyMillis()

	data := utils.ExtractFeatures(userText).Map()
	data["strategy"] = string(result.Strategy)

	turn := dao.TurnRecord{
		Session: model.Session{
			ID:          sessionID,
			OwnerID:     owner,
			DisplayName: utils.Truncate(userText, displayNameLen),
			Active:      true,
			CreatedAt:   receivedAt,
		},
		UserMessage: model.Message{
			SessionID: sessionID,
			AuthorID:  owner,
			Role:      model.RoleUser,
			Content:   userText,
			CreatedAt: receivedAt,
		},
		BotMessage: model.Message{
			SessionID:  sessionID,
			Role:       model.RoleBot,
			Content:    result.Response,
			Intent:     &intent,
			Confidence: &confidence,
			LatencyMs:  &latency,
			CreatedAt:  answeredAt,
		},
		Event: model.AnalyticsEvent{
			SessionID:      sessionID,
			UserID:         owner,
			EventType:      dao.EventChatTurn,
			Intent:         intent,
			Confidence:     confidence,
			ResponseTimeMs: latency,
			Strategy:       result.Strategy,
			Data:           data,
			CreatedAt:      answeredAt,
		},
	}
	if err := m.repo.SaveTurn(ctx, turn); err != nil {
		log.Error("save turn failed", zap.Error(err))
	}
	return result
}

// RecentTurns returns the last n stored messages of an owned session as
// provider context. It returns nil for anonymous callers.
func (m *SessionManager) RecentTurns(ctx context.Context, sessionID, owner string, n int) []model.Turn {
	if owner == "" || sessionID == "" || n <= 0 {
		return nil
	}
	msgs, err := m.repo.RecentMessages(ctx, sessionID, n)
	if err != nil {
		m.log.Warn("load recent turns failed", zap.Error(err), zap.String("session_id", sessionID))
		return nil
	}
	turns := make([]model.Turn, 0, len(msgs))
	for _, msg := range msgs {
		t := model.Turn{Role: msg.Role, Content: msg.Content}
		if msg.Intent != nil {
			t.Intent = *msg.Intent
		}
		turns = append(turns, t)
	}
	return turns
}

func (m *SessionManager) owned(ctx context.Context, sessionID, owner string) error {
	if owner == "" {
		return model.ErrForbidden
	}
	sess, err := m.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	// someone else's session looks the same as a missing one
	if sess.OwnerID != owner {
		return model.ErrNotFound
	}
	return nil
}

func (m *SessionManager) History(ctx context.Context, sessionID, owner string) ([]model.Message, error) {
	if err := m.owned(ctx, sessionID, owner); err != nil {
		return nil, err
	}
	return m.repo.ListMessages(ctx, sessionID)
}

func (m *SessionManager) ListSessions(ctx context.Context, owner string) ([]model.Session, error) {
	if owner == "" {
		return nil, model.ErrForbidden
	}
	return m.repo.ListSessions(ctx, owner)
}

func (m *SessionManager) DeleteSession(ctx context.Context, sessionID, owner string) error {
	if err := m.owned(ctx, sessionID, owner); err != nil {
		return err
	}
	return m.repo.DeleteSession(ctx, sessionID)
}
