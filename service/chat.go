package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"singlish-bot/internal/logger"
	"singlish-bot/model"
)

const DefaultHistoryTurns = 5

// Resolver is what the chat path needs from the decision layer.
type Resolver interface {
	Decide(ctx context.Context, req DecisionRequest) model.ResolutionResult
}

type ChatService struct {
	decision     Resolver
	sessions     *SessionManager
	historyTurns int
	log          *zap.Logger
	now          func() time.Time
}

func NewChatService(decision Resolver, sessions *SessionManager, historyTurns int, log *zap.Logger) *ChatService {
	if historyTurns < 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &ChatService{
		decision:     decision,
		sessions:     sessions,
		historyTurns: historyTurns,
		log:          logger.Named(log, "chat"),
		now:          time.Now,
	}
}

// HandleMessage validates and answers one chat message. owner is empty
// for anonymous callers; recent is the in-memory context such callers
// keep themselves and is ignored for owners, whose context is loaded from
// storage. Only validation errors are returned.
func (s *ChatService) HandleMessage(ctx context.Context, owner string, req model.ChatRequest, recent []model.Turn) (*model.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	received := s.now()

	sessionID := s.sessions.ResolveSession(ctx, req.SessionID, owner)
	if owner != "" {
		recent = s.sessions.RecentTurns(ctx, sessionID, owner, s.historyTurns)
	} else if s.historyTurns > 0 && len(recent) > s.historyTurns {
		recent = recent[len(recent)-s.historyTurns:]
	}

	result := s.decision.Decide(ctx, DecisionRequest{
		Message:     req.Message,
		SessionID:   sessionID,
		UserID:      owner,
		RecentTurns: recent,
	})
	result = s.sessions.AppendTurn(ctx, sessionID, owner, req.Message, received, result)

	s.log.Debug("message answered",
		zap.String("session_id", sessionID),
		zap.String("intent", result.Intent),
		zap.Float64("confidence", result.Confidence),
		zap.String("strategy", string(result.Strategy)),
		zap.Duration("latency", result.Latency),
	)

	return &model.ChatResponse{
		SessionID:    sessionID,
		Response:     result.Response,
		Intent:       result.Intent,
		Confidence:   result.Confidence,
		ResponseTime: result.LatencyMillis(),
	}, nil
}
