package dao

import (
	"context"
	"sort"
	"time"

	"singlish-bot/model"
)

const EventChatTurn = "chat_turn"

type IntentRepo interface {
	ListIntents(ctx context.Context) ([]model.Intent, error)
	GetIntent(ctx context.Context, id string) (*model.Intent, error)
	CreateIntent(ctx context.Context, intent *model.Intent) error
	UpdateIntent(ctx context.Context, intent *model.Intent) error
	CountIntents(ctx context.Context) (int64, error)
}

// TurnRecord is everything persisted for one answered user message.
type TurnRecord struct {
	Session     model.Session
	UserMessage model.Message
	BotMessage  model.Message
	Event       model.AnalyticsEvent
}

type SessionRepo interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, ownerID string) ([]model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	// SaveTurn creates the session row when missing and appends both
	// messages and the analytics event atomically.
	SaveTurn(ctx context.Context, turn TurnRecord) error
	ListMessages(ctx context.Context, sessionID string) ([]model.Message, error)
	// RecentMessages returns up to limit of the latest messages, oldest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error)
}

type AnalyticsRepo interface {
	Summarize(ctx context.Context, from, to time.Time) (*model.AnalyticsSummary, error)
}

type Store interface {
	IntentRepo
	SessionRepo
	AnalyticsRepo
	Ping(ctx context.Context) error
	Close() error
}

func SortIntents(intents []model.Intent) {
	sort.SliceStable(intents, func(i, j int) bool {
		if intents[i].Priority != intents[j].Priority {
			return intents[i].Priority > intents[j].Priority
		}
		return intents[i].Name < intents[j].Name
	})
}

func finishSummary(s *model.AnalyticsSummary) {
	if s.IntentDistribution == nil {
		s.IntentDistribution = []model.IntentStat{}
	}
	sort.SliceStable(s.IntentDistribution, func(i, j int) bool {
		a, b := s.IntentDistribution[i], s.IntentDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Intent < b.Intent
	})
	if s.TotalInteractions == 0 {
		return
	}
	for i := range s.IntentDistribution {
		st := &s.IntentDistribution[i]
		st.Percentage = float64(st.Count) / float64(s.TotalInteractions) * 100
	}
}
