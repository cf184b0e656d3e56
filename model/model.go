package model

import "time"

type Strategy string

const (
	StrategyRemote     Strategy = "remote"
	StrategyCachedRule Strategy = "cached-rule"
	StrategyDefault    Strategy = "default"
)

// Sentinel intent names. They never collide with catalog names because the
// catalog rejects them on create.
const (
	IntentUnknown  = "unknown"
	IntentFallback = "fallback"
	IntentError    = "error"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

type Intent struct {
	ID          string    `json:"id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Phrases     []string  `json:"phrases" yaml:"phrases"`
	Responses   []string  `json:"responses" yaml:"responses"`
	Category    string    `json:"category" yaml:"category"`
	Priority    int       `json:"priority" yaml:"priority"`
	Active      bool      `json:"active" yaml:"active"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-"`
}

// IntentConfig is the shape of the seed file under config/.
type IntentConfig struct {
	Intents []Intent `yaml:"intents"`
}

// IntentInput is what catalog administrators send on create and update.
// Active is only honoured on update; nil keeps the current state.
type IntentInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Phrases     []string `json:"phrases"`
	Responses   []string `json:"responses"`
	Category    string   `json:"category"`
	Priority    int      `json:"priority"`
	Active      *bool    `json:"active,omitempty"`
}

type CandidateMatch struct {
	Phrase   string  `json:"phrase"`
	Intent   string  `json:"intent"`
	Priority int     `json:"priority"`
	Response string  `json:"response"`
	Score    float64 `json:"score"`
}

type ResolutionResult struct {
	Response   string        `json:"response"`
	Intent     string        `json:"intent"`
	Confidence float64       `json:"confidence"`
	Strategy   Strategy      `json:"strategy"`
	Latency    time.Duration `json:"latency"`
}

func (r ResolutionResult) LatencyMillis() int64 {
	return r.Latency.Milliseconds()
}

type Session struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId,omitempty"`
	DisplayName string    `json:"displayName"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Message struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	AuthorID   string    `json:"authorId,omitempty"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Intent     *string   `json:"intent,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	LatencyMs  *int64    `json:"latencyMs,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type AnalyticsEvent struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId"`
	UserID         string         `json:"userId"`
	EventType      string         `json:"eventType"`
	Intent         string         `json:"intent"`
	Confidence     float64        `json:"confidence"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
	Strategy       Strategy       `json:"strategy"`
	Data           map[string]any `json:"data,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type IntentStat struct {
	Intent     string  `json:"intent"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type AnalyticsSummary struct {
	From               time.Time    `json:"from"`
	To                 time.Time    `json:"to"`
	TotalInteractions  int64        `json:"totalInteractions"`
	UniqueUsers        int64        `json:"uniqueUsers"`
	AvgConfidence      float64      `json:"avgConfidence"`
	AvgResponseTimeMs  float64      `json:"avgResponseTimeMs"`
	IntentDistribution []IntentStat `json:"intentDistribution"`
}

// Turn is one message of recent conversation context forwarded to the
// scored-intent provider.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Intent  string `json:"intent,omitempty"`
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type ChatResponse struct {
	SessionID    string  `json:"sessionId"`
	Response     string  `json:"response"`
	Intent       string  `json:"intent"`
	Confidence   float64 `json:"confidence"`
	ResponseTime int64   `json:"responseTime"`
}

type PredictContext struct {
	RecentTurns []Turn `json:"recent_turns"`
	Timestamp   string `json:"timestamp"`
}

type PredictRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Context   PredictContext `json:"context"`
}

// PredictResponse fields are pointers so a missing field can be told apart
// from a zero value.
type PredictResponse struct {
	Response   *string  `json:"response"`
	Intent     *string  `json:"intent"`
	Confidence *float64 `json:"confidence"`
}
