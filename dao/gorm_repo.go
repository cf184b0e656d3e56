package dao

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"singlish-bot/model"
)

func (s *GormStore) ListIntents(ctx context.Context) ([]model.Intent, error) {
	var rows []intentRow
	if err := s.db.WithContext(ctx).Order("priority DESC, name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	out := make([]model.Intent, 0, len(rows))
	for _, r := range rows {
		in, err := rowToIntent(r)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (s *GormStore) GetIntent(ctx context.Context, id string) (*model.Intent, error) {
	var row intentRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get intent %s: %w", id, err)
	}
	in, err := rowToIntent(row)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *GormStore) CountIntents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&intentRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count intents: %w", err)
	}
	return n, nil
}

func nameTaken(tx *gorm.DB, name, exceptID string) (bool, error) {
	q := tx.Model(&intentRow{}).Where("name = ?", name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GormStore) CreateIntent(ctx context.Context, intent *model.Intent) error {
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	intent.CreatedAt, intent.UpdatedAt = now, now

	row, err := intentToRow(intent)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, intent.Name, "")
		if err != nil {
			return fmt.Errorf("check intent name: %w", err)
		}
		if taken {
			return model.ErrDuplicateName
		}
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return model.ErrDuplicateName
			}
			return fmt.Errorf("create intent: %w", err)
		}
		return nil
	})
}

func (s *GormStore) UpdateIntent(ctx context.Context, intent *model.Intent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur intentRow
		err := tx.Where("id = ?", intent.ID).First(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load intent %s: %w", intent.ID, err)
		}

		taken, err := nameTaken(tx, intent.Name, intent.ID)
		if err != nil {
			return fmt.Errorf("check intent name: %w", err)
		}
		if taken {
			return model.ErrDuplicateName
		}

		intent.CreatedAt = cur.CreatedAt
		intent.UpdatedAt = time.Now().UTC()
		row, err := intentToRow(intent)
		if err != nil {
			return err
		}
		// Select("*") so false and zero values are written too.
		if err := tx.Model(&intentRow{ID: intent.ID}).Select("*").Updates(&row).Error; err != nil {
			if isDuplicate(err) {
				return model.ErrDuplicateName
			}
			return fmt.Errorf("update intent %s: %w", intent.ID, err)
		}
		return nil
	})
}

func (s *GormStore) CreateSession(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	row := sessionToRow(*session)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess := rowToSession(row)
	return &sess, nil
}

func (s *GormStore) ListSessions(ctx context.Context, ownerID string) ([]model.Session, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]model.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToSession(r))
	}
	return out, nil
}

// DeleteSession removes the session with its messages and events. Children
// are deleted explicitly so drivers without enforced cascades behave the same.
func (s *GormStore) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&messageRow{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Where("session_id = ?", id).Delete(&analyticsRow{}).Error; err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&sessionRow{})
		if res.Error != nil {
			return fmt.Errorf("delete session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) SaveTurn(ctx context.Context, turn TurnRecord) error {
	now := time.Now().UTC()
	user, bot, ev := turn.UserMessage, turn.BotMessage, turn.Event
	stamp(&user.ID, &user.CreatedAt, now)
	stamp(&bot.ID, &bot.CreatedAt, now.Add(time.Microsecond))
	stamp(&ev.ID, &ev.CreatedAt, now)

	data, err := toJSON(ev.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	event := analyticsRow{
		ID:             ev.ID,
		SessionID:      ev.SessionID,
		UserID:         ev.UserID,
		EventType:      ev.EventType,
		Intent:         ev.Intent,
		Confidence:     ev.Confidence,
		ResponseTimeMs: ev.ResponseTimeMs,
		Strategy:       string(ev.Strategy),
		Data:           data,
		CreatedAt:      ev.CreatedAt,
	}

	sess := sessionToRow(turn.Session)
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing sessionRow
		if err := tx.Where(sessionRow{ID: sess.ID}).Attrs(sess).FirstOrCreate(&existing).Error; err != nil {
			return fmt.Errorf("ensure session: %w", err)
		}
		msgs := []messageRow{messageToRow(user), messageToRow(bot)}
		if err := tx.Create(&msgs).Error; err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("insert analytics event: %w", err)
		}
		return nil
	})
}

func (s *GormStore) ListMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var rows []messageRow
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToMessage(r))
	}
	return out, nil
}

func (s *GormStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	q := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []messageRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	slices.Reverse(rows)
	out := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToMessage(r))
	}
	return out, nil
}

func (s *GormStore) Summarize(ctx context.Context, from, to time.Time) (*model.AnalyticsSummary, error) {
	window := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&analyticsRow{}).
			Where("event_type = ? AND created_at >= ? AND created_at <= ?", EventChatTurn, from, to)
	}

	var overall struct {
		Total         int64
		UniqueUsers   int64
		AvgConfidence float64
		AvgResponse   float64
	}
	err := window().
		Select("COUNT(*) AS total, COUNT(DISTINCT user_id) AS unique_users, " +
			"COALESCE(AVG(confidence), 0) AS avg_confidence, COALESCE(AVG(response_time_ms), 0) AS avg_response").
		Scan(&overall).Error
	if err != nil {
		return nil, fmt.Errorf("summarize analytics: %w", err)
	}

	var dist []struct {
		Intent string
		Count  int64
	}
	if err := window().Select("intent, COUNT(*) AS count").Group("intent").Scan(&dist).Error; err != nil {
		return nil, fmt.Errorf("intent distribution: %w", err)
	}

	sum := &model.AnalyticsSummary{
		From:              from,
		To:                to,
		TotalInteractions: overall.Total,
		UniqueUsers:       overall.UniqueUsers,
		AvgConfidence:     overall.AvgConfidence,
		AvgResponseTimeMs: overall.AvgResponse,
	}
	for _, d := range dist {
		sum.IntentDistribution = append(sum.IntentDistribution, model.IntentStat{Intent: d.Intent, Count: d.Count})
	}
	finishSummary(sum)
	return sum, nil
}
