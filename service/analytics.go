package service

import (
	"context"
	"time"

	"singlish-bot/dao"
	"singlish-bot/model"
)

const DefaultAnalyticsWindow = 30 * 24 * time.Hour

type AnalyticsService struct {
	repo dao.AnalyticsRepo
	now  func() time.Time
}

func NewAnalyticsService(repo dao.AnalyticsRepo) *AnalyticsService {
	return &AnalyticsService{repo: repo, now: time.Now}
}

// Summary aggregates chat turns between from and to. Zero bounds default
// to the last 30 days ending now.
func (s *AnalyticsService) Summary(ctx context.Context, from, to time.Time) (*model.AnalyticsSummary, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-DefaultAnalyticsWindow)
	}
	if from.After(to) {
		return nil, &model.ValidationError{Field: "from", Message: "must not be after to"}
	}
	return s.repo.Summarize(ctx, from.UTC(), to.UTC())
}
