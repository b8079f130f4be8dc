package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aitools/platform/internal/model"
)

const dayLayout = "2006-01-02"

// AnalyticsReport is a usage summary with the window it covers.
type AnalyticsReport struct {
	Summary *model.UsageSummary
	Range   model.AnalyticsRange
	Start   time.Time
	End     time.Time
}

// Analytics aggregates platform-wide usage from the usage log.
type Analytics struct {
	usage    UsageQuerier
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

// NewAnalytics creates a new Analytics service. Range boundaries such as
// "today" are computed in loc; nil means time.Local.
func NewAnalytics(usage UsageQuerier, logger *slog.Logger, loc *time.Location) *Analytics {
	if loc == nil {
		loc = time.Local
	}
	return &Analytics{
		usage:    usage,
		logger:   logger.With("component", "analytics"),
		location: loc,
		now:      time.Now,
	}
}

// Summary reports usage between the start of the named range and now.
// Unknown ranges fall back to the last 30 days.
func (a *Analytics) Summary(ctx context.Context, rangeName string) (*AnalyticsReport, error) {
	r := model.ParseAnalyticsRange(rangeName)
	end := a.now().In(a.location)
	start := r.Start(end)

	users, credits, generations, err := a.usage.Totals(ctx, start, end, model.AllFeatures)
	if err != nil {
		return nil, fmt.Errorf("usage totals: %w", err)
	}

	counts, err := a.usage.FeatureBreakdown(ctx, start, end, model.AllFeatures)
	if err != nil {
		return nil, fmt.Errorf("feature breakdown: %w", err)
	}
	breakdown := make(map[model.Feature]int64, len(model.AllFeatures))
	for _, f := range model.AllFeatures {
		breakdown[f] = counts[f]
	}

	daily, err := a.usage.DailyStats(ctx, start, end, model.AllFeatures)
	if err != nil {
		return nil, fmt.Errorf("daily stats: %w", err)
	}

	return &AnalyticsReport{
		Summary: &model.UsageSummary{
			TotalUsers:       users,
			TotalCreditsUsed: credits,
			TotalGenerations: generations,
			FeatureBreakdown: breakdown,
			DailyStats:       fillDays(daily, start, end),
		},
		Range: r,
		Start: start,
		End:   end,
	}, nil
}

// fillDays returns one entry per UTC day in [start, end], using zero for
// days without usage.
func fillDays(stats []model.DailyUsage, start, end time.Time) []model.DailyUsage {
	byDate := make(map[string]model.DailyUsage, len(stats))
	for _, d := range stats {
		byDate[d.Date] = d
	}

	first := start.UTC().Truncate(24 * time.Hour)
	last := end.UTC().Truncate(24 * time.Hour)

	out := make([]model.DailyUsage, 0, int(last.Sub(first)/(24*time.Hour))+1)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayLayout)
		if d, ok := byDate[key]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, model.DailyUsage{Date: key})
	}
	return out
}
