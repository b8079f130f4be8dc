package model

import (
	"fmt"
	"time"
)

// Feature is a billable generation feature.
type Feature string

// Features.
const (
	FeatureChat  Feature = "chat"
	FeatureImage Feature = "image"
	FeatureVideo Feature = "video"
	FeatureAudio Feature = "audio"
)

// featureCosts is the fixed server-side price table.
var featureCosts = map[Feature]int{
	FeatureChat:  1,
	FeatureImage: 1,
	FeatureAudio: 1,
	FeatureVideo: 2,
}

// AllFeatures lists features in display order.
var AllFeatures = []Feature{FeatureChat, FeatureImage, FeatureVideo, FeatureAudio}

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if _, ok := featureCosts[f]; !ok {
		return "", fmt.Errorf("unknown feature %q", s)
	}
	return f, nil
}

// Cost returns the credit cost of one use of the feature.
func (f Feature) Cost() int {
	return featureCosts[f]
}

// Pool returns the credit pool the feature is charged to.
func (f Feature) Pool() Pool {
	if f == FeatureChat {
		return PoolChat
	}
	return PoolGraphic
}

// UsageEvent records one successful, debited generation.
type UsageEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	Feature     Feature   `json:"feature"`
	CreditsUsed int       `json:"credits_used"`
	TokensIn    int       `json:"tokens_in"`
	TokensOut   int       `json:"tokens_out"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AnalyticsRange names a reporting window.
type AnalyticsRange string

// Analytics ranges.
const (
	RangeToday AnalyticsRange = "today"
	RangeWeek  AnalyticsRange = "week"
	RangeMonth AnalyticsRange = "month"
	RangeYear  AnalyticsRange = "year"
)

// ParseAnalyticsRange maps unknown values to RangeMonth.
func ParseAnalyticsRange(s string) AnalyticsRange {
	switch r := AnalyticsRange(s); r {
	case RangeToday, RangeWeek, RangeMonth, RangeYear:
		return r
	}
	return RangeMonth
}

// Start returns the beginning of the window ending at now.
func (r AnalyticsRange) Start(now time.Time) time.Time {
	switch r {
	case RangeToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case RangeWeek:
		return now.AddDate(0, 0, -7)
	case RangeYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return now.AddDate(0, 0, -30)
	}
}

// DailyUsage is the usage aggregated for one calendar day (UTC).
type DailyUsage struct {
	Date        string `json:"date"`
	Users       int64  `json:"users"`
	Credits     int64  `json:"credits"`
	Generations int64  `json:"generations"`
}

// UsageSummary is the analytics report for a window. FeatureBreakdown counts
// generations per feature and always carries every feature.
type UsageSummary struct {
	TotalUsers       int64             `json:"totalUsers"`
	TotalCreditsUsed int64             `json:"totalCreditsUsed"`
	TotalGenerations int64             `json:"totalGenerations"`
	FeatureBreakdown map[Feature]int64 `json:"featureBreakdown"`
	DailyStats       []DailyUsage      `json:"dailyStats"`
}
