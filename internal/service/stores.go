package service

import (
	"context"
	"time"

	"github.com/aitools/platform/internal/model"
)

// CreditStore performs conditional, atomic balance updates.
type CreditStore interface {
	GetCredits(ctx context.Context, userID string) (*model.Credits, error)
	DebitCredits(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Credits, error)
	GrantBonusCredits(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Credits, error)
}

// ConversationRepository persists projects, conversations and messages.
type ConversationRepository interface {
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, userID string) ([]*model.Project, error)
	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID, projectID string) ([]*model.Conversation, error)
	AppendMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error)
}

// ProfileStore reads and writes profiles.
type ProfileStore interface {
	GetOnboardingStatus(ctx context.Context, userID string) (bool, error)
	CompleteOnboarding(ctx context.Context, userID string, data model.OnboardingData) (*model.Profile, error)
	GetProfileDetails(ctx context.Context, userID string) (*model.ProfileDetails, error)
	SetupProfile(ctx context.Context, user *model.User, now time.Time) (*model.ProfileDetails, bool, error)
}

// UsageQuerier aggregates persisted usage.
type UsageQuerier interface {
	Totals(ctx context.Context, from, to time.Time, features []model.Feature) (users, credits, generations int64, err error)
	FeatureBreakdown(ctx context.Context, from, to time.Time, features []model.Feature) (map[model.Feature]int64, error)
	DailyStats(ctx context.Context, from, to time.Time, features []model.Feature) ([]model.DailyUsage, error)
}

// UsagePublisher emits usage events without blocking.
type UsagePublisher interface {
	PublishAsync(event model.UsageEvent)
}

// ServiceKeyStore looks up and maintains back-office keys.
type ServiceKeyStore interface {
	CreateServiceKey(ctx context.Context, key *model.ServiceKey) error
	GetServiceKeysByPrefix(ctx context.Context, prefix string) ([]*model.ServiceKey, error)
	UpdateServiceKeyLastUsed(ctx context.Context, id string) error
	ListServiceKeys(ctx context.Context) ([]*model.ServiceKey, error)
	RevokeServiceKey(ctx context.Context, id string) error
}

type noopPublisher struct{}

func (noopPublisher) PublishAsync(model.UsageEvent) {}
