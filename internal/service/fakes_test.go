package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory stand-in for the repository. Debits are applied
// under one lock so they behave like the conditional UPDATE.
type memStore struct {
	mu            sync.Mutex
	credits       map[string]*model.Credits
	profiles      map[string]*model.Profile
	projects      map[string]*model.Project
	conversations map[string]*model.Conversation
	messages      map[string][]*model.Message
	keys          []*model.ServiceKey
	touched       chan string

	statusErr     error
	appendErr     error
	failAssistant bool
	setupErr      error
	clock         time.Time
}

func newMemStore() *memStore {
	return &memStore{
		credits:       make(map[string]*model.Credits),
		profiles:      make(map[string]*model.Profile),
		projects:      make(map[string]*model.Project),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]*model.Message),
		touched:       make(chan string, 16),
		clock:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addUser(userID string, onboarded bool, chat, bonusChat, image, bonusImage int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = &model.Profile{ID: userID, Locale: model.DefaultLocale, OnboardingCompleted: onboarded}
	m.credits[userID] = &model.Credits{
		UserID:            userID,
		ChatCredits:       chat,
		BonusChatCredits:  bonusChat,
		ImageCredits:      image,
		BonusImageCredits: bonusImage,
	}
}

func (m *memStore) creditsOf(userID string) model.Credits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.credits[userID]
}

func (m *memStore) messageCount(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[conversationID])
}

func (m *memStore) totalMessages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msgs := range m.messages {
		n += len(msgs)
	}
	return n
}

func (m *memStore) GetCredits(ctx context.Context, userID string) (*model.Credits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[userID]
	if !ok {
		return nil, repository.ErrCreditsNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) DebitCredits(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Credits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[userID]
	if !ok {
		return nil, repository.ErrInsufficientCredits
	}
	regular, bonus := &c.ChatCredits, &c.BonusChatCredits
	if pool == model.PoolGraphic {
		regular, bonus = &c.ImageCredits, &c.BonusImageCredits
	}
	r, b, ok := model.ApplyDebit(*regular, *bonus, amount)
	if !ok {
		return nil, repository.ErrInsufficientCredits
	}
	*regular, *bonus = r, b
	cp := *c
	return &cp, nil
}

func (m *memStore) GrantBonusCredits(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Credits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[userID]
	if !ok {
		return nil, repository.ErrCreditsNotFound
	}
	if pool == model.PoolGraphic {
		c.BonusImageCredits += amount
	} else {
		c.BonusChatCredits += amount
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CreateProject(ctx context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *memStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	return p, nil
}

func (m *memStore) ListProjects(ctx context.Context, userID string) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Project
	for _, p := range m.projects {
		if p.UserID == userID && !p.IsArchived {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ProjectID != nil {
		if _, ok := m.projects[*c.ProjectID]; !ok {
			return repository.ErrProjectNotFound
		}
	}
	m.conversations[c.ID] = c
	return nil
}

func (m *memStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return c, nil
}

func (m *memStore) ListConversations(ctx context.Context, userID, projectID string) ([]*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Conversation
	for _, c := range m.conversations {
		if c.UserID == userID && c.ProjectID != nil && *c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) AppendMessage(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	if m.failAssistant && msg.Role == model.RoleAssistant {
		return context.DeadlineExceeded
	}
	c, ok := m.conversations[msg.ConversationID]
	if !ok {
		return repository.ErrConversationNotFound
	}
	m.clock = m.clock.Add(time.Millisecond)
	msg.CreatedAt = m.clock
	c.UpdatedAt = m.clock
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *memStore) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Message(nil), m.messages[conversationID]...), nil
}

func (m *memStore) GetOnboardingStatus(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return false, m.statusErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return false, repository.ErrProfileNotFound
	}
	return p.OnboardingCompleted, nil
}

func (m *memStore) CompleteOnboarding(ctx context.Context, userID string, data model.OnboardingData) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	p.Phone = &data.Phone
	p.CompanyName = &data.CompanyName
	p.JobTitle = &data.JobTitle
	p.Industry = &data.Industry
	p.Locale = data.Locale
	p.OnboardingCompleted = true
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProfileDetails(ctx context.Context, userID string) (*model.ProfileDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &model.ProfileDetails{Profile: p, Credits: m.credits[userID]}, nil
}

func (m *memStore) SetupProfile(ctx context.Context, user *model.User, now time.Time) (*model.ProfileDetails, bool, error) {
	if m.setupErr != nil {
		return nil, false, m.setupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[user.ID]; ok {
		return &model.ProfileDetails{Profile: p, Credits: m.credits[user.ID]}, false, nil
	}
	p := &model.Profile{ID: user.ID, Email: user.Email, FullName: user.DisplayName(), Locale: model.DefaultLocale}
	c := &model.Credits{
		UserID:         user.ID,
		ChatCredits:    model.DefaultFreeChatCredits,
		ImageCredits:   model.DefaultFreeImageCredits,
		CreditsResetAt: model.NextResetAt(now),
	}
	m.profiles[user.ID] = p
	m.credits[user.ID] = c
	return &model.ProfileDetails{Profile: p, Credits: c}, true, nil
}

func (m *memStore) CreateServiceKey(ctx context.Context, key *model.ServiceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *memStore) GetServiceKeysByPrefix(ctx context.Context, prefix string) ([]*model.ServiceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ServiceKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memStore) ListServiceKeys(ctx context.Context) ([]*model.ServiceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.keys), nil
}

func (m *memStore) RevokeServiceKey(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.ID == id && k.RevokedAt == nil {
			now := m.clock
			k.RevokedAt = &now
			return nil
		}
	}
	return repository.ErrServiceKeyNotFound
}

func (m *memStore) UpdateServiceKeyLastUsed(ctx context.Context, id string) error {
	m.touched <- id
	return nil
}

// recordingPublisher collects published usage events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.UsageEvent
}

func (p *recordingPublisher) PublishAsync(e model.UsageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) published() []model.UsageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.UsageEvent(nil), p.events...)
}
