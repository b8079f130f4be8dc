package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/generation"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/repository"
	"github.com/aitools/platform/internal/service"
)

// fakeStore backs every service with maps.
type fakeStore struct {
	mu            sync.Mutex
	credits       map[string]*model.Credits
	profiles      map[string]*model.Profile
	projects      map[string]*model.Project
	conversations map[string]*model.Conversation
	messages      map[string][]*model.Message
	queryErr      error
	setupErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		credits:       make(map[string]*model.Credits),
		profiles:      make(map[string]*model.Profile),
		projects:      make(map[string]*model.Project),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]*model.Message),
	}
}

func (s *fakeStore) addUser(id string, onboarded bool, chat, image int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = &model.Profile{ID: id, Email: id + "@example.com", OnboardingCompleted: onboarded}
	s.credits[id] = &model.Credits{UserID: id, ChatCredits: chat, ImageCredits: image}
}

func (s *fakeStore) GetCredits(ctx context.Context, userID string) (*model.Credits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credits[userID]
	if !ok {
		return nil, repository.ErrCreditsNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) DebitCredits(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Credits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credits[userID]
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

func (s *fakeStore) GrantBonusCredits(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Credits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credits[userID]
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

func (s *fakeStore) CreateProject(ctx context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return s.queryErr
	}
	s.projects[p.ID] = p
	return nil
}

func (s *fakeStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	return p, nil
}

func (s *fakeStore) ListProjects(ctx context.Context, userID string) ([]*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []*model.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return s.queryErr
	}
	s.conversations[c.ID] = c
	return nil
}

func (s *fakeStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return c, nil
}

func (s *fakeStore) ListConversations(ctx context.Context, userID, projectID string) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []*model.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID && c.ProjectID != nil && *c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) AppendMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

func (s *fakeStore) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.messages[conversationID], nil
}

func (s *fakeStore) GetOnboardingStatus(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return false, repository.ErrProfileNotFound
	}
	return p.OnboardingCompleted, nil
}

func (s *fakeStore) CompleteOnboarding(ctx context.Context, userID string, data model.OnboardingData) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	p.Phone, p.CompanyName = &data.Phone, &data.CompanyName
	p.JobTitle, p.Industry = &data.JobTitle, &data.Industry
	p.Locale = data.Locale
	p.OnboardingCompleted = true
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetProfileDetails(ctx context.Context, userID string) (*model.ProfileDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &model.ProfileDetails{Profile: p, Credits: s.credits[userID]}, nil
}

func (s *fakeStore) SetupProfile(ctx context.Context, user *model.User, now time.Time) (*model.ProfileDetails, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setupErr != nil {
		return nil, false, s.setupErr
	}
	if p, ok := s.profiles[user.ID]; ok {
		return &model.ProfileDetails{Profile: p, Credits: s.credits[user.ID]}, false, nil
	}
	p := &model.Profile{ID: user.ID, Email: user.Email}
	c := &model.Credits{UserID: user.ID, ChatCredits: 50, ImageCredits: 3}
	s.profiles[user.ID] = p
	s.credits[user.ID] = c
	return &model.ProfileDetails{Profile: p, Credits: c}, true, nil
}

func (s *fakeStore) Totals(ctx context.Context, from, to time.Time, features []model.Feature) (int64, int64, int64, error) {
	return 2, 5, 4, s.queryErr
}

func (s *fakeStore) FeatureBreakdown(ctx context.Context, from, to time.Time, features []model.Feature) (map[model.Feature]int64, error) {
	return map[model.Feature]int64{model.FeatureChat: 4}, nil
}

func (s *fakeStore) DailyStats(ctx context.Context, from, to time.Time, features []model.Feature) ([]model.DailyUsage, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// services wires real services over one fakeStore.
type services struct {
	store         *fakeStore
	ledger        *service.Ledger
	conversations *service.ConversationStore
	onboarding    *service.Onboarding
	dispatcher    *service.Dispatcher
	analytics     *service.Analytics
}

func newServices(backend generation.Backend) *services {
	store := newFakeStore()
	logger := discardLogger()
	if backend == nil {
		backend = generation.BackendFunc(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			if req.Feature == model.FeatureChat {
				return &generation.Result{Content: "hello back"}, nil
			}
			return &generation.Result{AssetURL: "https://assets.example.com/" + string(req.Feature) + "/1.png"}, nil
		})
	}
	s := &services{store: store}
	s.ledger = service.NewLedger(store, logger, nil)
	s.conversations = service.NewConversationStore(store, logger)
	s.onboarding = service.NewOnboarding(store, logger)
	s.dispatcher = service.NewDispatcher(s.ledger, s.conversations, s.onboarding, backend, nil, logger, nil)
	s.analytics = service.NewAnalytics(store, logger, time.UTC)
	return s
}

var errBackend = errors.New("upstream 502")

// serve runs h with userID as the signed-in user ("" for anonymous).
func serve(h http.HandlerFunc, method, target, body, userID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req = req.WithContext(auth.ContextWithUser(req.Context(), &model.User{ID: userID, Email: userID + "@example.com"}))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) dto.Envelope {
	t.Helper()
	var env dto.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

// dataAs re-decodes env.Data into v.
func dataAs(t *testing.T, env dto.Envelope, v any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) dto.Envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Error == nil || env.Error.Code != code {
		t.Fatalf("envelope = %+v, want code %s", env, code)
	}
	return env
}
