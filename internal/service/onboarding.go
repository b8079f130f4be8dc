package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/repository"
)

// Step is a position in the onboarding wizard.
type Step int

// Wizard steps, in order.
const (
	StepPhone Step = iota
	StepCompany
	StepJobTitle
	StepIndustry
	stepDone
)

func (s Step) String() string {
	switch s {
	case StepPhone:
		return "phone"
	case StepCompany:
		return "company"
	case StepJobTitle:
		return "job_title"
	case StepIndustry:
		return "industry"
	default:
		return "done"
	}
}

const (
	minPhoneDigits     = 8
	maxPhoneDigits     = 15
	maxCompanyNameRune = 200
)

// Wizard is the onboarding draft. It only moves forward through Next, which
// validates the current step, and back one step at a time through Back.
// Nothing is persisted until Complete.
type Wizard struct {
	step  Step
	draft model.OnboardingData
}

// NewWizard starts a wizard at the phone step.
func NewWizard() *Wizard {
	return &Wizard{}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.step
}

// Draft returns the values accepted so far.
func (w *Wizard) Draft() model.OnboardingData {
	return w.draft
}

// Next validates value for the current step, records it and advances.
func (w *Wizard) Next(value string) error {
	var err error
	switch w.step {
	case StepPhone:
		var phone string
		if phone, err = normalizePhone(value); err == nil {
			w.draft.Phone = phone
		}
	case StepCompany:
		var company string
		if company, err = validateCompany(value); err == nil {
			w.draft.CompanyName = company
		}
	case StepJobTitle:
		if !model.IsValidJobTitle(value) {
			err = errors.New("Please select a valid job title")
		} else {
			w.draft.JobTitle = value
		}
	case StepIndustry:
		if !model.IsValidIndustry(value) {
			err = errors.New("Please select a valid industry")
		} else {
			w.draft.Industry = value
		}
	default:
		return NewValidationError("Onboarding already has every step", map[string]any{"step": w.step.String()})
	}

	if err != nil {
		return NewValidationError(err.Error(), map[string]any{"step": w.step.String()})
	}
	w.step++
	return nil
}

// Back returns to the previous step. It is a no-op on the first step.
func (w *Wizard) Back() {
	if w.step > StepPhone {
		w.step--
	}
}

// Complete returns the finished submission. It fails unless every step was
// passed.
func (w *Wizard) Complete(locale string) (model.OnboardingData, error) {
	if w.step != stepDone {
		return model.OnboardingData{}, NewValidationError("Onboarding is incomplete", map[string]any{"step": w.step.String()})
	}
	if locale == "" {
		locale = model.DefaultLocale
	}
	if !model.IsValidLocale(locale) {
		return model.OnboardingData{}, NewValidationError("Invalid locale", map[string]any{"allowed": []string{model.LocaleEnglish, model.LocaleThai}})
	}
	data := w.draft
	data.Locale = locale
	return data, nil
}

func normalizePhone(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	digits := strings.TrimPrefix(s, "+")
	if digits == "" {
		return "", errors.New("Phone number is required")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", errors.New("Phone number may contain digits only")
		}
	}
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", fmt.Errorf("Phone number must have %d to %d digits", minPhoneDigits, maxPhoneDigits)
	}
	return s, nil
}

func validateCompany(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("Company name is required")
	}
	if utf8.RuneCountInString(s) > maxCompanyNameRune {
		return "", fmt.Errorf("Company name must be at most %d characters", maxCompanyNameRune)
	}
	return s, nil
}

// OnboardingForm is the submitted onboarding form.
type OnboardingForm struct {
	Phone       string
	CompanyName string
	JobTitle    string
	Industry    string
	Locale      string
}

// ProfileState is the onboarding state of a user as seen by the gate.
type ProfileState int

// Profile states.
const (
	ProfileMissing ProfileState = iota
	ProfileIncomplete
	ProfileComplete
)

// Onboarding handles first-login setup and the onboarding submission.
type Onboarding struct {
	profiles ProfileStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewOnboarding creates a new Onboarding service.
func NewOnboarding(profiles ProfileStore, logger *slog.Logger) *Onboarding {
	return &Onboarding{
		profiles: profiles,
		logger:   logger.With("component", "onboarding"),
		now:      time.Now,
	}
}

// State reads the user's onboarding flag. It is never cached.
func (o *Onboarding) State(ctx context.Context, userID string) (ProfileState, error) {
	completed, err := o.profiles.GetOnboardingStatus(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return ProfileMissing, nil
		}
		return ProfileMissing, fmt.Errorf("get onboarding status: %w", err)
	}
	if completed {
		return ProfileComplete, nil
	}
	return ProfileIncomplete, nil
}

// RequireCompleted returns ErrOnboardingRequired unless the user finished
// onboarding.
func (o *Onboarding) RequireCompleted(ctx context.Context, userID string) error {
	state, err := o.State(ctx, userID)
	if err != nil {
		return err
	}
	if state != ProfileComplete {
		return ErrOnboardingRequired
	}
	return nil
}

// Complete replays the form through the wizard and, if every step passes,
// applies it to the profile in one update.
func (o *Onboarding) Complete(ctx context.Context, userID string, form OnboardingForm) (*model.Profile, error) {
	if form.Phone == "" || form.CompanyName == "" || form.JobTitle == "" || form.Industry == "" {
		return nil, NewValidationError("Missing required fields", map[string]any{
			"required": []string{"phone", "company_name", "job_title", "industry"},
		})
	}

	w := NewWizard()
	for _, value := range []string{form.Phone, form.CompanyName, form.JobTitle, form.Industry} {
		if err := w.Next(value); err != nil {
			return nil, err
		}
	}
	data, err := w.Complete(form.Locale)
	if err != nil {
		return nil, err
	}

	profile, err := o.profiles.CompleteOnboarding(ctx, userID, data)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("complete onboarding: %w", err)
	}

	o.logger.Info("onboarding completed", "user_id", userID, "industry", data.Industry)
	return profile, nil
}

// Setup creates the profile, free subscription and credits for a user on
// first login. It is idempotent; created reports whether anything was made.
func (o *Onboarding) Setup(ctx context.Context, user *model.User) (*model.ProfileDetails, bool, error) {
	if user == nil || user.ID == "" {
		return nil, false, ErrUnauthorized
	}

	details, created, err := o.profiles.SetupProfile(ctx, user, o.now())
	if err != nil {
		if errors.Is(err, repository.ErrFreePlanMissing) {
			return nil, false, ErrFreePlanMissing
		}
		return nil, false, fmt.Errorf("setup profile: %w", err)
	}

	if created {
		o.logger.Info("profile created", "user_id", user.ID)
	}
	return details, created, nil
}
