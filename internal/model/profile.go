package model

import (
	"slices"
	"time"
)

// Profile is 1:1 with a User and gates access to generation features
// through OnboardingCompleted.
type Profile struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	FullName            string    `json:"full_name"`
	AvatarURL           *string   `json:"avatar_url"`
	Phone               *string   `json:"phone"`
	CompanyName         *string   `json:"company_name"`
	JobTitle            *string   `json:"job_title"`
	Industry            *string   `json:"industry"`
	Locale              string    `json:"locale"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ProfileDetails is a profile with its credits and active subscription.
type ProfileDetails struct {
	*Profile
	Credits      *Credits      `json:"credits"`
	Subscription *Subscription `json:"subscription"`
}

// Locales.
const (
	LocaleEnglish = "en"
	LocaleThai    = "th"

	DefaultLocale = LocaleThai
)

// JobTitles lists the accepted job_title values.
var JobTitles = []string{
	"marketing",
	"project_manager",
	"business_owner",
	"content_creator",
	"graphic_designer",
	"software_developer",
	"data_analyst",
	"sales",
	"hr",
	"other",
}

// Industries lists the accepted industry values.
var Industries = []string{
	"technology",
	"retail",
	"finance",
	"education",
	"healthcare",
	"manufacturing",
	"real_estate",
	"hospitality",
	"media",
	"consulting",
	"other",
}

// IsValidJobTitle reports whether v is a known job title.
func IsValidJobTitle(v string) bool {
	return slices.Contains(JobTitles, v)
}

// IsValidIndustry reports whether v is a known industry.
func IsValidIndustry(v string) bool {
	return slices.Contains(Industries, v)
}

// IsValidLocale reports whether v is a supported locale.
func IsValidLocale(v string) bool {
	return v == LocaleEnglish || v == LocaleThai
}

// OnboardingData is the full onboarding submission applied atomically.
type OnboardingData struct {
	Phone       string
	CompanyName string
	JobTitle    string
	Industry    string
	Locale      string
}
