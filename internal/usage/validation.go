package usage

import (
	"errors"
	"fmt"

	"github.com/aitools/platform/internal/model"
)

const maxUserIDLength = 128

// maxCreditsPerEvent is the largest single charge in the price table with headroom.
const maxCreditsPerEvent = 100

// ValidatePayload checks a decoded stream payload before it is persisted.
func ValidatePayload(p Payload) error {
	if p.UserID == "" {
		return errors.New("user_id is required")
	}
	if len(p.UserID) > maxUserIDLength {
		return errors.New("user_id too long")
	}
	if _, err := model.ParseFeature(p.Feature); err != nil {
		return err
	}
	if p.CreditsUsed < 1 || p.CreditsUsed > maxCreditsPerEvent {
		return fmt.Errorf("credits_used out of range: %d", p.CreditsUsed)
	}
	if p.TokensIn < 0 || p.TokensOut < 0 {
		return errors.New("token counts must be non-negative")
	}
	if p.OccurredAt <= 0 {
		return errors.New("occurred_at must be set")
	}
	return nil
}
