// onboarding.go drives the structured onboarding
// dialogue. Until a profile has both a display name and an email, every
// turn goes through a schema-constrained completion that extracts
// whatever the user has provided so far.
package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zapcash/zapcash/pkg/zapcash/profile"
)

// Mode selects which conversation loop a turn runs through.
type Mode string

const (
	ModeOnboarding  Mode = "onboarding"
	ModeOperational Mode = "operational"
)

// ModeFor returns the loop a profile's next turn belongs to. The check
// runs fresh on every turn, so a profile completed mid-conversation
// flips to the operational loop immediately.
func ModeFor(p *profile.Profile) Mode {
	if p.IsOnboarded() {
		return ModeOperational
	}
	return ModeOnboarding
}

// OnboardingResult is the structured output of an onboarding turn.
// Email and DisplayName are empty until the user has supplied them;
// Reply is always required.
type OnboardingResult struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Reply       string `json:"reply"`
}

// onboardingSchema constrains the model's onboarding output.
var onboardingSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"email": {
			"type": "string",
			"description": "The user's email address, or empty if not yet provided."
		},
		"display_name": {
			"type": "string",
			"description": "The user's preferred display name, or empty if not yet provided."
		},
		"reply": {
			"type": "string",
			"description": "The message to send back to the user."
		}
	},
	"required": ["email", "display_name", "reply"],
	"additionalProperties": false
}`)

// OnboardingResponseFormat is the response_format sent with onboarding
// completions.
func OnboardingResponseFormat() *ResponseFormat {
	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchemaFormat{
			Name:   "onboarding_turn",
			Strict: true,
			Schema: onboardingSchema,
		},
	}
}

// ParseOnboardingResult validates raw model output against the expected
// shape. Unparseable output or a blank reply is a SchemaViolationError.
func ParseOnboardingResult(raw string) (*OnboardingResult, error) {
	var res OnboardingResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, &SchemaViolationError{Detail: fmt.Sprintf("onboarding output: %v", err)}
	}
	if strings.TrimSpace(res.Reply) == "" {
		return nil, &SchemaViolationError{Detail: "onboarding output missing reply"}
	}
	res.Email = strings.TrimSpace(res.Email)
	res.DisplayName = strings.TrimSpace(res.DisplayName)
	return &res, nil
}

// ApplyOnboardingResult merges extracted fields into the profile and
// reports whether anything changed. Existing values are only
// overwritten by non-empty extractions.
func ApplyOnboardingResult(p *profile.Profile, res *OnboardingResult) bool {
	changed := false
	if res.Email != "" && res.Email != p.Email {
		p.Email = res.Email
		changed = true
	}
	if res.DisplayName != "" && res.DisplayName != p.DisplayName {
		p.DisplayName = res.DisplayName
		changed = true
	}
	return changed
}
