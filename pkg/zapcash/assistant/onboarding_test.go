package assistant

import (
	"errors"
	"testing"

	"github.com/zapcash/zapcash/pkg/zapcash/profile"
)

func TestModeFor(t *testing.T) {
	cases := []struct {
		name    string
		profile *profile.Profile
		want    Mode
	}{
		{"fresh profile", &profile.Profile{Handle: "h"}, ModeOnboarding},
		{"name only", &profile.Profile{Handle: "h", DisplayName: "Ana"}, ModeOnboarding},
		{"email only", &profile.Profile{Handle: "h", Email: "a@b.co"}, ModeOnboarding},
		{"complete", &profile.Profile{Handle: "h", DisplayName: "Ana", Email: "a@b.co"}, ModeOperational},
		{"whitespace name", &profile.Profile{Handle: "h", DisplayName: "  ", Email: "a@b.co"}, ModeOnboarding},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ModeFor(tc.profile); got != tc.want {
				t.Errorf("ModeFor = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseOnboardingResult(t *testing.T) {
	t.Run("valid output", func(t *testing.T) {
		res, err := ParseOnboardingResult(`{"email":" ana@example.com ","display_name":"Ana","reply":"Nice to meet you, Ana!"}`)
		if err != nil {
			t.Fatalf("ParseOnboardingResult failed: %v", err)
		}
		if res.Email != "ana@example.com" {
			t.Errorf("email not trimmed: %q", res.Email)
		}
		if res.DisplayName != "Ana" || res.Reply != "Nice to meet you, Ana!" {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("partial extraction keeps fields empty", func(t *testing.T) {
		res, err := ParseOnboardingResult(`{"email":"","display_name":"","reply":"What's your name?"}`)
		if err != nil {
			t.Fatalf("ParseOnboardingResult failed: %v", err)
		}
		if res.Email != "" || res.DisplayName != "" {
			t.Errorf("expected empty fields, got %+v", res)
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := ParseOnboardingResult(`not json`)
		var sv *SchemaViolationError
		if !errors.As(err, &sv) {
			t.Errorf("expected SchemaViolationError, got %v", err)
		}
	})

	t.Run("blank reply", func(t *testing.T) {
		_, err := ParseOnboardingResult(`{"email":"a@b.co","display_name":"Ana","reply":"  "}`)
		var sv *SchemaViolationError
		if !errors.As(err, &sv) {
			t.Errorf("expected SchemaViolationError, got %v", err)
		}
	})
}

func TestApplyOnboardingResult(t *testing.T) {
	t.Run("fills empty profile", func(t *testing.T) {
		p := &profile.Profile{Handle: "h"}
		changed := ApplyOnboardingResult(p, &OnboardingResult{Email: "a@b.co", DisplayName: "Ana"})
		if !changed {
			t.Error("expected changed=true")
		}
		if p.Email != "a@b.co" || p.DisplayName != "Ana" {
			t.Errorf("profile not updated: %+v", p)
		}
	})

	t.Run("empty extraction preserves existing values", func(t *testing.T) {
		p := &profile.Profile{Handle: "h", Email: "old@b.co", DisplayName: "Old"}
		changed := ApplyOnboardingResult(p, &OnboardingResult{})
		if changed {
			t.Error("expected changed=false")
		}
		if p.Email != "old@b.co" || p.DisplayName != "Old" {
			t.Errorf("existing values clobbered: %+v", p)
		}
	})

	t.Run("identical values report no change", func(t *testing.T) {
		p := &profile.Profile{Handle: "h", Email: "a@b.co", DisplayName: "Ana"}
		if ApplyOnboardingResult(p, &OnboardingResult{Email: "a@b.co", DisplayName: "Ana"}) {
			t.Error("expected changed=false for identical values")
		}
	})
}

func TestOnboardingResponseFormat(t *testing.T) {
	rf := OnboardingResponseFormat()
	if rf.Type != "json_schema" {
		t.Errorf("unexpected type %q", rf.Type)
	}
	if rf.JSONSchema == nil || !rf.JSONSchema.Strict || rf.JSONSchema.Name == "" {
		t.Errorf("schema format incomplete: %+v", rf.JSONSchema)
	}
}
