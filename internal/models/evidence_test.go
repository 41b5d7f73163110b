package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input   string
		want    Direction
		wantErr bool
	}{
		{"up", DirectionUp, false},
		{"UP", DirectionUp, false},
		{" success ", DirectionUp, false},
		{"pass", DirectionUp, false},
		{"+", DirectionUp, false},
		{"down", DirectionDown, false},
		{"failure", DirectionDown, false},
		{"fail", DirectionDown, false},
		{"-", DirectionDown, false},
		{"sideways", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDirection(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrConfiguration) {
			t.Errorf("ParseDirection(%q) error should match ErrConfiguration", tt.input)
		}
		if got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseStrength(t *testing.T) {
	for _, s := range []string{"low", "Medium", " HIGH"} {
		if _, err := ParseStrength(s); err != nil {
			t.Errorf("ParseStrength(%q): %v", s, err)
		}
	}
	if _, err := ParseStrength("extreme"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("ParseStrength(extreme) = %v, want configuration error", err)
	}
}

func TestDirectionFor(t *testing.T) {
	if DirectionFor(true) != DirectionUp || DirectionFor(false) != DirectionDown {
		t.Error("DirectionFor mapping is wrong")
	}
	if !DirectionUp.Upgrade() || DirectionDown.Upgrade() {
		t.Error("Upgrade mapping is wrong")
	}
	if Direction("left").Valid() {
		t.Error("unknown direction reported valid")
	}
}

func TestParseEvidence(t *testing.T) {
	tests := []struct {
		input   string
		want    Evidence
		wantErr bool
	}{
		{"C4:down", Evidence{"C4", DirectionDown, StrengthMedium}, false},
		{"C1:up:high", Evidence{"C1", DirectionUp, StrengthHigh}, false},
		{"C1:success:low", Evidence{"C1", DirectionUp, StrengthLow}, false},
		{"C1", Evidence{}, true},
		{":up", Evidence{}, true},
		{"C1:up:low:extra", Evidence{}, true},
		{"C1:sideways", Evidence{}, true},
		{"C1:up:huge", Evidence{}, true},
	}
	for _, tt := range tests {
		got, err := ParseEvidence(tt.input, StrengthMedium)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEvidence(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEvidence(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
	if s := (Evidence{"C4", DirectionDown, StrengthMedium}).String(); s != "C4:down:medium" {
		t.Errorf("String() = %q", s)
	}
}

func TestErrors(t *testing.T) {
	ev := Evidence{"C2", DirectionUp, StrengthHigh}
	tests := []struct {
		err      error
		sentinel error
		contains string
	}{
		{&ConfigError{Field: "units", Reason: "duplicate"}, ErrConfiguration, "units: duplicate"},
		{&ConfigError{Reason: "no levels"}, ErrConfiguration, "configuration error: no levels"},
		{&PreconditionError{Competence: "C5", Evidence: &ev, Reason: "xi below 1"}, ErrPreconditionViolation, "at C5 (evidence C2:up:high): xi below 1"},
		{&UnknownIDError{Kind: "unit", ID: "u9"}, ErrUnknownIdentifier, `unknown unit: "u9"`},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("applying: %w", tt.err)
		if !errors.Is(wrapped, tt.sentinel) {
			t.Errorf("%T does not match %v", tt.err, tt.sentinel)
		}
		if !strings.Contains(tt.err.Error(), tt.contains) {
			t.Errorf("%T.Error() = %q, want it to contain %q", tt.err, tt.err.Error(), tt.contains)
		}
	}
	if errors.Is(&ConfigError{}, ErrUnknownIdentifier) {
		t.Error("ConfigError should not match ErrUnknownIdentifier")
	}
}

func TestStateKey(t *testing.T) {
	if got := StateKey("C1C2", "ada"); got != "C1C2/ada" {
		t.Errorf("StateKey = %q", got)
	}
}
