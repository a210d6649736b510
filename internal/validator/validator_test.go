package validator

import (
	"testing"
)

type sample struct {
	Prompt string   `json:"prompt" validate:"nonblank"`
	Kind   string   `json:"kind" validate:"required,oneof=MULTIPLE_CHOICE TEXT"`
	Points int      `yaml:"points" validate:"gt=0"`
	Tags   []string `json:"-" validate:"omitempty,dive,nonblank"`
}

func TestTranslateErrorsUsesTagNames(t *testing.T) {
	v := New()

	err := v.Struct(sample{Prompt: "   ", Kind: "ESSAY", Points: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}

	fields := TranslateErrors(err)
	for _, name := range []string{"prompt", "kind", "points"} {
		if fields[name] == "" {
			t.Errorf("missing error for %q in %v", name, fields)
		}
	}
	if got := fields["prompt"]; got != "prompt must not be blank" {
		t.Errorf("prompt error = %q", got)
	}
}

func TestValidStructPasses(t *testing.T) {
	v := New()
	if err := v.Struct(sample{Prompt: "2+2?", Kind: "TEXT", Points: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTranslateNamespacedKeepsPaths(t *testing.T) {
	type doc struct {
		Items []sample `yaml:"items" validate:"dive"`
	}

	err := New().Struct(doc{Items: []sample{
		{Prompt: "ok", Kind: "TEXT", Points: 1},
		{Prompt: " ", Kind: "TEXT", Points: 1},
	}})
	fields := TranslateNamespaced(err)

	if _, ok := fields["items[1].prompt"]; !ok {
		t.Errorf("fields = %v, want key items[1].prompt", fields)
	}
	if _, ok := fields["prompt"]; ok {
		t.Errorf("leaf key leaked into %v", fields)
	}
}
