package questionbank

import (
	"errors"
	"strings"
	"testing"

	"github.com/stemsi/examguard-backend/internal/model"
)

const validBank = `
questions:
  - kind: MULTIPLE_CHOICE
    prompt: "  What is the time complexity of binary search?  "
    options: ["O(n)", "O(log n)", "O(n log n)"]
    points: 2
  - kind: TEXT
    prompt: Explain polymorphism.
    options: ["ignored", "too"]
    points: 5
`

func TestParseBytes(t *testing.T) {
	bank, err := ParseBytes([]byte(validBank))
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}

	qs := bank.ToQuestions()
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	if qs[0].Kind != model.QuestionKindMultipleChoice || len(qs[0].Options) != 3 {
		t.Errorf("first question = %+v", qs[0])
	}
	if qs[0].Prompt != "What is the time complexity of binary search?" {
		t.Errorf("prompt not trimmed: %q", qs[0].Prompt)
	}
	if qs[1].Options != nil {
		t.Errorf("text question kept options: %v", qs[1].Options)
	}
	for i, q := range qs {
		if q.OrderNum != i+1 {
			t.Errorf("question %d order = %d", i, q.OrderNum)
		}
	}
}

func TestParseBytesInvalid(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
	}{
		{
			name:      "empty file",
			input:     "",
			wantField: "questions",
		},
		{
			name:      "no questions",
			input:     "questions: []\n",
			wantField: "questions",
		},
		{
			name: "unknown kind",
			input: `questions:
  - kind: ESSAY
    prompt: Why?
    points: 1
`,
			wantField: "questions[0].kind",
		},
		{
			name: "blank prompt",
			input: `questions:
  - kind: TEXT
    prompt: "   "
    points: 1
`,
			wantField: "questions[0].prompt",
		},
		{
			name: "multiple choice without options",
			input: `questions:
  - kind: TEXT
    prompt: Fine
    points: 1
  - kind: MULTIPLE_CHOICE
    prompt: Pick one
    points: 1
`,
			wantField: "questions[1].options",
		},
		{
			name: "single option",
			input: `questions:
  - kind: MULTIPLE_CHOICE
    prompt: Pick one
    options: ["only"]
    points: 1
`,
			wantField: "questions[0].options",
		},
		{
			name: "zero points",
			input: `questions:
  - kind: CODE
    prompt: Write fizzbuzz
    points: 0
`,
			wantField: "questions[0].points",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.input))
			var ie *InvalidError
			if !errors.As(err, &ie) {
				t.Fatalf("error = %v, want *InvalidError", err)
			}
			if _, ok := ie.Fields[tt.wantField]; !ok {
				t.Errorf("fields = %v, want key %q", ie.Fields, tt.wantField)
			}
		})
	}
}

func TestParseBytesRejectsUnknownKeys(t *testing.T) {
	input := `questions:
  - kind: MULTIPLE_CHOICE
    prompt: Pick one
    option: ["a", "b"]
    points: 1
`
	_, err := ParseBytes([]byte(input))
	if err == nil {
		t.Fatal("expected an error for a misspelled key")
	}
	var ie *InvalidError
	if errors.As(err, &ie) {
		t.Fatalf("got validation error %v, want a decode error", ie)
	}
	if !strings.Contains(err.Error(), "option") {
		t.Errorf("error %q does not name the bad key", err)
	}
}

func TestInvalidErrorIsSorted(t *testing.T) {
	err := &InvalidError{Fields: map[string]string{"b": "two", "a": "one"}}
	want := "invalid question bank:\n  a: one\n  b: two"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
