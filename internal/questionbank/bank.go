// Package questionbank loads exam questions from YAML files so teachers can
// keep question sets under version control and seed them in one go.
//
//	questions:
//	  - kind: MULTIPLE_CHOICE
//	    prompt: What is the time complexity of binary search?
//	    options: ["O(n)", "O(log n)", "O(n log n)"]
//	    points: 2
//	  - kind: TEXT
//	    prompt: Explain polymorphism.
//	    points: 5
package questionbank

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/validator"
	"gopkg.in/yaml.v3"
)

// Bank is the root of a question bank file.
type Bank struct {
	Questions []Item `yaml:"questions" validate:"required,min=1,max=500,dive"`
}

// Item is one question as written in the file.
type Item struct {
	Kind    string   `yaml:"kind" validate:"required,oneof=MULTIPLE_CHOICE CODE TEXT"`
	Prompt  string   `yaml:"prompt" validate:"required,nonblank,max=4000"`
	Options []string `yaml:"options" validate:"required_if=Kind MULTIPLE_CHOICE,omitempty,min=2,max=10,dive,required,max=500"`
	Points  int      `yaml:"points" validate:"required,min=1,max=1000"`
}

// InvalidError lists every rule a bank file breaks.
type InvalidError struct {
	Fields map[string]string
}

func (e *InvalidError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("invalid question bank:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, e.Fields[k])
	}
	return b.String()
}

// Parse decodes and validates a bank. Unknown keys are rejected so typos
// such as "option:" do not silently drop data.
func Parse(r io.Reader) (*Bank, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var bank Bank
	if err := dec.Decode(&bank); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InvalidError{Fields: map[string]string{"questions": "file is empty"}}
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if err := validator.New().Struct(&bank); err != nil {
		return nil, &InvalidError{Fields: validator.TranslateNamespaced(err)}
	}
	return &bank, nil
}

// ParseBytes is Parse over an in-memory file.
func ParseBytes(data []byte) (*Bank, error) {
	return Parse(bytes.NewReader(data))
}

// ToQuestions converts the bank into questions ordered as in the file.
// Options are dropped for kinds that do not use them.
func (b *Bank) ToQuestions() []model.Question {
	out := make([]model.Question, len(b.Questions))
	for i, it := range b.Questions {
		q := model.Question{
			Kind:     model.QuestionKind(it.Kind),
			Prompt:   strings.TrimSpace(it.Prompt),
			Points:   it.Points,
			OrderNum: i + 1,
		}
		if q.Kind == model.QuestionKindMultipleChoice {
			q.Options = it.Options
		}
		out[i] = q
	}
	return out
}
