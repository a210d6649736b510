// Package navigator holds the client-side exam screen state of one student:
// which question is on screen and what has been answered so far.
package navigator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
)

var (
	ErrNoQuestions       = errors.New("exam has no questions")
	ErrIndexOutOfRange   = errors.New("question index out of range")
	ErrUnknownQuestion   = errors.New("question does not belong to this exam")
	ErrNotOnLastQuestion = errors.New("submit is only available on the last question")
	ErrSubmitted         = errors.New("exam already submitted")
)

// Submission is the answer snapshot handed over when the student submits.
type Submission struct {
	Answers     map[uuid.UUID]string
	SubmittedAt time.Time
}

// SubmitHandler decides what happens after the student submits. The
// navigator only guarantees it is called once per successful submit.
type SubmitHandler interface {
	HandleSubmit(ctx context.Context, sub Submission) error
}

// SubmitHandlerFunc adapts a plain function to SubmitHandler.
type SubmitHandlerFunc func(ctx context.Context, sub Submission) error

// HandleSubmit calls f.
func (f SubmitHandlerFunc) HandleSubmit(ctx context.Context, sub Submission) error {
	return f(ctx, sub)
}

// Navigator is not safe for concurrent use; one student connection owns it.
type Navigator struct {
	questions []model.Question
	position  map[uuid.UUID]int
	current   int
	answers   map[uuid.UUID]string
	submitted bool
	now       func() time.Time
}

// New builds a navigator positioned on the first question.
func New(questions []model.Question) (*Navigator, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	qs := make([]model.Question, len(questions))
	copy(qs, questions)

	position := make(map[uuid.UUID]int, len(qs))
	for i, q := range qs {
		position[q.ID] = i
	}

	return &Navigator{
		questions: qs,
		position:  position,
		answers:   make(map[uuid.UUID]string),
		now:       time.Now,
	}, nil
}

// Restore reloads state saved by an earlier connection. A stale index is
// clamped into range and answers for questions no longer in the exam are
// dropped.
func (n *Navigator) Restore(current int, answers map[uuid.UUID]string) {
	n.current = clamp(current, 0, len(n.questions)-1)
	for id, v := range answers {
		if _, ok := n.position[id]; ok {
			n.answers[id] = v
		}
	}
}

// Len returns the number of questions.
func (n *Navigator) Len() int { return len(n.questions) }

// Index returns the current question index.
func (n *Navigator) Index() int { return n.current }

// Current returns the question on screen.
func (n *Navigator) Current() model.Question { return n.questions[n.current] }

// Questions returns the ordered question list.
func (n *Navigator) Questions() []model.Question {
	out := make([]model.Question, len(n.questions))
	copy(out, n.questions)
	return out
}

// Next moves forward one question. It is a no-op on the last question.
func (n *Navigator) Next() error {
	if n.submitted {
		return ErrSubmitted
	}
	if n.current < len(n.questions)-1 {
		n.current++
	}
	return nil
}

// Previous moves back one question. It is a no-op on the first question.
func (n *Navigator) Previous() error {
	if n.submitted {
		return ErrSubmitted
	}
	if n.current > 0 {
		n.current--
	}
	return nil
}

// JumpTo moves directly to question i. Out-of-range indices are rejected
// and leave the position unchanged.
func (n *Navigator) JumpTo(i int) error {
	if n.submitted {
		return ErrSubmitted
	}
	if i < 0 || i >= len(n.questions) {
		return ErrIndexOutOfRange
	}
	n.current = i
	return nil
}

// SetAnswer records the student's answer, replacing any earlier one.
func (n *Navigator) SetAnswer(questionID uuid.UUID, value string) error {
	if n.submitted {
		return ErrSubmitted
	}
	if _, ok := n.position[questionID]; !ok {
		return ErrUnknownQuestion
	}
	n.answers[questionID] = value
	return nil
}

// Answer returns the stored answer for a question.
func (n *Navigator) Answer(questionID uuid.UUID) (string, bool) {
	v, ok := n.answers[questionID]
	return v, ok
}

// IsAnswered reports whether a non-empty answer exists for the question.
func (n *Navigator) IsAnswered(questionID uuid.UUID) bool {
	return n.answers[questionID] != ""
}

// Answers returns a copy of the answer map.
func (n *Navigator) Answers() map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(n.answers))
	for k, v := range n.answers {
		out[k] = v
	}
	return out
}

// Progress returns the answered flag of every question, in order.
func (n *Navigator) Progress() []bool {
	out := make([]bool, len(n.questions))
	for i, q := range n.questions {
		out[i] = n.IsAnswered(q.ID)
	}
	return out
}

// AnsweredCount returns how many questions have a non-empty answer.
func (n *Navigator) AnsweredCount() int {
	count := 0
	for _, q := range n.questions {
		if n.IsAnswered(q.ID) {
			count++
		}
	}
	return count
}

// CanSubmit reports whether the submit action is offered right now.
func (n *Navigator) CanSubmit() bool {
	return !n.submitted && n.current == len(n.questions)-1
}

// Submitted reports whether the navigator reached its terminal state.
func (n *Navigator) Submitted() bool { return n.submitted }

// Submit hands the answers to h. The navigator only becomes terminal when
// h succeeds, so a failed hand-off can be retried.
func (n *Navigator) Submit(ctx context.Context, h SubmitHandler) (*Submission, error) {
	if n.submitted {
		return nil, ErrSubmitted
	}
	if n.current != len(n.questions)-1 {
		return nil, ErrNotOnLastQuestion
	}

	sub := Submission{
		Answers:     n.Answers(),
		SubmittedAt: n.now(),
	}
	if h != nil {
		if err := h.HandleSubmit(ctx, sub); err != nil {
			return nil, err
		}
	}

	n.submitted = true
	return &sub, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
