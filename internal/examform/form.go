// Package examform is the state behind the teacher's "Create Exam" dialog:
// four text fields that are validated, converted and forwarded to the exam
// store exactly once per submit.
package examform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stemsi/examguard-backend/internal/model"
)

// ErrCreateFailed wraps any failure reported by the Creator.
var ErrCreateFailed = errors.New("could not create exam")

// Field names, as used in ValidationError.Fields.
const (
	FieldTitle    = "title"
	FieldCourse   = "course"
	FieldDuration = "duration"
	FieldPoints   = "points"
)

// Draft holds the raw field values as typed.
type Draft struct {
	Title    string `json:"title"`
	Course   string `json:"course"`
	Duration string `json:"duration"`
	Points   string `json:"points"`
}

// IsEmpty reports whether every field is blank.
func (d Draft) IsEmpty() bool {
	return d == Draft{}
}

// Creator persists a new exam. Implementations fill in the generated ID
// and timestamps.
type Creator interface {
	Create(ctx context.Context, exam *model.Exam) error
}

// Severity of a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notifier shows feedback to the user. Fire and forget.
type Notifier interface {
	Notify(severity Severity, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(severity Severity, message string)

// Notify calls f.
func (f NotifierFunc) Notify(severity Severity, message string) { f(severity, message) }

// Messages are the notification texts. Callers localize them.
type Messages struct {
	Created       string
	MissingFields string
	InvalidNumber string
	CreateFailed  string
}

// DefaultMessages are used when New is given a zero Messages.
var DefaultMessages = Messages{
	Created:       "Exam created successfully.",
	MissingFields: "Please fill in all fields.",
	InvalidNumber: "Duration and points must be positive whole numbers.",
	CreateFailed:  "Failed to create exam.",
}

// ValidationError lists the fields that blocked a submit.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + " " + e.Fields[name]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Form is owned by one user interaction and is not safe for concurrent use.
type Form struct {
	creator   Creator
	notifier  Notifier
	teacherID int
	messages  Messages

	draft Draft
	open  bool
}

// New creates a closed, empty form. teacherID is the authenticated owner
// stamped on every exam created through this form.
func New(creator Creator, notifier Notifier, teacherID int, messages Messages) *Form {
	if messages == (Messages{}) {
		messages = DefaultMessages
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Severity, string) {})
	}
	return &Form{
		creator:   creator,
		notifier:  notifier,
		teacherID: teacherID,
		messages:  messages,
	}
}

// Open shows the dialog.
func (f *Form) Open() { f.open = true }

// Close hides the dialog without touching the fields.
func (f *Form) Close() { f.open = false }

// IsOpen reports whether the dialog is shown.
func (f *Form) IsOpen() bool { return f.open }

// Draft returns the current field values.
func (f *Form) Draft() Draft { return f.draft }

// SetDraft replaces all four fields.
func (f *Form) SetDraft(d Draft) { f.draft = d }

// Set updates a single field by name.
func (f *Form) Set(field, value string) error {
	switch field {
	case FieldTitle:
		f.draft.Title = value
	case FieldCourse:
		f.draft.Course = value
	case FieldDuration:
		f.draft.Duration = value
	case FieldPoints:
		f.draft.Points = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// Submit validates the draft and forwards it to the Creator. Validation
// failures never reach the Creator. On success the fields are cleared and
// the dialog closes; on a Creator failure both are left as they were.
func (f *Form) Submit(ctx context.Context) (*model.Exam, error) {
	d := Draft{
		Title:    strings.TrimSpace(f.draft.Title),
		Course:   strings.TrimSpace(f.draft.Course),
		Duration: strings.TrimSpace(f.draft.Duration),
		Points:   strings.TrimSpace(f.draft.Points),
	}

	fields := missingFields(d)
	if len(fields) > 0 {
		f.notifier.Notify(SeverityError, f.messages.MissingFields)
		return nil, &ValidationError{Fields: fields}
	}

	duration, durErr := parsePositive(d.Duration)
	points, ptsErr := parsePositive(d.Points)
	if durErr != nil || ptsErr != nil {
		fields = make(map[string]string)
		if durErr != nil {
			fields[FieldDuration] = durErr.Error()
		}
		if ptsErr != nil {
			fields[FieldPoints] = ptsErr.Error()
		}
		f.notifier.Notify(SeverityError, f.messages.InvalidNumber)
		return nil, &ValidationError{Fields: fields}
	}

	exam := &model.Exam{
		Title:           d.Title,
		Course:          d.Course,
		DurationMinutes: duration,
		TotalPoints:     points,
		TeacherID:       f.teacherID,
		Status:          model.ExamStatusScheduled,
	}

	if err := f.creator.Create(ctx, exam); err != nil {
		f.notifier.Notify(SeverityError, f.messages.CreateFailed)
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	f.draft = Draft{}
	f.open = false
	f.notifier.Notify(SeveritySuccess, f.messages.Created)
	return exam, nil
}

func missingFields(d Draft) map[string]string {
	fields := make(map[string]string)
	if d.Title == "" {
		fields[FieldTitle] = "is required"
	}
	if d.Course == "" {
		fields[FieldCourse] = "is required"
	}
	if d.Duration == "" {
		fields[FieldDuration] = "is required"
	}
	if d.Points == "" {
		fields[FieldPoints] = "is required"
	}
	return fields
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("must be a whole number")
	}
	if n <= 0 {
		return 0, errors.New("must be greater than zero")
	}
	return n, nil
}
