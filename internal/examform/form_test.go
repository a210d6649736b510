package examform

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
)

type fakeCreator struct {
	calls []model.Exam
	err   error
}

func (c *fakeCreator) Create(ctx context.Context, exam *model.Exam) error {
	c.calls = append(c.calls, *exam)
	if c.err != nil {
		return c.err
	}
	exam.ID = uuid.New()
	return nil
}

type notification struct {
	severity Severity
	message  string
}

type recorder struct {
	got []notification
}

func (r *recorder) Notify(severity Severity, message string) {
	r.got = append(r.got, notification{severity, message})
}

func (r *recorder) last() notification {
	if len(r.got) == 0 {
		return notification{}
	}
	return r.got[len(r.got)-1]
}

func newForm(c Creator, n Notifier) *Form {
	f := New(c, n, 42, Messages{})
	f.Open()
	return f
}

func TestSubmitWithEmptyFieldNeverCallsCreator(t *testing.T) {
	testCases := []struct {
		name    string
		draft   Draft
		missing string
	}{
		{"title", Draft{Course: "CS101", Duration: "90", Points: "100"}, FieldTitle},
		{"course", Draft{Title: "Final", Course: "", Duration: "90", Points: "100"}, FieldCourse},
		{"duration", Draft{Title: "Final", Course: "CS101", Points: "100"}, FieldDuration},
		{"points", Draft{Title: "Final", Course: "CS101", Duration: "90"}, FieldPoints},
		{"whitespace only", Draft{Title: "  ", Course: "CS101", Duration: "90", Points: "100"}, FieldTitle},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creator := &fakeCreator{}
			notes := &recorder{}
			f := newForm(creator, notes)
			f.SetDraft(tc.draft)

			_, err := f.Submit(context.Background())

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := ve.Fields[tc.missing]; !ok {
				t.Errorf("expected field %q in %v", tc.missing, ve.Fields)
			}
			if len(creator.calls) != 0 {
				t.Errorf("creator called %d times, want 0", len(creator.calls))
			}
			if notes.last().severity != SeverityError {
				t.Errorf("expected error notification, got %+v", notes.last())
			}
			if !f.IsOpen() {
				t.Error("dialog should stay open")
			}
		})
	}
}

func TestSubmitRejectsNonNumericFields(t *testing.T) {
	creator := &fakeCreator{}
	f := newForm(creator, &recorder{})
	f.SetDraft(Draft{Title: "Final", Course: "CS101", Duration: "ninety", Points: "-5"})

	_, err := f.Submit(context.Background())

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 2 {
		t.Errorf("expected duration and points errors, got %v", ve.Fields)
	}
	if len(creator.calls) != 0 {
		t.Error("creator must not be called")
	}
}

func TestSubmitSuccess(t *testing.T) {
	creator := &fakeCreator{}
	notes := &recorder{}
	f := newForm(creator, notes)
	f.SetDraft(Draft{Title: "Data Structures Final", Course: "CS101", Duration: "90", Points: "100"})

	exam, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(creator.calls) != 1 {
		t.Fatalf("creator called %d times, want 1", len(creator.calls))
	}
	got := creator.calls[0]
	if got.DurationMinutes != 90 || got.TotalPoints != 100 {
		t.Errorf("parsed duration/points = %d/%d", got.DurationMinutes, got.TotalPoints)
	}
	if got.Status != model.ExamStatusScheduled {
		t.Errorf("status = %q, want scheduled", got.Status)
	}
	if got.TeacherID != 42 {
		t.Errorf("teacher id = %d, want 42", got.TeacherID)
	}
	if exam == nil || exam.ID == uuid.Nil {
		t.Error("expected created exam with ID")
	}

	if !f.Draft().IsEmpty() {
		t.Errorf("draft not reset: %+v", f.Draft())
	}
	if f.IsOpen() {
		t.Error("dialog should close on success")
	}
	if notes.last() != (notification{SeveritySuccess, DefaultMessages.Created}) {
		t.Errorf("unexpected notification %+v", notes.last())
	}
}

func TestSubmitCreatorFailureKeepsValues(t *testing.T) {
	boom := errors.New("connection refused")
	creator := &fakeCreator{err: boom}
	notes := &recorder{}
	f := newForm(creator, notes)
	draft := Draft{Title: "Final", Course: "CS101", Duration: "90", Points: "100"}
	f.SetDraft(draft)

	_, err := f.Submit(context.Background())
	if !errors.Is(err, ErrCreateFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped create failure, got %v", err)
	}

	if f.Draft() != draft {
		t.Errorf("draft changed: %+v", f.Draft())
	}
	if !f.IsOpen() {
		t.Error("dialog should stay open on failure")
	}
	if notes.last() != (notification{SeverityError, DefaultMessages.CreateFailed}) {
		t.Errorf("unexpected notification %+v", notes.last())
	}
	if len(creator.calls) != 1 {
		t.Errorf("creator called %d times, want 1", len(creator.calls))
	}
}

func TestSetField(t *testing.T) {
	f := New(&fakeCreator{}, nil, 1, Messages{})

	for field, value := range map[string]string{
		FieldTitle: "Algorithms Midterm", FieldCourse: "CS201", FieldDuration: "60", FieldPoints: "50",
	} {
		if err := f.Set(field, value); err != nil {
			t.Fatalf("Set(%s): %v", field, err)
		}
	}
	want := Draft{Title: "Algorithms Midterm", Course: "CS201", Duration: "60", Points: "50"}
	if f.Draft() != want {
		t.Errorf("draft = %+v, want %+v", f.Draft(), want)
	}
	if err := f.Set("room", "B1"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"points": "is required", "course": "is required"}}
	want := "validation failed: course is required, points is required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
