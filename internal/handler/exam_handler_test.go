package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/examform"
	"github.com/stemsi/examguard-backend/internal/i18n"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
)

type fakeCreator struct {
	calls []model.Exam
	err   error
}

func (f *fakeCreator) Create(_ context.Context, exam *model.Exam) error {
	f.calls = append(f.calls, *exam)
	if f.err != nil {
		return f.err
	}
	exam.ID = uuid.New()
	return nil
}

type createExamEnvelope struct {
	Data struct {
		Exam          model.Exam     `json:"exam"`
		Notifications []Notification `json:"notifications"`
	} `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func newExamRouter(t *testing.T, creator examform.Creator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := i18n.Init("en", zerolog.Nop()); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	h := &ExamHandler{creator: creator, log: zerolog.Nop()}
	r := gin.New()
	r.Use(i18n.Middleware())
	r.POST("/exams", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeTeacher, UserID: 42})
	}, h.CreateExam)
	return r
}

func postExam(r http.Handler, body, lang string) (*httptest.ResponseRecorder, createExamEnvelope) {
	req := httptest.NewRequest(http.MethodPost, "/exams", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env createExamEnvelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestCreateExam(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		creatorErr error
		wantStatus int
		wantCode   response.ErrCode
		wantFields []string
		wantNote   string
		wantCalls  int
	}{
		{
			name:       "created as scheduled for caller",
			body:       `{"title":"Midterm","course":"CS101","duration":"90","points":100}`,
			wantStatus: http.StatusCreated,
			wantCalls:  1,
		},
		{
			name:       "blank fields never reach the store",
			body:       `{"title":"  ","course":"CS101","duration":"","points":"100"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrValidation,
			wantFields: []string{"title", "duration"},
			wantNote:   "Please fill in all fields.",
		},
		{
			name:       "non numeric duration",
			body:       `{"title":"Quiz","course":"MA201","duration":"ninety","points":"-5"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrValidation,
			wantFields: []string{"duration", "points"},
			wantNote:   "Duration and points must be positive whole numbers.",
		},
		{
			name:       "store failure is generic",
			body:       `{"title":"Final","course":"PH110","duration":"120","points":"50"}`,
			creatorErr: errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   response.ErrExamCreateFailed,
			wantNote:   "Could not create exam.",
			wantCalls:  1,
		},
		{
			name:       "malformed body",
			body:       `{"title":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   response.ErrInvalidPayload,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creator := &fakeCreator{err: tc.creatorErr}
			w, env := postExam(newExamRouter(t, creator), tc.body, "")

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if len(creator.calls) != tc.wantCalls {
				t.Fatalf("creator calls = %d, want %d", len(creator.calls), tc.wantCalls)
			}

			if tc.wantCode == "" {
				if env.Error != nil {
					t.Fatalf("unexpected error: %+v", env.Error)
				}
				got := creator.calls[0]
				if got.Status != model.ExamStatusScheduled || got.TeacherID != 42 {
					t.Fatalf("persisted %+v", got)
				}
				if got.DurationMinutes != 90 || got.TotalPoints != 100 {
					t.Fatalf("numbers not converted: %+v", got)
				}
				if len(env.Data.Notifications) != 1 || env.Data.Notifications[0].Severity != examform.SeveritySuccess {
					t.Fatalf("notifications = %+v", env.Data.Notifications)
				}
				if env.Data.Notifications[0].Message != "Exam created successfully." {
					t.Fatalf("message = %q", env.Data.Notifications[0].Message)
				}
				return
			}

			if env.Error == nil || env.Error.Code != tc.wantCode {
				t.Fatalf("error = %+v, want %s", env.Error, tc.wantCode)
			}
			for _, f := range tc.wantFields {
				if _, ok := env.Error.Fields[f]; !ok {
					t.Errorf("missing field %q in %v", f, env.Error.Fields)
				}
			}
			if tc.wantNote == "" {
				if len(env.Data.Notifications) != 0 {
					t.Errorf("notifications = %+v, want none", env.Data.Notifications)
				}
				return
			}
			notes := env.Data.Notifications
			if len(notes) != 1 || notes[0].Severity != examform.SeverityError || notes[0].Message != tc.wantNote {
				t.Errorf("notifications = %+v, want one error %q", notes, tc.wantNote)
			}
		})
	}
}

func TestCreateExamLocalizedFailure(t *testing.T) {
	creator := &fakeCreator{err: errors.New("timeout")}
	_, env := postExam(newExamRouter(t, creator), `{"title":"A","course":"B","duration":"1","points":"1"}`, "id")

	if env.Error == nil || env.Error.Message != "Ujian tidak dapat dibuat." {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestExamErrorStatus(t *testing.T) {
	testCases := []struct {
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{service.ErrExamNotFound, http.StatusNotFound, response.ErrNotFound},
		{service.ErrNotExamOwner, http.StatusForbidden, response.ErrNotExamOwner},
		{service.ErrNoQuestions, http.StatusBadRequest, response.ErrNoQuestions},
		{service.ErrExamNotScheduled, http.StatusConflict, response.ErrExamNotScheduled},
		{service.ErrExamNotActive, http.StatusConflict, response.ErrExamNotActive},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tc := range testCases {
		status, code := examErrorStatus(tc.err)
		if status != tc.wantStatus || code != tc.wantCode {
			t.Errorf("examErrorStatus(%v) = %d %s, want %d %s", tc.err, status, code, tc.wantStatus, tc.wantCode)
		}
	}
}
