package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/navigator"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
	ws "github.com/stemsi/examguard-backend/internal/websocket"
)

// attemptStore persists a student's position and answers.
type attemptStore interface {
	SaveIndex(ctx context.Context, examID uuid.UUID, studentID, index int) error
	SaveAnswer(ctx context.Context, examID uuid.UUID, studentID int, questionID uuid.UUID, value string) error
	SubmitHandler(examID uuid.UUID, studentID int) navigator.SubmitHandler
}

// eventReporter forwards proctoring events and progress to monitors.
type eventReporter interface {
	Report(ctx context.Context, examID uuid.UUID, studentID int, kind model.ProctorEventKind, detail string) error
	PublishProgress(ctx context.Context, examID uuid.UUID, update service.ProgressUpdate)
}

// streamError is a reply the client can act on.
type streamError struct {
	code response.ErrCode
	err  error
}

func (e *streamError) Error() string { return string(e.code) + ": " + e.err.Error() }
func (e *streamError) Unwrap() error { return e.err }

// examStream drives one student's navigator from WebSocket actions.
type examStream struct {
	examID    uuid.UUID
	studentID int
	nav       *navigator.Navigator
	store     attemptStore
	reporter  eventReporter
	log       zerolog.Logger
}

// handle applies one client message. It returns the reply to send (nil for
// none) and whether the connection should close afterwards.
func (s *examStream) handle(ctx context.Context, raw []byte) (interface{}, bool, error) {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, &streamError{code: response.ErrInvalidPayload, err: err}
	}

	reply, done, err := s.dispatch(ctx, env.Action, raw)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.NavigatorActions.WithLabelValues(string(env.Action), status).Inc()
	return reply, done, err
}

func (s *examStream) dispatch(ctx context.Context, action ws.Action, raw []byte) (interface{}, bool, error) {
	switch action {
	case ws.ActionNext:
		return s.move(ctx, s.nav.Next)

	case ws.ActionPrevious:
		return s.move(ctx, s.nav.Previous)

	case ws.ActionJump:
		var req ws.JumpRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, false, &streamError{code: response.ErrInvalidPayload, err: err}
		}
		return s.move(ctx, func() error { return s.nav.JumpTo(req.Index) })

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, false, &streamError{code: response.ErrInvalidPayload, err: err}
		}
		return s.answer(ctx, &req)

	case ws.ActionSubmit:
		return s.submit(ctx)

	case ws.ActionEvent:
		var req ws.ProctorEventRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, false, &streamError{code: response.ErrInvalidPayload, err: err}
		}
		// Camera events come from the camera socket, submissions from submit.
		if req.Kind != model.ProctorEventTabSwitch {
			return nil, false, &streamError{code: response.ErrInvalidPayload, err: errors.New("unsupported event kind")}
		}
		if err := s.reporter.Report(ctx, s.examID, s.studentID, req.Kind, req.Detail); err != nil {
			return nil, false, err
		}
		return nil, false, nil

	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}, false, nil

	default:
		return nil, false, &streamError{code: response.ErrInvalidPayload, err: errors.New("unknown action: " + string(action))}
	}
}

func (s *examStream) move(ctx context.Context, step func() error) (interface{}, bool, error) {
	before := s.nav.Index()
	if err := step(); err != nil {
		return nil, false, err
	}
	if s.nav.Index() != before {
		if err := s.store.SaveIndex(ctx, s.examID, s.studentID, s.nav.Index()); err != nil {
			s.log.Warn().Err(err).Msg("Save index failed")
		}
	}
	return s.state(nil), false, nil
}

func (s *examStream) answer(ctx context.Context, req *ws.AnswerRequest) (interface{}, bool, error) {
	// Reject malformed IDs before they reach a Redis key.
	qID, err := uuid.Parse(req.QID)
	if err != nil {
		return nil, false, &streamError{code: response.ErrInvalidPayload, err: err}
	}

	prev, _ := s.nav.Answer(qID)
	if err := s.nav.SetAnswer(qID, req.Answer); err != nil {
		return nil, false, err
	}
	if err := s.store.SaveAnswer(ctx, s.examID, s.studentID, qID, req.Answer); err != nil {
		_ = s.nav.SetAnswer(qID, prev)
		return nil, false, err
	}

	s.reporter.PublishProgress(ctx, s.examID, service.ProgressUpdate{
		StudentID: s.studentID,
		Answered:  s.nav.AnsweredCount(),
		Total:     s.nav.Len(),
	})
	return s.state(nil), false, nil
}

func (s *examStream) submit(ctx context.Context) (interface{}, bool, error) {
	sub, err := s.nav.Submit(ctx, s.store.SubmitHandler(s.examID, s.studentID))
	if err != nil {
		return nil, false, err
	}
	return ws.SubmittedResponse{
		Event:       ws.EventSubmitted,
		Answered:    s.nav.AnsweredCount(),
		Total:       s.nav.Len(),
		SubmittedAt: sub.SubmittedAt,
	}, true, nil
}

func (s *examStream) state(remaining *float64) ws.StateResponse {
	q := s.nav.Current()
	answer, _ := s.nav.Answer(q.ID)
	return ws.StateResponse{
		Event:         ws.EventState,
		CurrentIndex:  s.nav.Index(),
		Total:         s.nav.Len(),
		Question:      q,
		Answer:        answer,
		Progress:      s.nav.Progress(),
		AnsweredCount: s.nav.AnsweredCount(),
		CanSubmit:     s.nav.CanSubmit(),
		RemainingTime: remaining,
	}
}

// streamErrorCode maps a stream failure to the code sent to the client.
func streamErrorCode(err error) response.ErrCode {
	var se *streamError
	switch {
	case errors.As(err, &se):
		return se.code
	case errors.Is(err, navigator.ErrIndexOutOfRange):
		return response.ErrIndexOutOfRange
	case errors.Is(err, navigator.ErrUnknownQuestion):
		return response.ErrUnknownQuestion
	case errors.Is(err, navigator.ErrNotOnLastQuestion):
		return response.ErrNotOnLastQuestion
	case errors.Is(err, navigator.ErrSubmitted), errors.Is(err, service.ErrAlreadySubmitted):
		return response.ErrAlreadySubmitted
	default:
		return response.ErrInternal
	}
}
