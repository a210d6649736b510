package websocket

import (
	"time"

	"github.com/stemsi/examguard-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionJump     Action = "jump"
	ActionAnswer   Action = "answer"
	ActionSubmit   Action = "submit"
	ActionEvent    Action = "event"
	ActionPing     Action = "ping"

	// Camera socket only.
	ActionCameraStart Action = "start"
	ActionCameraStop  Action = "stop"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// JumpRequest moves straight to a question by zero-based index.
type JumpRequest struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
}

// AnswerRequest records the answer for one question. An empty answer
// clears it.
type AnswerRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Answer string `json:"ans"`
}

// ProctorEventRequest is sent by the client to report a proctoring event
// such as a tab switch.
type ProctorEventRequest struct {
	Action Action                 `json:"action"`
	Kind   model.ProctorEventKind `json:"kind"`
	Detail string                 `json:"detail"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventError     Event = "error"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
	EventCamera    Event = "camera"
)

// StateResponse describes the exam screen after every navigation or answer.
type StateResponse struct {
	Event         Event          `json:"event"`
	CurrentIndex  int            `json:"current_index"`
	Total         int            `json:"total"`
	Question      model.Question `json:"question"`
	Answer        string         `json:"answer"`
	Progress      []bool         `json:"progress"`
	AnsweredCount int            `json:"answered_count"`
	CanSubmit     bool           `json:"can_submit"`
	RemainingTime *float64       `json:"remaining_time,omitempty"`
}

// SubmittedResponse confirms the submission was recorded. The connection
// closes after it is sent.
type SubmittedResponse struct {
	Event       Event     `json:"event"`
	Answered    int       `json:"answered"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CameraResponse reports the capture session status: "active", "inactive"
// or "lost".
type CameraResponse struct {
	Event    Event  `json:"event"`
	Status   string `json:"status"`
	StreamID string `json:"stream_id,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
