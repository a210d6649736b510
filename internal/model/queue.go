package model

// AnswerRecord is queued on every answer change and upserted into
// student_answers by the autosave worker.
type AnswerRecord struct {
	StudentID  int    `json:"student_id"`
	ExamID     string `json:"exam_id"`
	QuestionID string `json:"q_id"`
	Answer     string `json:"answer"`
}

// ProctorEventRecord is queued by the proctor service and copied into
// proctor_events in batches.
type ProctorEventRecord struct {
	StudentID int              `json:"student_id"`
	ExamID    string           `json:"exam_id"`
	Kind      ProctorEventKind `json:"kind"`
	Detail    string           `json:"detail,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// SubmissionRecord is queued when a student submits and carries the final
// answer snapshot.
type SubmissionRecord struct {
	StudentID   int               `json:"student_id"`
	ExamID      string            `json:"exam_id"`
	Answers     map[string]string `json:"answers"`
	SubmittedAt int64             `json:"submitted_at"`
}
