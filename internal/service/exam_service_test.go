package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
)

func TestAppendAfter(t *testing.T) {
	examID := uuid.New()

	tests := []struct {
		name     string
		maxOrder int
		in       []int
		want     []int
	}{
		{"empty exam keeps numbering", 0, []int{1, 2, 3}, []int{1, 2, 3}},
		{"dense existing questions", 2, []int{1, 2}, []int{3, 4}},
		// Two questions numbered 1 and 10: a count of 2 would land the
		// import before 10.
		{"sparse existing questions", 10, []int{1, 2}, []int{11, 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := make([]model.Question, len(tt.in))
			for i, n := range tt.in {
				qs[i].OrderNum = n
			}
			appendAfter(qs, examID, tt.maxOrder)
			for i, q := range qs {
				if q.OrderNum != tt.want[i] {
					t.Errorf("question %d order_num = %d, want %d", i, q.OrderNum, tt.want[i])
				}
				if q.ExamID != examID {
					t.Errorf("question %d exam_id = %v, want %v", i, q.ExamID, examID)
				}
			}
		})
	}
}
