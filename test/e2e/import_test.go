//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/service"
)

// TestImportAppendsAfterSparseOrder adds a question numbered 10 over HTTP,
// imports a two-question bank the way examctl seed-questions does and checks
// the imported questions sort after it.
func TestImportAppendsAfterSparseOrder(t *testing.T) {
	ctx := context.Background()

	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	expect(t, "POST", "/api/v1/auth/teacher/login", map[string]string{
		"email": teacherEmail, "password": teacherPass,
	}, "", http.StatusOK, &login)
	token := login.Data.Token

	var created struct {
		Data struct {
			Exam model.Exam `json:"exam"`
		} `json:"data"`
	}
	expect(t, "POST", "/api/v1/teacher/exams", map[string]any{
		"title": "Import Order", "course": "CS102", "duration": 30, "points": 10,
	}, token, http.StatusCreated, &created)
	id := created.Data.Exam.ID

	expect(t, "POST", "/api/v1/teacher/exams/"+id.String()+"/questions", model.AddQuestionRequest{
		Kind: "TEXT", Prompt: "Placed tenth.", Points: 2, OrderNum: 10,
	}, token, http.StatusCreated, nil)

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	var teacherID int
	if err := pool.QueryRow(ctx, `SELECT id FROM teachers WHERE email = $1`, teacherEmail).Scan(&teacherID); err != nil {
		t.Fatalf("teacher id: %v", err)
	}

	questionRepo := repository.NewQuestionRepository(pool)
	exams := service.NewExamService(repository.NewExamRepository(pool), questionRepo, nil, zerolog.Nop())

	imported := []model.Question{
		{Kind: model.QuestionKindText, Prompt: "Imported first.", Points: 4, OrderNum: 1},
		{Kind: model.QuestionKindText, Prompt: "Imported second.", Points: 4, OrderNum: 2},
	}
	if err := exams.ImportQuestions(ctx, id, teacherID, imported); err != nil {
		t.Fatalf("ImportQuestions: %v", err)
	}

	got, err := questionRepo.ListByExam(ctx, id)
	if err != nil {
		t.Fatalf("ListByExam: %v", err)
	}
	want := []struct {
		prompt string
		order  int
	}{
		{"Placed tenth.", 10},
		{"Imported first.", 11},
		{"Imported second.", 12},
	}
	if len(got) != len(want) {
		t.Fatalf("exam has %d questions, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Prompt != w.prompt || got[i].OrderNum != w.order {
			t.Errorf("question %d = (%q, %d), want (%q, %d)", i, got[i].Prompt, got[i].OrderNum, w.prompt, w.order)
		}
	}
}
