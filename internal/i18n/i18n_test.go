package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en", zerolog.Nop()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	testCases := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "EXAM_CREATE_FAILED", "Could not create exam."},
		{"id", "EXAM_CREATE_FAILED", "Ujian tidak dapat dibuat."},
		{"en", "ExamCreated", "Exam created successfully."},
		{"fr", "NOT_FOUND", "Resource not found."},
	}

	for _, tc := range testCases {
		t.Run(tc.lang+"/"+tc.id, func(t *testing.T) {
			ctx := initLang(t, tc.lang)
			if got := T(ctx, tc.id); got != tc.want {
				t.Errorf("T(%s) = %q, want %q", tc.id, got, tc.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsAnswered", 1); got != "1 question answered." {
		t.Errorf("Tp(1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsAnswered", 4); got != "4 questions answered." {
		t.Errorf("Tp(4) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q", got)
	}
}

func TestMiddlewareUsesAcceptLanguage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if err := Init("en", zerolog.Nop()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, T(c.Request.Context(), "NOT_FOUND"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en;q=0.5")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Body.String(); got != "Sumber daya tidak ditemukan." {
		t.Errorf("body = %q", got)
	}
}
