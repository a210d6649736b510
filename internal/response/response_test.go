package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/i18n"
)

func TestFailLocalizesMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if err := i18n.Init("en", zerolog.Nop()); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	r := gin.New()
	r.Use(RequestIDMiddleware(), i18n.Middleware())
	r.GET("/", func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"title": "required"})
	})

	testCases := []struct {
		lang string
		want string
	}{
		{"en", "Validation failed. Please check your input."},
		{"id", "Validasi gagal. Silakan periksa masukan Anda."},
	}

	for _, tc := range testCases {
		t.Run(tc.lang, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Language", tc.lang)
			req.Header.Set("X-Request-ID", "req-1")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == nil || body.Error.Message != tc.want {
				t.Errorf("error = %+v, want message %q", body.Error, tc.want)
			}
			if body.Error.Fields["title"] != "required" {
				t.Errorf("fields = %v", body.Error.Fields)
			}
			if body.Metadata.RequestID != "req-1" {
				t.Errorf("request id = %q", body.Metadata.RequestID)
			}
		})
	}
}
