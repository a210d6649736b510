package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	testCases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"https://a.example", []string{"https://a.example"}},
		{" https://a.example , ,https://b.example ", []string{"https://a.example", "https://b.example"}},
	}

	for _, tc := range testCases {
		if got := parseOrigins(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseOrigins(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CAMERA_LEASE_TTL_SECONDS", "12")
	t.Setenv("MAX_DB_CONNS", "not-a-number")

	cfg := Load()

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.CameraLeaseTTL != 12*time.Second {
		t.Errorf("CameraLeaseTTL = %v", cfg.CameraLeaseTTL)
	}
	if cfg.MaxDBConns != 16 {
		t.Errorf("MaxDBConns = %d, want fallback 16", cfg.MaxDBConns)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.StudentAnswersKey("e1", 7); got != "student:7:exam:e1:answers" {
		t.Errorf("StudentAnswersKey = %q", got)
	}
	if got := CacheKey.StudentCameraLeaseKey("e1", 7); got != "proctor:student:7:exam:e1:camera" {
		t.Errorf("StudentCameraLeaseKey = %q", got)
	}
}
