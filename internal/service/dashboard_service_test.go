package service

import "testing"

func TestCleanSessionRate(t *testing.T) {
	tests := []struct {
		name         string
		clean, total int
		want         float64
	}{
		{"no sessions", 0, 0, 0},
		{"all clean", 4, 4, 100},
		{"none clean", 0, 3, 0},
		{"one of three", 1, 3, 33.3},
		{"two of three", 2, 3, 66.7},
		{"clean above total is capped", 5, 4, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanSessionRate(tt.clean, tt.total); got != tt.want {
				t.Errorf("cleanSessionRate(%d, %d) = %v, want %v", tt.clean, tt.total, got, tt.want)
			}
		})
	}
}
