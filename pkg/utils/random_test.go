package utils

import (
	"regexp"
	"testing"
)

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(24)
	if err != nil {
		t.Fatalf("GenerateRandomString: %v", err)
	}
	if len(s) != 24 {
		t.Fatalf("len = %d, want 24", len(s))
	}
	if !regexp.MustCompile(`^[a-z0-9]+$`).MatchString(s) {
		t.Errorf("unexpected charset: %q", s)
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(32)
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	b, _ := GenerateSecret(32)
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	if a == b {
		t.Error("two secrets should differ")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Athens Shoes", "athens-shoes"},
		{"  Kafe & Tsai!! ", "kafe-tsai"},
		{"shop_01", "shop-01"},
		{"***", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
