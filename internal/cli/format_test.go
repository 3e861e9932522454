package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/johap/internal/auth"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected string
	}{
		{"zero", 0, "0"},
		{"small", 999, "999"},
		{"thousands", 250000, "250,000"},
		{"millions", 1000000, "1,000,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatCount(tt.n)
			if result != tt.expected {
				t.Errorf("formatCount(%d) = %q, want %q", tt.n, result, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world!", 8, "hello..."},
		{"hangul", "서울특별시 용산구 한강로", 8, "서울특별시..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncate(tt.input, tt.max)
			if result != tt.expected {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, result, tt.expected)
			}
		})
	}
}

func TestTokenState(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	one := 1

	tests := []struct {
		name  string
		token auth.AccessToken
		want  string
	}{
		{"open", auth.AccessToken{}, "active"},
		{"future expiry", auth.AccessToken{ExpiresAt: &future}, "active"},
		{"expired", auth.AccessToken{ExpiresAt: &past}, "expired"},
		{"revoked", auth.AccessToken{RevokedAt: &past, ExpiresAt: &past}, "revoked"},
		{"redeemed", auth.AccessToken{MaxUses: &one, UseCount: 1}, "redeemed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenState(&tt.token, now); got != tt.want {
				t.Errorf("tokenState = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatUses(t *testing.T) {
	ten := 10
	if got := formatUses(&auth.AccessToken{UseCount: 3, MaxUses: &ten}); got != "3/10" {
		t.Errorf("formatUses = %q, want 3/10", got)
	}
	if got := formatUses(&auth.AccessToken{UseCount: 1200}); got != "1,200" {
		t.Errorf("formatUses = %q, want 1,200", got)
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	err := table(&buf, []string{"ID", "이름"}, [][]string{{"1", "홍길동"}})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q, want header, separator and one row", lines)
	}
	if !strings.HasPrefix(lines[1], "--") || !strings.Contains(lines[2], "홍길동") {
		t.Errorf("unexpected table:\n%s", buf.String())
	}
}
