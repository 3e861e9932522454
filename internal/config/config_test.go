package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.SMTP.Port != "587" {
		t.Errorf("smtp port = %q, want 587", cfg.SMTP.Port)
	}
	if cfg.CleanupInterval != time.Hour {
		t.Errorf("cleanup interval = %v, want 1h", cfg.CleanupInterval)
	}
	if cfg.Kakao.Enabled() || cfg.Naver.Enabled() {
		t.Error("expected providers disabled by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JOHAP_PORT", "9090")
	t.Setenv("JOHAP_BASE_URL", "https://johap.example.com/")
	t.Setenv("JOHAP_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("JOHAP_STATE_SECRET", "s3cret")
	t.Setenv("JOHAP_KAKAO_CLIENT_ID", "kakao-id")
	t.Setenv("JOHAP_NAVER_CLIENT_ID", "naver-id")
	t.Setenv("JOHAP_NAVER_CLIENT_SECRET", "naver-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.BaseURL != "https://johap.example.com" {
		t.Errorf("base url = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if !cfg.SecureCookies() {
		t.Error("expected secure cookies for https base url")
	}
	if cfg.Auth.AdminEmail != "admin@example.com" {
		t.Errorf("admin email = %q", cfg.Auth.AdminEmail)
	}
	if cfg.Kakao.ClientID != "kakao-id" {
		t.Errorf("kakao client id = %q", cfg.Kakao.ClientID)
	}
	if cfg.Naver.ClientSecret != "naver-secret" {
		t.Errorf("naver secret = %q", cfg.Naver.ClientSecret)
	}
}

func TestLoadDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("JOHAP_DEV_MODE=true\nJOHAP_VWORLD_KEY=vw-key\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// Ensure the dotenv values do not leak into other tests.
	t.Setenv("JOHAP_DEV_MODE", "")
	t.Setenv("JOHAP_VWORLD_KEY", "")
	os.Unsetenv("JOHAP_DEV_MODE")
	os.Unsetenv("JOHAP_VWORLD_KEY")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.DevMode {
		t.Error("expected dev mode from dotenv file")
	}
	if cfg.VWorldKey != "vw-key" {
		t.Errorf("vworld key = %q", cfg.VWorldKey)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"relative base url", map[string]string{"JOHAP_BASE_URL": "localhost"}},
		{"provider without state secret", map[string]string{"JOHAP_KAKAO_CLIENT_ID": "id"}},
		{"zero cleanup interval", map[string]string{"JOHAP_CLEANUP_INTERVAL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
