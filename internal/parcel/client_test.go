package parcel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const okResponse = `{"response":{"status":"OK","result":{"items":[{
	"id":"1171010100100010000",
	"address":{"parcel":"서울특별시 송파구 잠실동 1","road":"서울특별시 송파구 올림픽로 1"},
	"point":{"x":"127.0823","y":"37.5133"}
}]}}}`

func TestNewClient(t *testing.T) {
	if _, err := NewClient(""); !errors.Is(err, ErrNoKey) {
		t.Errorf("empty key err = %v, want ErrNoKey", err)
	}
	c, err := NewClient("key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected client, got nil")
	}
}

func TestValidPNU(t *testing.T) {
	tests := []struct {
		pnu  string
		want bool
	}{
		{"1171010100100010000", true},
		{"117101010010001000", false},
		{"11710101001000100000", false},
		{"117101010010001000a", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidPNU(tt.pnu); got != tt.want {
			t.Errorf("ValidPNU(%q) = %v, want %v", tt.pnu, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		statusCode int
		wantPNU    string
		wantErr    error
		anyErr     bool
	}{
		{
			name:       "successful lookup",
			response:   okResponse,
			statusCode: http.StatusOK,
			wantPNU:    "1171010100100010000",
		},
		{
			name:       "not found",
			response:   `{"response":{"status":"NOT_FOUND"}}`,
			statusCode: http.StatusOK,
			wantErr:    ErrNotFound,
		},
		{
			name:       "ok without items",
			response:   `{"response":{"status":"OK","result":{"items":[]}}}`,
			statusCode: http.StatusOK,
			wantErr:    ErrNotFound,
		},
		{
			name:       "malformed pnu",
			response:   `{"response":{"status":"OK","result":{"items":[{"id":"12-34","point":{"x":"1","y":"2"}}]}}}`,
			statusCode: http.StatusOK,
			wantErr:    ErrInvalidPNU,
		},
		{
			name:       "api error",
			response:   `{"response":{"status":"ERROR","error":{"code":"INVALID_KEY","text":"bad key"}}}`,
			statusCode: http.StatusOK,
			anyErr:     true,
		},
		{
			name:       "server error",
			response:   `{}`,
			statusCode: http.StatusInternalServerError,
			anyErr:     true,
		},
		{
			name:       "invalid json",
			response:   `not json`,
			statusCode: http.StatusOK,
			anyErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("category"); got != "parcel" {
					t.Errorf("category = %q, want parcel", got)
				}
				if got := r.URL.Query().Get("key"); got != "test-key" {
					t.Errorf("key = %q, want test-key", got)
				}
				w.WriteHeader(tt.statusCode)
				if _, err := fmt.Fprint(w, tt.response); err != nil {
					t.Errorf("writing response: %v", err)
				}
			}))
			defer server.Close()

			c := testClient(t, server.URL)
			res, err := c.Lookup(context.Background(), "잠실동 1")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if tt.anyErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if res.PNU != tt.wantPNU {
				t.Errorf("pnu = %q, want %q", res.PNU, tt.wantPNU)
			}
			if res.Address != "서울특별시 송파구 잠실동 1" {
				t.Errorf("address = %q", res.Address)
			}
			if res.Latitude != 37.5133 || res.Longitude != 127.0823 {
				t.Errorf("coords = (%v, %v), want (37.5133, 127.0823)", res.Latitude, res.Longitude)
			}
			if len(res.RawJSON) == 0 {
				t.Error("expected raw json")
			}
		})
	}
}

func TestLookupEmptyAddress(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:0")
	if _, err := c.Lookup(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	SetTestURL(c, url)
	return c
}
