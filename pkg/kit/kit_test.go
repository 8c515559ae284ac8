package kit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestIPRateLimiter_SlidingWindow(t *testing.T) {
	l := NewIPRateLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	hit := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := hit("10.0.0.1:1234"); rec.Code != http.StatusNoContent {
			t.Fatalf("hit %d: status=%d", i, rec.Code)
		}
	}

	rec := hit("10.0.0.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After=%q", got)
	}

	if rec := hit("10.0.0.2:1234"); rec.Code != http.StatusNoContent {
		t.Fatalf("other ip limited: status=%d", rec.Code)
	}

	now = now.Add(time.Minute + time.Second)
	if rec := hit("10.0.0.1:1234"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected window to slide, status=%d", rec.Code)
	}
}

func TestIPRateLimiter_Disabled(t *testing.T) {
	l := NewIPRateLimiter(0, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d", rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	if got := ClientIP(req); got != "192.0.2.10" {
		t.Fatalf("got %q", got)
	}

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Quantity json.Number `json:"quantity"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "ok", body: `{"quantity": 2}`},
		{name: "unknown field", body: `{"quantity": 2, "price": 1}`, wantErr: true},
		{name: "trailing object", body: `{"quantity": 2}{}`, wantErr: true},
		{name: "not json", body: `quantity=2`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if tc.wantErr != (err != nil) {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
			if !tc.wantErr && p.Quantity.String() != "2" {
				t.Fatalf("quantity=%q", p.Quantity)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity": 1} {"quantity": 2}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &payload{}); !errors.Is(err, ErrExtraJSON) {
		t.Fatalf("expected ErrExtraJSON, got %v", err)
	}
}

func TestWriteError_Shape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, "not found", map[string]any{"id": "p9"})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "not found" {
		t.Fatalf("error=%q", body.Error)
	}
}
