package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestRateLimitByIP_AllowsUnderLimit verifies requests below the limit pass through
func TestRateLimitByIP_AllowsUnderLimit(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 10})(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}
}

// TestRateLimitByIP_Returns429OverLimit verifies the response once the limit is hit
func TestRateLimitByIP_Returns429OverLimit(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(okHandler())

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("first request failed with status %d", recorder.Code)
	}

	req = httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", recorder.Code)
	}

	if contentType := recorder.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	body := recorder.Body.String()
	if body != `{"error":"rate_limit_exceeded","message":"Too many requests"}` {
		t.Errorf("unexpected response body: %s", body)
	}
}

// TestRateLimitByIP_IsolatesClientBuckets verifies separate limits per source IP
func TestRateLimitByIP_IsolatesClientBuckets(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 3})(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "10.0.0.3:4000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Errorf("client A request %d failed", i+1)
		}
	}

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.3:4000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("client A should be limited, got status %d", recorder.Code)
	}

	req = httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.4:4000"
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("client B should have an independent limit, got status %d", recorder.Code)
	}
}

// TestDefaultLimits verifies the shipped limits for credential endpoints
func TestDefaultLimits(t *testing.T) {
	if got := DefaultLoginRateLimit().RequestsPerMinute; got != 10 {
		t.Errorf("login limit: got %d, want 10", got)
	}
	if got := DefaultResendRateLimit().RequestsPerMinute; got != 3 {
		t.Errorf("resend limit: got %d, want 3", got)
	}
}
