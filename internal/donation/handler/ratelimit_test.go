package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/donation/handler"
	"go.uber.org/zap"
)

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.Use(handler.RateLimiter(ctx, 1, 1))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	get := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := get("10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := get("10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After: %q", w.Header().Get("Retry-After"))
	}
	if w := get("10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("other client throttled: %d", w.Code)
	}
}

func TestRouteRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	g := r.Group("/auth", handler.RouteRateLimiter(ctx, 2))
	g.POST("/send-otp", func(c *gin.Context) { c.Status(http.StatusOK) })
	g.POST("/verify-otp", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "10.0.0.9:4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := call(http.MethodPost, "/auth/send-otp"); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i+1, w.Code)
		}
	}
	w := call(http.MethodPost, "/auth/send-otp")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third send: expected 429, got %d", w.Code)
	}
	wait, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || wait < 1 || wait > 30 {
		t.Errorf("Retry-After: %q", w.Header().Get("Retry-After"))
	}
	if !strings.Contains(w.Body.String(), `"code":"rate_limited"`) {
		t.Errorf("body: %s", w.Body.String())
	}

	if w := call(http.MethodPost, "/auth/verify-otp"); w.Code != http.StatusOK {
		t.Errorf("separate route shares the budget: %d", w.Code)
	}
	if w := call(http.MethodGet, "/open"); w.Code != http.StatusOK {
		t.Errorf("unguarded route throttled: %d", w.Code)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.SecurityHeaders(), handler.BodyLimit(8), handler.PrometheusMiddleware(), handler.RequestLogger(zap.NewNop()))
	r.POST("/echo", func(c *gin.Context) {
		var v map[string]any
		if err := c.ShouldBindJSON(&v); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", handler.MetricsHandler())

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"key":"much longer than eight bytes"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: %d", w.Code)
	}
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("security headers: %v", w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "donation_requests_total") {
		t.Error("donation_requests_total not exported")
	}
}
