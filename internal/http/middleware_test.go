package http

import (
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"

	"gearbook/app/internal/db"
)

func TestClientIPFromRequest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "forwarded header wins", forwarded: "10.0.0.1, 10.0.0.2", remoteAddr: "192.0.2.1:1234", want: "10.0.0.1"},
		{name: "real ip fallback", realIP: "10.0.0.3", remoteAddr: "192.0.2.1:1234", want: "10.0.0.3"},
		{name: "remote addr host", remoteAddr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(stdhttp.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}

			if got := clientIPFromRequest(req); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRateLimitedRequestGetsTooManyRequests(t *testing.T) {
	t.Parallel()

	database, err := db.Open(db.Options{
		Path:   filepath.Join(t.TempDir(), "gearbook.db"),
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(database)
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv, err := NewServer(Options{
		WikiService: &stubWikiService{},
		Database:    database,
		Logger:      logger,
		RateLimiter: RateLimiterSettings{
			RequestsPerSecond: 0.5,
			Burst:             1,
			ClientTTL:         time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("constructing server: %v", err)
	}

	first := httptest.NewRecorder()
	srv.ServeHTTP(first, httptest.NewRequest(stdhttp.MethodGet, "/healthz", nil))
	if first.Code != stdhttp.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	srv.ServeHTTP(second, httptest.NewRequest(stdhttp.MethodGet, "/healthz", nil))
	if second.Code != stdhttp.StatusTooManyRequests {
		t.Fatalf("expected second request to be limited, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After header, got %q", second.Header().Get("Retry-After"))
	}
	if !strings.Contains(second.Body.String(), "too quickly") {
		t.Fatalf("expected rate limit message in body, got: %s", second.Body.String())
	}
}
