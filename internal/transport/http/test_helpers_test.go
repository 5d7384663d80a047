package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Will-23-K/chatsphere/internal/auth"
	"github.com/Will-23-K/chatsphere/internal/config"
	"github.com/Will-23-K/chatsphere/internal/core"
	"github.com/Will-23-K/chatsphere/internal/files"
	"github.com/Will-23-K/chatsphere/internal/log"
	"github.com/Will-23-K/chatsphere/internal/store/sqlite"
)

type testEnv struct {
	ts   *httptest.Server
	svc  *core.Service
	auth *auth.Service
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := log.Nop()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	fileService, err := files.NewService(t.TempDir(), "/uploads", 1<<20)
	if err != nil {
		t.Fatalf("failed to create file service: %v", err)
	}

	svc := core.NewService(st, logger, core.Options{HistoryLimit: 100})

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second

	server := NewServer(svc, authService, fileService, &cfg, logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, svc: svc, auth: authService}
}

func registerTestUser(t *testing.T, env *testEnv, username string) string {
	t.Helper()

	token, err := env.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return token
}
