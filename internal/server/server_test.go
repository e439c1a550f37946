package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/spacectl/internal/auth"
	"github.com/danmuck/spacectl/internal/controller"
	"github.com/danmuck/spacectl/internal/credential"
	"github.com/danmuck/spacectl/internal/game/gametest"
	"github.com/danmuck/spacectl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

type staticStats []controller.Stats

func (s staticStats) Snapshot() []controller.Stats { return s }

func newTestAdmin(t *testing.T, validator auth.Validator) (*Admin, *credential.Cell) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cell := credential.NewCell()
	stats := staticStats{{Name: "ship", Kind: "Ship", Running: true, Reconciles: 3}}
	return New(Config{ListenAddr: "127.0.0.1:0", Validator: validator, Version: "test"}, stats, cell), cell
}

func TestHealthIsOpen(t *testing.T) {
	testlog.Start(t)

	admin, _ := newTestAdmin(t, auth.StaticToken{Token: "secret"})
	rec := httptest.NewRecorder()
	admin.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestStatusRequiresBearerToken(t *testing.T) {
	testlog.Start(t)

	admin, _ := newTestAdmin(t, auth.StaticToken{Token: "secret"})

	rec := httptest.NewRecorder()
	admin.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	admin.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	admin.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}
}

func TestStatusReportsControllersAndCredential(t *testing.T) {
	testlog.Start(t)

	admin, cell := newTestAdmin(t, nil)
	fake := gametest.NewFake()
	cell.Publish("alpha", fake.Authenticate("token"))

	rec := httptest.NewRecorder()
	admin.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Controllers []controller.Stats  `json:"controllers"`
		Credential  credential.Snapshot `json:"credential"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(body.Controllers) != 1 || body.Controllers[0].Name != "ship" || body.Controllers[0].Reconciles != 3 {
		t.Fatalf("unexpected controllers: %+v", body.Controllers)
	}
	if !body.Credential.Published || body.Credential.Agent != "alpha" {
		t.Fatalf("unexpected credential snapshot: %+v", body.Credential)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	gin.SetMode(gin.TestMode)
	admin := New(Config{ListenAddr: addr}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- admin.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("admin server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
