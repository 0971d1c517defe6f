package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/autoclaim-backend/internal/config"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/http/handlers"
	"github.com/ignatzorin/autoclaim-backend/internal/logger"
	"github.com/ignatzorin/autoclaim-backend/internal/usecase/claim"
	"github.com/ignatzorin/autoclaim-backend/internal/ws"
)

type tokenRoles map[string]string

func (t tokenRoles) ParseAccess(token string) (uuid.UUID, string, error) {
	role, ok := t[token]
	if !ok {
		return uuid.Nil, "", errors.New("invalid token")
	}
	return uuid.New(), role, nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := tokenRoles{"user-token": entity.RoleUser, "admin-token": entity.RoleAdmin}
	cfg := &config.Config{Env: "test", RateLimitLimit: 100, RateLimitPeriod: time.Minute}
	log := logger.Discard()

	return SetupRouter(cfg, Handlers{
		Auth:   handlers.NewAuthHandler(nil),
		Claims: handlers.NewClaimHandler(handlers.ClaimUseCases{}, claim.DefaultImageLimits()),
		Health: handlers.NewHealthHandler(okPinger{}),
		WS:     handlers.NewWSHandler(ws.NewHub(log), tokens, nil),
	}, tokens, "", log)
}

func TestSetupRouter_Access(t *testing.T) {
	r := newEngine(t)
	claimID := uuid.NewString()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{name: "health is public", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "claim requires token", method: http.MethodGet, path: "/api/claims/" + claimID, status: http.StatusUnauthorized},
		{name: "status update requires admin", method: http.MethodPatch, path: "/api/claims/" + claimID + "/status", token: "user-token", status: http.StatusForbidden},
		{name: "delete requires admin", method: http.MethodDelete, path: "/api/claims/" + claimID, token: "user-token", status: http.StatusForbidden},
		{name: "admin list requires admin", method: http.MethodGet, path: "/api/admin/claims", token: "user-token", status: http.StatusForbidden},
		{name: "invalid claim id", method: http.MethodGet, path: "/api/claims/abc", token: "user-token", status: http.StatusBadRequest},
		{name: "ws requires token", method: http.MethodGet, path: "/api/ws", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
