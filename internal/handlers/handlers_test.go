package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/collabhub/internal/domain"
	"github.com/nfrund/collabhub/internal/middleware"
	"github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/realtime/realtimetest"
	"github.com/nfrund/collabhub/internal/rendering"
	"github.com/nfrund/collabhub/internal/security"
	"github.com/nfrund/collabhub/internal/store/memory"
	"github.com/nfrund/collabhub/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowAll struct{}

func (allowAll) IsActiveMemberOrAdmin(context.Context, string, string) (bool, error) {
	return true, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newCoordinator(t *testing.T) *presence.Coordinator {
	t.Helper()
	coord := presence.NewCoordinator(presence.NewSessionRegistry(), presence.NewRoomIndex(), allowAll{})
	ctx := context.Background()
	coord.OnConnect(ctx, domain.UserSummary{ID: "bob", DisplayName: "Bob Okafor"}, realtimetest.NewRecorder("c2"))
	coord.OnConnect(ctx, domain.UserSummary{ID: "alice", DisplayName: "Alice Nguyen"}, realtimetest.NewRecorder("c1"))
	require.NoError(t, coord.JoinRoom(ctx, "alice", "robotics"))
	require.NoError(t, coord.JoinRoom(ctx, "bob", "robotics"))
	require.NoError(t, coord.JoinRoom(ctx, "alice", "compilers"))
	return coord
}

func serve(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthHandler(t *testing.T) {
	sessions := presence.NewSessionRegistry()

	tests := []struct {
		name   string
		ping   error
		code   int
		status string
	}{
		{name: "store reachable", code: http.StatusOK, status: "ok"},
		{name: "store down", ping: errors.New("dial tcp: refused"), code: http.StatusServiceUnavailable, status: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(pingFunc(func(context.Context) error { return tt.ping }), "surreal", sessions)
			e := echo.New()
			e.GET("/health", h.Get)

			rec := serve(e, "/health")

			assert.Equal(t, tt.code, rec.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, "surreal", body.Store)
			assert.NotContains(t, rec.Body.String(), "refused")
		})
	}
}

func TestPresenceHandler_JSON(t *testing.T) {
	h := NewPresenceHandler(newCoordinator(t), "/debug/presence/list")
	e := echo.New()
	e.GET("/api/presence", h.GetJSON)

	rec := serve(e, "/api/presence")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap view.PresenceSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Online)
	require.Len(t, snap.Sessions, 2)
	assert.Equal(t, "alice", snap.Sessions[0].UserID)
	assert.Equal(t, []string{"compilers", "robotics"}, snap.Sessions[0].Rooms)
	assert.Equal(t, []view.RoomRow{
		{ProjectID: "compilers", Members: []string{"alice"}},
		{ProjectID: "robotics", Members: []string{"alice", "bob"}},
	}, snap.Rooms)
}

func TestPresenceHandler_HTML(t *testing.T) {
	h := NewPresenceHandler(newCoordinator(t), "/debug/presence/list")
	e := echo.New()
	e.Renderer = rendering.Renderer{}
	e.GET("/debug/presence", h.GetPage)
	e.GET("/debug/presence/list", h.GetList)

	page := serve(e, "/debug/presence")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `hx-get="/debug/presence/list"`)
	assert.Contains(t, page.Body.String(), "Alice Nguyen")

	list := serve(e, "/debug/presence/list")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "Online users (2)")
	assert.NotContains(t, list.Body.String(), "<html")
}

func TestPresenceHandler_AdminOnly(t *testing.T) {
	users := memory.New()
	users.Seed()
	tokens := security.NewTokenManager("handlers-test", time.Hour)
	h := NewPresenceHandler(newCoordinator(t), "/debug/presence/list")

	e := echo.New()
	e.Renderer = rendering.Renderer{}
	guard := []echo.MiddlewareFunc{middleware.TokenAuth(tokens, users), middleware.RequireAdmin()}
	e.GET("/api/presence", h.GetJSON, guard...)
	e.GET("/debug/presence", h.GetPage, guard...)

	admin, err := tokens.Issue("admin")
	require.NoError(t, err)
	alice, err := tokens.Issue("alice")
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		code int
	}{
		{name: "json without token", path: "/api/presence", code: http.StatusUnauthorized},
		{name: "page without token", path: "/debug/presence", code: http.StatusUnauthorized},
		{name: "json as member", path: "/api/presence?token=" + alice, code: http.StatusForbidden},
		{name: "json as admin", path: "/api/presence?token=" + admin, code: http.StatusOK},
		{name: "page as admin", path: "/debug/presence?token=" + admin, code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				assert.NotContains(t, rec.Body.String(), "alice")
			}
		})
	}

	page := serve(e, "/debug/presence?token="+admin)
	assert.Contains(t, page.Body.String(), `hx-get="/debug/presence/list?token=`+admin+`"`)
}
