package server

import (
	"github.com/labstack/echo/v4"
	"github.com/nfrund/collabhub/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET("/health", s.health.Get)

	admin := []echo.MiddlewareFunc{middleware.TokenAuth(s.tokens, s.stores), middleware.RequireAdmin()}
	s.E.GET("/api/presence", s.presence.GetJSON, admin...)
	s.E.GET("/debug/presence", s.presence.GetPage, admin...)
	s.E.GET("/debug/presence/list", s.presence.GetList, admin...)

	var guards []echo.MiddlewareFunc
	if limit := s.cfg.GetHTTPRateLimit(); limit > 0 {
		guards = append(guards, middleware.RateLimiter(limit, connectBurst(limit)))
	}
	guards = append(guards, middleware.TokenAuth(s.tokens, s.stores))
	s.E.GET("/ws", s.sockets.Serve, guards...)
}

// connectBurst lets a client reconnect a few times in a row before the
// limit kicks in.
func connectBurst(perSecond float64) int {
	if b := int(perSecond * 2); b > 5 {
		return b
	}
	return 5
}
