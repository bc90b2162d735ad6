package server

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/collabhub/internal/config"
	"github.com/nfrund/collabhub/internal/handlers"
	"github.com/nfrund/collabhub/internal/middleware"
	"github.com/nfrund/collabhub/internal/presence"
	"github.com/nfrund/collabhub/internal/rendering"
	"github.com/nfrund/collabhub/internal/store"
	"github.com/nfrund/collabhub/internal/websocket"
)

// Dependencies holds everything the HTTP server needs.
type Dependencies struct {
	Config      config.Provider
	Stores      *store.Stores
	Coordinator *presence.Coordinator
	Sockets     *websocket.Handler
	Tokens      middleware.TokenVerifier
	// Echo is optional; tests pass their own instance.
	Echo *echo.Echo
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	cfg config.Provider

	stores   *store.Stores
	coord    *presence.Coordinator
	sockets  *websocket.Handler
	tokens   middleware.TokenVerifier
	health   *handlers.HealthHandler
	presence *handlers.PresenceHandler
}

// New creates a Server and installs the global middleware.
func New(deps Dependencies) (*Server, error) {
	if deps.Config == nil || deps.Stores == nil || deps.Coordinator == nil || deps.Sockets == nil || deps.Tokens == nil {
		return nil, errors.New("server: missing dependency")
	}

	e := deps.Echo
	if e == nil {
		e = echo.New()
		e.HideBanner = true
		e.HidePort = true
	}
	e.Renderer = rendering.Renderer{}

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger := middleware.FromContext(c.Request().Context())
			attrs := []any{"status", v.Status, "uri", v.URI, "latency", v.Latency}
			if v.Error != nil {
				logger.Error("Request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("Request", attrs...)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	s := &Server{
		E:        e,
		cfg:      deps.Config,
		stores:   deps.Stores,
		coord:    deps.Coordinator,
		sockets:  deps.Sockets,
		tokens:   deps.Tokens,
		health:   handlers.NewHealthHandler(deps.Stores, deps.Stores.Name, deps.Coordinator.Sessions()),
		presence: handlers.NewPresenceHandler(deps.Coordinator, "/debug/presence/list"),
	}
	slog.Debug("Server created", "store", deps.Stores.Name)
	return s, nil
}
