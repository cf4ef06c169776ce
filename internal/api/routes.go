package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/internal/auth"
	"github.com/satriahrh/genui-relay/internal/relay"
	"github.com/satriahrh/genui-relay/internal/websocket"
)

const serviceName = "genui-relay"

// Dependencies are the handlers' collaborators. Auth may be nil.
type Dependencies struct {
	Relay  *relay.Relay
	Hub    *websocket.Hub
	Auth   *auth.Authenticator
	Logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:              "ok",
			Service:             serviceName,
			Mode:                deps.Relay.Config().Mode(),
			ActiveVoiceSessions: deps.Hub.ActiveSessions(),
		})
	})

	e.POST("/api/chat/stream", deps.Relay.Handle)

	e.GET("/ws/voice", func(c echo.Context) error {
		return voiceWithAuth(deps, c)
	})
}

// voiceWithAuth checks the voice token when one is required, then upgrades
func voiceWithAuth(deps Dependencies, c echo.Context) error {
	if deps.Auth == nil {
		return websocket.HandleWebSocket(deps.Hub, c, "")
	}

	claims, err := deps.Auth.ValidateToken(auth.TokenFromRequest(c.Request()))
	if err != nil {
		deps.Logger.Warn("Voice connection rejected", zap.Error(err))

		code := "invalid_token"
		if errors.Is(err, auth.ErrMissingToken) {
			code = "missing_token"
		}
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   code,
			Message: "A valid voice token is required",
		})
	}

	deps.Logger.Info("Voice connection authenticated", zap.String("subject", claims.Subject))
	return websocket.HandleWebSocket(deps.Hub, c, claims.Subject)
}
