package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"servisku/internal/domain/repository"
	"servisku/internal/infrastructure/firebase"
)

type AuthMiddleware struct {
	authClient *firebase.FirebaseAuthClient
	userRepo   repository.UserRepository
}

func NewAuthMiddleware(authClient *firebase.FirebaseAuthClient, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authClient: authClient,
		userRepo:   userRepo,
	}
}

// Authenticate resolves the bearer credential to an active user and puts
// the uid on the request context. Deactivated accounts are rejected the
// same way at both the durable path and the websocket handshake.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		uid, err := m.authClient.VerifyToken(c.Request().Context(), parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		user, err := m.userRepo.GetByID(c.Request().Context(), uid)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unknown user")
		}
		if !user.IsActive() {
			return echo.NewHTTPError(http.StatusForbidden, "Account is deactivated")
		}

		c.Set("uid", uid)

		return next(c)
	}
}
