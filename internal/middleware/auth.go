package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"bakery-service/pkg/jwtutil"
	"bakery-service/pkg/logger"
	"bakery-service/prometheus"
)

// AuthMiddleware validates the staff JWT and scopes the request to the bakery
// named in both the token and the route. Tokens for one bakery cannot touch
// another bakery's products or orders.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)
		prometheus.AuthAttemptsCounter.Inc()

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.AuthErrorsCounter.Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.AuthErrorsCounter.Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.AuthErrorsCounter.Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		// The token must be scoped to the bakery addressed by the route
		if routeID := c.Param("id"); routeID != "" {
			id, perr := strconv.ParseUint(routeID, 10, 32)
			if perr != nil || uint(id) != claims.BakeryID {
				log.Warn("Token does not match route bakery",
					zap.Uint("token_bakery_id", claims.BakeryID),
					zap.String("route_bakery_id", routeID))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "token is not valid for this bakery"})
			}
		}

		c.Set("bakery_id", claims.BakeryID)
		c.Set("bakery_name", claims.BakeryName)

		return next(c)
	}
}

// GetBakeryIDFromContext retrieves the authenticated bakery ID from the context
func GetBakeryIDFromContext(c echo.Context) (uint, bool) {
	bakeryID, ok := c.Get("bakery_id").(uint)
	return bakeryID, ok
}
