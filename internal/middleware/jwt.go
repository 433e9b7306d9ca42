// Package middleware provides reusable HTTP middleware: bearer-token
// identity extraction, Redis-backed rate limiting and response caching.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Identity returns an Echo middleware that validates a Bearer access
// token and injects the token's subject into the request context under
// "user_id". Token issuance happens outside this service; this
// middleware only verifies the HS256 signature with the shared secret
// and extracts the pre-authenticated identity. Handlers read the value
// via c.Get("user_id").
func Identity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				// Only HMAC-signed tokens are accepted.
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			uid, ok := subjectID(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing subject"})
			}
			c.Set("user_id", uid)
			return next(c)
		}
	}
}

// subjectID extracts a numeric user ID from the sub or user_id claim.
func subjectID(claims jwt.MapClaims) (uint64, bool) {
	for _, key := range []string{"sub", "user_id"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 {
				return uint64(v), true
			}
		case string:
			if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}
