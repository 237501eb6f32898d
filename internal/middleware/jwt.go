// Package middleware provides the request-processing chain shared by
// all protected routes: bearer-token identity resolution, role
// enforcement, rate limiting and response caching.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/exam-slot-reservation/internal/model"
)

// identityKey is the context key under which the resolved identity is
// stored for downstream middleware and handlers.
const identityKey = "identity"

// JWTAuth returns middleware that resolves the Bearer access token
// into a (user id, role) identity. A missing, malformed, expired or
// otherwise invalid token yields 401; expiry is enforced by the JWT
// library via the exp claim. On success the identity is stored in the
// context under identityKey.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
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

			id, ok := subjectID(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			role, _ := claims["role"].(string)
			r := model.Role(strings.ToLower(role))
			if !r.Valid() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown role"})
			}

			c.Set(identityKey, model.Identity{UserID: id, Role: r})
			return next(c)
		}
	}
}

// subjectID extracts the user id from the sub claim. JWT numbers
// decode as float64; string subjects are parsed as unsigned integers.
func subjectID(claims jwt.MapClaims) (uint64, bool) {
	switch v := claims["sub"].(type) {
	case float64:
		return uint64(v), v > 0
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}
