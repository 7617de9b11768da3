package middleware // middleware holds the echo middleware shared by the route groups

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-booking/internal/utils"
)

// Context keys set by JWTAuth.
const (
	KeyOperator = "operator"
	KeyCaps     = "caps"
)

// deny writes the same error envelope the handlers use.
func deny(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": echo.Map{"code": code, "message": msg}})
}

// JWTAuth validates a Bearer operator token and stores its subject and
// capability set in the request context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return deny(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC tokens signed with our secret are accepted.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return deny(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return deny(c, http.StatusUnauthorized, "unauthorized", "invalid claims")
			}

			sub, _ := claims["sub"].(string)
			c.Set(KeyOperator, sub)
			c.Set(KeyCaps, capsFromClaims(claims))
			return next(c)
		}
	}
}

// capsFromClaims reads "caps" as a list or a space separated string.
// delete implies edit.
func capsFromClaims(claims jwt.MapClaims) map[string]bool {
	caps := map[string]bool{}
	switch v := claims["caps"].(type) {
	case []interface{}:
		for _, x := range v {
			if s, ok := x.(string); ok {
				caps[s] = true
			}
		}
	case string:
		for _, s := range strings.Fields(v) {
			caps[s] = true
		}
	}
	if caps[utils.CapDelete] {
		caps[utils.CapEdit] = true
	}
	return caps
}

// RequireCapability rejects requests whose token lacks capability with 403.
// It must run after JWTAuth.
func RequireCapability(capability string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caps, _ := c.Get(KeyCaps).(map[string]bool)
			if !caps[capability] {
				return deny(c, http.StatusForbidden, "forbidden", "missing capability: "+capability)
			}
			return next(c)
		}
	}
}

// operatorID returns the authenticated operator, or "" for public calls.
func operatorID(c echo.Context) string {
	if s, ok := c.Get(KeyOperator).(string); ok {
		return s
	}
	return ""
}
