package middleware

import (
	"crypto/sha256"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-booking/internal/utils"
)

// HeaderIntegrationKey carries the shared key of the order platform.
const HeaderIntegrationKey = "X-Integration-Key"

// IntegrationKey authenticates server-to-server calls against a bcrypt hash
// of the shared key.  An empty hash rejects every call.  The digest of the
// last accepted key is remembered so bcrypt runs once per key rotation
// rather than once per request.
func IntegrationKey(hash string) echo.MiddlewareFunc {
	var (
		mu       sync.Mutex
		accepted [sha256.Size]byte
		have     bool
	)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(HeaderIntegrationKey)
			if hash == "" || key == "" {
				return deny(c, http.StatusUnauthorized, "unauthorized", "missing integration key")
			}
			sum := sha256.Sum256([]byte(key))

			mu.Lock()
			ok := have && sum == accepted
			mu.Unlock()
			if !ok {
				if !utils.VerifyKey(hash, key) {
					return deny(c, http.StatusUnauthorized, "unauthorized", "invalid integration key")
				}
				mu.Lock()
				accepted, have = sum, true
				mu.Unlock()
			}
			return next(c)
		}
	}
}
