package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/class-booking/internal/config"
	"github.com/iliyamo/class-booking/internal/utils"
)

const testSecret = "test-secret"

func ok(c echo.Context) error { return c.String(http.StatusOK, operatorID(c)) }

func serve(e *echo.Echo, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, caps ...string) http.Header {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, "alice", caps, 5)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + tok.Token}}
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/edit", ok, JWTAuth(testSecret), RequireCapability(utils.CapEdit))
	e.GET("/delete", ok, JWTAuth(testSecret), RequireCapability(utils.CapDelete))

	rec := serve(e, http.MethodGet, "/edit", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"unauthorized","message":"missing bearer token"}}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/edit", http.Header{"Authorization": {"Bearer not-a-jwt"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/edit", bearer(t, utils.CapEdit))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())

	rec = serve(e, http.MethodGet, "/delete", bearer(t, utils.CapEdit))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodGet, "/edit", bearer(t, utils.CapDelete))
	assert.Equal(t, http.StatusOK, rec.Code, "delete implies edit")
}

func TestJWTAuth_RejectsOtherAlgorithmsAndExpired(t *testing.T) {
	e := echo.New()
	e.GET("/edit", ok, JWTAuth(testSecret), RequireCapability(utils.CapEdit))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "mallory", "caps": []string{"edit"}})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	rec := serve(e, http.MethodGet, "/edit", http.Header{"Authorization": {"Bearer " + raw}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice", "caps": "edit", "exp": time.Now().Add(-time.Minute).Unix(),
	})
	raw, err = expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/edit", http.Header{"Authorization": {"Bearer " + raw}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCapsFromClaims(t *testing.T) {
	caps := capsFromClaims(jwt.MapClaims{"caps": "edit  delete"})
	assert.True(t, caps[utils.CapEdit])
	assert.True(t, caps[utils.CapDelete])

	caps = capsFromClaims(jwt.MapClaims{})
	assert.Empty(t, caps)
}

func TestIntegrationKey(t *testing.T) {
	hash, err := utils.HashKey("k-123", bcrypt.MinCost)
	require.NoError(t, err)

	e := echo.New()
	e.POST("/hook", ok, IntegrationKey(hash))

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/hook", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		serve(e, http.MethodPost, "/hook", http.Header{HeaderIntegrationKey: {"wrong"}}).Code)
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK,
			serve(e, http.MethodPost, "/hook", http.Header{HeaderIntegrationKey: {"k-123"}}).Code)
	}
	assert.Equal(t, http.StatusUnauthorized,
		serve(e, http.MethodPost, "/hook", http.Header{HeaderIntegrationKey: {"k-1234"}}).Code,
		"a remembered key does not open the door for others")

	closed := echo.New()
	closed.POST("/hook", ok, IntegrationKey(""))
	assert.Equal(t, http.StatusUnauthorized,
		serve(closed, http.MethodPost, "/hook", http.Header{HeaderIntegrationKey: {"anything"}}).Code)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(zap.NewNop()))
	e.GET("/x", ok)

	rec := serve(e, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(e, http.MethodGet, "/x", http.Header{echo.HeaderXRequestID: {"abc"}})
	assert.Equal(t, "abc", rec.Header().Get(echo.HeaderXRequestID))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/availability?classId=1", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	req.AddCookie(&http.Cookie{Name: CartCookie, Value: "c-1"})
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/availability")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:10.0.0.9:route:GET /v1/availability", buildRateKey(cfg, c))

	cfg.KeyStrategy = "client"
	assert.Equal(t, "rl:client:cart-c-1", buildRateKey(cfg, c))

	c.Set(KeyOperator, "alice")
	assert.Equal(t, "rl:client:op-alice", buildRateKey(cfg, c))
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	cache := NewResponseCache(config.CacheConfig{Enabled: true}, nil)
	e.GET("/x", ok, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, zap.NewNop()), cache.Middleware())

	rec := serve(e, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	cache.Invalidate(httptest.NewRequest(http.MethodGet, "/", nil).Context())
}

func TestCacheKeyFrom(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	key := func(gen int64, target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/availability/sessions")
		return cacheKeyFrom(cfg, gen, c)
	}
	a := key(0, "/v1/availability/sessions?classId=1&date=2026-06-01")
	b := key(0, "/v1/availability/sessions?date=2026-06-01&classId=1")
	assert.Equal(t, a, b, "query order does not matter")
	assert.True(t, strings.HasPrefix(a, "cache:0:"))
	assert.NotEqual(t, a, key(1, "/v1/availability/sessions?classId=1&date=2026-06-01"))
	assert.NotEqual(t, a, key(0, "/v1/availability/sessions?classId=2&date=2026-06-01"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"dates":[]}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"dates":[]}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}
