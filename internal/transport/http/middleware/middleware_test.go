package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studybot/internal/pkg/jwtutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
	}{
		{"", ""},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"Bearer   ", ""},
		{"Bearer abc.def", "abc.def"},
		{"bearer abc.def", "abc.def"},
	}
	for _, tc := range cases {
		token, msg := bearerToken(tc.header)
		assert.Equal(t, tc.token, token, tc.header)
		if tc.token == "" {
			assert.NotEmpty(t, msg, tc.header)
		}
	}
}

func TestAuthJWT(t *testing.T) {
	const secret = "s3cret"
	r := gin.New()
	r.GET("/", AuthJWT(secret), func(c *gin.Context) {
		c.String(http.StatusOK, "%v", c.MustGet(ContextUserIDKey))
	})

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, serve("").Code)
	assert.Equal(t, http.StatusUnauthorized, serve("Bearer not-a-jwt").Code)

	other, err := jwtutil.GenerateToken("other", time.Minute, 3, "eve@example.com")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+other).Code)

	token, err := jwtutil.GenerateToken(secret, time.Minute, 3, "ada@example.com")
	require.NoError(t, err)
	w := serve("Bearer " + token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Body.String())
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":50000,"message":"internal server error"}`, w.Body.String())
}
