package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"rolegate/internal/authz"
)

var testSecret = []byte("admin-secret")

func signed(t *testing.T, secret []byte, scopes []string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newRouter(secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/x", AuthMiddleware(secret), RequireScope(authz.ScopeRecordsRead), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func do(r *gin.Engine, header string) int {
	req := httptest.NewRequest(http.MethodGet, "/admin/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(testSecret)
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + signed(t, []byte("other"), []string{authz.ScopeRecordsRead}, future), http.StatusUnauthorized},
		{"expired", "Bearer " + signed(t, testSecret, []string{authz.ScopeRecordsRead}, time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"missing scope", "Bearer " + signed(t, testSecret, []string{"other"}, future), http.StatusForbidden},
		{"records scope", "Bearer " + signed(t, testSecret, []string{authz.ScopeRecordsRead}, future), http.StatusOK},
		{"admin scope", "bearer " + signed(t, testSecret, []string{authz.ScopeAdmin}, future), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := do(r, tc.header); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestAuthMiddlewareDisabledWithoutSecret(t *testing.T) {
	if got := do(newRouter(nil), "Bearer x"); got != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", got)
	}
}
