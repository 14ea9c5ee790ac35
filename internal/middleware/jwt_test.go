package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, role string, expiry time.Duration) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "2201234",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
		Role: role,
		Name: "Ada Lovelace",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newProtectedRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", mw, func(c *gin.Context) {
		claims := GetClaims(c)
		c.JSON(http.StatusOK, gin.H{"subject": claims.Subject, "token": GetToken(c)})
	})
	return r
}

func TestValidateToken(t *testing.T) {
	token := signToken(t, testSecret, RoleStudent, time.Hour)

	claims, err := ValidateToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "2201234", claims.Subject)
	assert.Equal(t, RoleStudent, claims.Role)
	assert.Equal(t, "Ada Lovelace", claims.Name)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", RoleStudent, time.Hour)
	_, err := ValidateToken(testSecret, token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	token := signToken(t, testSecret, RoleStudent, -time.Hour)
	_, err := ValidateToken(testSecret, token)
	assert.Error(t, err)
}

func TestRequireStudentJWT(t *testing.T) {
	r := newProtectedRouter(RequireStudentJWT(testSecret))

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", "", http.StatusUnauthorized},
		{"wrong role", "Bearer " + signToken(t, testSecret, "admin", time.Hour), "", http.StatusForbidden},
		{"valid header", "Bearer " + signToken(t, testSecret, RoleStudent, time.Hour), "", http.StatusOK},
		{"valid query fallback", "", signToken(t, testSecret, RoleStudent, time.Hour), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/protected"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireStudentWSAuth(t *testing.T) {
	r := newProtectedRouter(RequireStudentWSAuth(testSecret))

	// WS auth only reads the query param, never the header.
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, RoleStudent, time.Hour))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected?token="+signToken(t, testSecret, RoleStudent, time.Hour), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
