package response_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizvigil/proctor-agent/internal/response"
)

func requestIDFor(t *testing.T, incoming string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if incoming != "" {
		req.Header.Set("X-Request-ID", incoming)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header().Get("X-Request-ID")
}

func TestRequestIDEchoesValidUUID(t *testing.T) {
	id := uuid.New().String()
	assert.Equal(t, id, requestIDFor(t, id))
}

func TestRequestIDReplacesNonUUID(t *testing.T) {
	got := requestIDFor(t, "not-a-uuid")
	_, err := uuid.Parse(got)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", got)
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	_, err := uuid.Parse(requestIDFor(t, ""))
	assert.NoError(t, err)
}
