package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	h := NewTokenHandler("test-secret", time.Hour)

	token, err := h.GenerateMaintenanceToken("night-shift")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := h.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "night-shift", claims.Subject)
	assert.Equal(t, RoleMaintenance, claims.Role)
	assert.Equal(t, "openbatchcore", claims.Issuer)
}

func TestValidateToken_Rejections(t *testing.T) {
	h := NewTokenHandler("test-secret", time.Hour)

	t.Run("garbage", func(t *testing.T) {
		_, err := h.ValidateToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenHandler("other-secret", time.Hour)
		token, err := other.GenerateMaintenanceToken("x")
		require.NoError(t, err)

		_, err = h.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewTokenHandler("test-secret", -time.Minute)
		token, err := expired.GenerateMaintenanceToken("x")
		require.NoError(t, err)

		_, err = h.ValidateToken(token)
		assert.Error(t, err)
	})
}

func TestRequireMaintenanceToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTokenHandler("test-secret", time.Hour)

	router := gin.New()
	router.POST("/reset", h.RequireMaintenanceToken(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/reset", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	token, err := h.GenerateMaintenanceToken("test")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, do("Bearer "+token))
	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer"))
	assert.Equal(t, http.StatusUnauthorized, do("Basic dXNlcjpwYXNz"))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer garbage"))
}
