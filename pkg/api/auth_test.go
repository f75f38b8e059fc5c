package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestExtractActor(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "no header returns default", expected: "api-client"},
		{name: "X-Actor header honored", header: "alice", expected: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Actor", tt.header)
			}
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = req

			assert.Equal(t, tt.expected, extractActor(c))
		})
	}
}

func TestRequireBearerToken(t *testing.T) {
	t.Run("no token configured admits everyone", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(requireBearerToken())
		router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("configured token rejects missing header", func(t *testing.T) {
		t.Setenv(apiTokenEnvVar, "secret-token")
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(requireBearerToken())
		router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("configured token admits matching bearer header", func(t *testing.T) {
		t.Setenv(apiTokenEnvVar, "secret-token")
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(requireBearerToken())
		router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestVerifyGithubSignature(t *testing.T) {
	t.Run("no secret configured always verifies", func(t *testing.T) {
		assert.True(t, verifyGithubSignature([]byte("payload"), ""))
	})

	t.Run("matching HMAC verifies", func(t *testing.T) {
		t.Setenv(webhookSecretEnv, "shh")
		body := []byte(`{"action":"opened"}`)
		mac := hmac.New(sha256.New, []byte("shh"))
		mac.Write(body)
		sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		assert.True(t, verifyGithubSignature(body, sig))
	})

	t.Run("mismatched HMAC rejects", func(t *testing.T) {
		t.Setenv(webhookSecretEnv, "shh")
		assert.False(t, verifyGithubSignature([]byte("payload"), "sha256=deadbeef"))
	})
}
