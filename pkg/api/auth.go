package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiTokenEnvVar   = "CONVERGE_API_TOKEN"
	webhookSecretEnv = "CONVERGE_GITHUB_WEBHOOK_SECRET"
)

// requireBearerToken builds auth middleware that checks the Authorization
// header against CONVERGE_API_TOKEN. Mirrors the source's _auth_required()
// default-open behavior: with no token configured, every request is
// admitted (local/dev use), matching the scoped-down "minimal
// bearer-token middleware" called for in place of the full API-key
// registry (roles, rotation, tenant scoping) original_source/api/auth.py
// implements.
func requireBearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := os.Getenv(apiTokenEnvVar)
		if token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || presented != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// extractActor returns the caller identity for audit payloads, falling
// back to "api-client" when no actor header is present — the same
// fallback chain the teacher's extractAuthor uses for oauth2-proxy
// headers, adapted to a single X-Actor header since converge has no
// oauth2-proxy in front of it.
func extractActor(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	return "api-client"
}

// verifyGithubSignature checks a GitHub webhook delivery's HMAC-SHA256
// signature against CONVERGE_GITHUB_WEBHOOK_SECRET. Returns true
// (skip verification) when no secret is configured, matching
// requireBearerToken's default-open posture for local development.
// Grounded on original_source/api/auth.py's _verify_github_signature.
func verifyGithubSignature(body []byte, signatureHeader string) bool {
	secret := os.Getenv(webhookSecretEnv)
	if secret == "" {
		return true
	}
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := prefix + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
