package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"row-analyzer/internal/shared/server/respond"
	"row-analyzer/internal/shared/util"
)

const (
	userIDKey  = "userId"
	isGuestKey = "isGuest"
)

// Auth resolves the caller identity. When apiKeys is non-empty every request
// must carry "Authorization: Bearer <key>" and is identified by the key's
// fingerprint. Otherwise an X-Guest-Id header is required. Paths listed in
// public skip the check.
func Auth(apiKeys []string, public ...string) gin.HandlerFunc {
	hashed := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			hashed = append(hashed, []byte(util.HashKey(k)))
		}
	}
	skip := make(map[string]struct{}, len(public))
	for _, p := range public {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		if len(hashed) > 0 {
			token, ok := bearerToken(c.GetHeader("Authorization"))
			if !ok || !matchesKey(hashed, token) {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid api key", nil)
				return
			}
			c.Set(userIDKey, "key:"+util.Fingerprint(token))
			c.Set(isGuestKey, false)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id"))
		if guestID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	return token, token != ""
}

func matchesKey(hashed [][]byte, token string) bool {
	candidate := []byte(util.HashKey(token))
	found := 0
	for _, h := range hashed {
		found |= subtle.ConstantTimeCompare(h, candidate)
	}
	return found == 1
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// IsGuest reports whether the caller was identified by a guest header.
func IsGuest(c *gin.Context) bool {
	if c == nil {
		return false
	}
	val, _ := c.Get(isGuestKey)
	guest, _ := val.(bool)
	return guest
}
