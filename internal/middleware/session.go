package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
)

// AttachSession loads the fingerprint recorded for the token's session so the
// guard chain can compare it with the current request. Tokenless requests pass
// through untouched. A token whose fingerprint is gone, for example after
// logout, is rejected with SESSION_INVALIDATED. A store failure aborts with
// 503 so hijack detection is never skipped silently.
func AttachSession(sessions SessionLookup, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "session_middleware").Logger()

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.Next()
			return
		}

		sess, err := sessions.LookupSession(c.Request.Context(), claims.SessionID())
		if err != nil {
			log.Error().Err(err).Str("session_id", claims.SessionID()).Msg("Failed to load session fingerprint")
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrRepository)
			return
		}
		if sess == nil {
			log.Warn().
				Int64("user_id", claims.UserID).
				Str("session_id", claims.SessionID()).
				Msg("Token presented for an ended session")
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Set(ContextKeySession, sess)
		c.Next()
	}
}

// GetSession retrieves the session fingerprint from the Gin context.
func GetSession(c *gin.Context) *model.SessionContext {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	sess, ok := val.(*model.SessionContext)
	if !ok {
		return nil
	}
	return sess
}
