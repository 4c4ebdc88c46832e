package middleware

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/logger"
)

const identityKey = "identity"

var (
	ErrMissingToken = apperr.Unauthorized("missing token")
	ErrAdminOnly    = apperr.Unauthorized("admin access required")
)

// TokenParser validates a raw token.
type TokenParser interface {
	Parse(raw string) (*auth.Identity, error)
}

// Authenticate requires a valid token in the cookie and stores the identity.
func Authenticate(tokens TokenParser, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(cookieName)
		if err != nil || raw == "" {
			WriteError(c, ErrMissingToken)
			return
		}
		id, err := tokens.Parse(raw)
		if err != nil {
			WriteError(c, err)
			return
		}
		setIdentity(c, *id)
		c.Next()
	}
}

// OptionalAuth stores the identity when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(tokens TokenParser, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(cookieName); err == nil && raw != "" {
			if id, err := tokens.Parse(raw); err == nil {
				setIdentity(c, *id)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after Authenticate.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok || !id.IsAdmin {
			WriteError(c, ErrAdminOnly)
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller set by Authenticate or OptionalAuth.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func setIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
	ctx := logger.WithFields(c.Request.Context(), map[string]any{"user_id": id.UserID.Hex()})
	c.Request = c.Request.WithContext(ctx)
}
