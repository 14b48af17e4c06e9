package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rraasi/coin-service/internal/authorization"
)

// RequireCapability gates operator routes behind an RBAC check on the caller.
func (s *Server) RequireCapability(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	identity, ok := identityFrom(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	actor := authorization.Actor{UserID: identity.UID, Admin: identity.Admin}
	return s.authzSvc.Authorize(c.Request.Context(), actor, strings.TrimSpace(object), strings.TrimSpace(action))
}
