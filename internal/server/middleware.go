package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/rraasi/coin-service/internal/auth/domain"
	obscontext "github.com/rraasi/coin-service/internal/observability/context"
	"github.com/rraasi/coin-service/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderUserID = "X-User-Id"
	bearerPrefix = "bearer "
)

// UserAuthRequired verifies the bearer token and attaches the caller identity
// to the request context. With auth disabled outside production the caller
// may name themselves through X-User-Id instead.
func (s *Server) UserAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && s.cfg.Auth.Disabled && !s.cfg.IsProduction() {
			token = strings.TrimSpace(c.GetHeader(HeaderUserID))
		}
		if token == "" {
			AbortWithError(c, authdomain.ErrMissingToken)
			return
		}

		ctx := c.Request.Context()
		identity, err := s.verifier.Verify(ctx, token)
		if err != nil {
			logger.FromContext(ctx).Debug("bearer token rejected", zap.Error(err))
			AbortWithError(c, err)
			return
		}

		actorType := obscontext.ActorTypeUser
		if identity.Admin {
			actorType = obscontext.ActorTypeAdmin
		}
		ctx = authdomain.WithIdentity(ctx, identity)
		ctx = obscontext.WithActor(ctx, actorType, identity.UID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

func identityFrom(c *gin.Context) (*authdomain.Identity, bool) {
	return authdomain.IdentityFromContext(c.Request.Context())
}
