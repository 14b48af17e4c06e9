package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	authdomain "github.com/rraasi/coin-service/internal/auth/domain"
	"github.com/rraasi/coin-service/internal/clock"
	"go.uber.org/zap"
)

// FirebaseJWKSURL serves the keys Firebase signs ID tokens with.
const FirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

type tokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Admin         bool   `json:"admin"`
}

type OIDCVerifier struct {
	verifier  *oidc.IDTokenVerifier
	adminUIDs map[string]struct{}
	log       *zap.Logger
}

// NewOIDCVerifier checks RS256 ID tokens against keySet, the issuer and the
// audience. Admin is granted by an `admin` claim or by membership in adminUIDs.
func NewOIDCVerifier(issuer, audience string, keySet oidc.KeySet, adminUIDs []string, clk clock.Clock, log *zap.Logger) *OIDCVerifier {
	cfg := &oidc.Config{
		ClientID:             audience,
		SupportedSigningAlgs: []string{oidc.RS256},
	}
	if clk != nil {
		cfg.Now = clk.Now
	}
	return &OIDCVerifier{
		verifier:  oidc.NewVerifier(issuer, keySet, cfg),
		adminUIDs: toSet(adminUIDs),
		log:       log.Named("auth.verifier"),
	}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*authdomain.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, authdomain.ErrMissingToken
	}

	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, authdomain.ErrTokenExpired
		}
		v.log.Debug("token rejected", zap.Error(err))
		return nil, authdomain.ErrInvalidToken
	}

	var claims tokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", authdomain.ErrInvalidToken, err)
	}
	if token.Subject == "" {
		return nil, authdomain.ErrInvalidToken
	}

	_, listed := v.adminUIDs[token.Subject]
	return &authdomain.Identity{
		UID:           token.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: claims.EmailVerified,
		Admin:         claims.Admin || listed,
	}, nil
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}
