package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/rraasi/coin-service/internal/auth/domain"
	"github.com/rraasi/coin-service/internal/authorization"
	balancedomain "github.com/rraasi/coin-service/internal/balance/domain"
	entitlementdomain "github.com/rraasi/coin-service/internal/entitlement/domain"
	featuredomain "github.com/rraasi/coin-service/internal/feature/domain"
	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	"github.com/rraasi/coin-service/internal/ratelimit"
	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// errorResponse keeps the success flag clients branch on next to the error body.
type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not_found")
)

// fieldErrors maps domain sentinels to the request field the client got wrong.
// The sentinel text doubles as the error code.
var fieldErrors = []struct {
	err     error
	field   string
	message string
}{
	{entitlementdomain.ErrUnknownFeature, "featureId", "unknown feature"},
	{entitlementdomain.ErrInvalidDuration, "durationMinutes", "duration must be positive"},
	{entitlementdomain.ErrInvalidBonusAmount, "amount", "amount must be between 1 and 1000000000"},
	{entitlementdomain.ErrInvalidUserID, "userId", "user id is required"},
	{balancedomain.ErrInvalidUserID, "userId", "user id is required"},
	{balancedomain.ErrInvalidDelta, "amount", "invalid coin amount"},
	{ledgerdomain.ErrInvalidUserID, "userId", "user id is required"},
	{ledgerdomain.ErrInvalidLimit, "limit", "invalid limit"},
	{ledgerdomain.ErrInvalidCursor, "cursor", "invalid cursor"},
	{subscriptiondomain.ErrInvalidUserID, "userId", "user id is required"},
	{subscriptiondomain.ErrInvalidPlan, "planId", "unknown plan"},
	{subscriptiondomain.ErrMissingPaymentFields, "payment", "order id, payment id and signature are required"},
	{subscriptiondomain.ErrInvalidSignature, "payment", "invalid payment signature"},
}

// statusErrors is checked in order; the first match wins.
var statusErrors = []struct {
	status  int
	kind    string
	message string
	errs    []error
}{
	{http.StatusUnauthorized, "unauthorized", "unauthorized", []error{
		ErrUnauthorized,
		authdomain.ErrMissingToken,
		authdomain.ErrInvalidToken,
		authdomain.ErrTokenExpired,
		authorization.ErrInvalidActor,
	}},
	{http.StatusForbidden, "forbidden", "forbidden", []error{
		ErrForbidden,
		authorization.ErrForbidden,
		subscriptiondomain.ErrOrderOwnerMismatch,
	}},
	{http.StatusConflict, "conflict", "another charge for this user is in progress", []error{
		entitlementdomain.ErrChargeInProgress,
		balancedomain.ErrConcurrentModification,
	}},
	{http.StatusTooManyRequests, "rate_limited", "too many requests", []error{
		ratelimit.ErrRateLimited,
	}},
	{http.StatusNotFound, "not_found", "not found", []error{
		ErrNotFound,
		featuredomain.ErrFeatureNotFound,
		gorm.ErrRecordNotFound,
	}},
	{http.StatusServiceUnavailable, "service_unavailable", "service unavailable", []error{
		ratelimit.ErrUnavailable,
	}},
}

// ErrorHandlingMiddleware renders the last handler error unless the handler
// already wrote a body.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		last := c.Errors.Last()
		if last == nil {
			return
		}

		status, payload := mapError(last.Err)
		c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, validationPayload(vErr.Errors)
	}

	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return http.StatusBadRequest, validationPayload([]ValidationError{{
				Field:   fe.field,
				Code:    fe.err.Error(),
				Message: fe.message,
			}})
		}
	}

	for _, se := range statusErrors {
		for _, target := range se.errs {
			if errors.Is(err, target) {
				return se.status, errorPayload{Type: se.kind, Message: se.message}
			}
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func validationPayload(errs []ValidationError) errorPayload {
	return errorPayload{
		Type:    "validation_error",
		Message: "validation error",
		Errors:  errs,
	}
}

// classifyErrorForLog gives the request logger the same type and code the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
