package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/rraasi/coin-service/internal/entitlement/domain"
	"github.com/rraasi/coin-service/internal/feature"
	featuredomain "github.com/rraasi/coin-service/internal/feature/domain"
	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	"github.com/rraasi/coin-service/internal/observability/logger"
	obstracing "github.com/rraasi/coin-service/internal/observability/tracing"
	"github.com/rraasi/coin-service/internal/providers/pdf"
	"go.uber.org/zap"
)

const statementEntryLimit = 200

type checkAccessRequest struct {
	FeatureID string `json:"featureId"`
}

type deductRequest struct {
	FeatureID string         `json:"featureId"`
	Metadata  map[string]any `json:"metadata"`
}

type deductSatsangRequest struct {
	DurationMinutes *float64       `json:"durationMinutes"`
	Metadata        map[string]any `json:"metadata"`
}

type bonusRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type accessResponse struct {
	Success bool `json:"success"`
	*entitlementdomain.AccessDecision
}

// chargeResponse carries the result fields at the top level; a refusal adds
// an error string next to the shortfall.
type chargeResponse struct {
	*entitlementdomain.ChargeResult
	Error string `json:"error,omitempty"`
}

type bonusResponse struct {
	Success bool `json:"success"`
	*entitlementdomain.BonusResult
}

func (s *Server) GetBalance(c *gin.Context) {
	identity, _ := identityFrom(c)
	ctx := c.Request.Context()

	if err := s.users.Touch(ctx, identity.UID, identity.Email); err != nil {
		logger.FromContext(ctx).Warn("touch user profile failed", zap.Error(err))
	}

	balance, err := s.entitlements.Balance(ctx, identity.UID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance})
}

func (s *Server) RefreshBalance(c *gin.Context) {
	identity, _ := identityFrom(c)

	balance, err := s.entitlements.Balance(c.Request.Context(), identity.UID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance})
}

func (s *Server) CheckAccess(c *gin.Context) {
	var req checkAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	featureID := strings.TrimSpace(req.FeatureID)
	if featureID == "" {
		AbortWithError(c, newValidationError("featureId", "required", "featureId is required"))
		return
	}

	c.Set(obstracing.FeatureIDKey, featureID)

	identity, _ := identityFrom(c)
	decision, err := s.entitlements.CheckAccess(c.Request.Context(), identity.UID, featureID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(obstracing.CoinCostKey, decision.Cost)

	c.JSON(http.StatusOK, accessResponse{Success: true, AccessDecision: decision})
}

func (s *Server) Deduct(c *gin.Context) {
	var req deductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	featureID := strings.TrimSpace(req.FeatureID)
	if featureID == "" {
		AbortWithError(c, newValidationError("featureId", "required", "featureId is required"))
		return
	}

	c.Set(obstracing.FeatureIDKey, featureID)

	identity, _ := identityFrom(c)
	result, err := s.entitlements.CommitCharge(c.Request.Context(), entitlementdomain.ChargeRequest{
		UserID:    identity.UID,
		FeatureID: featureID,
		Metadata:  req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeChargeResult(c, featureID, result)
}

func (s *Server) DeductSatsang(c *gin.Context) {
	var req deductSatsangRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.DurationMinutes == nil || *req.DurationMinutes <= 0 {
		AbortWithError(c, newValidationError("durationMinutes", "invalid_duration", "valid durationMinutes is required"))
		return
	}

	c.Set(obstracing.FeatureIDKey, feature.SatsangSessionID)

	identity, _ := identityFrom(c)
	result, err := s.entitlements.DeductForDuration(c.Request.Context(), entitlementdomain.DurationChargeRequest{
		UserID:          identity.UID,
		DurationMinutes: *req.DurationMinutes,
		Metadata:        req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeChargeResult(c, feature.SatsangSessionID, result)
}

func writeChargeResult(c *gin.Context, featureID string, result *entitlementdomain.ChargeResult) {
	c.Set(obstracing.CoinCostKey, result.CoinsDeducted)
	if !result.Success {
		required := int64(0)
		if result.RequiredCoins != nil {
			required = *result.RequiredCoins
		}
		logger.WithCharge(logger.FromContext(c.Request.Context()), featureID, required).
			Info("charge refused", zap.String("reason", string(result.Reason)))
		c.JSON(http.StatusPaymentRequired, chargeResponse{
			ChargeResult: result,
			Error:        "Insufficient coins or access denied",
		})
		return
	}
	c.JSON(http.StatusOK, chargeResponse{ChargeResult: result})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		Limit  string `form:"limit"`
		Cursor string `form:"cursor"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	limit := 0
	if raw := strings.TrimSpace(query.Limit); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	identity, _ := identityFrom(c)
	resp, err := s.ledgerSvc.History(c.Request.Context(), ledgerdomain.HistoryRequest{
		UserID: identity.UID,
		Limit:  limit,
		Cursor: strings.TrimSpace(query.Cursor),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": resp.Transactions,
		"next_cursor":  resp.NextCursor,
		"has_more":     resp.HasMore,
	})
}

func (s *Server) TransactionStatement(c *gin.Context) {
	identity, _ := identityFrom(c)
	ctx := c.Request.Context()

	balance, err := s.entitlements.Balance(ctx, identity.UID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	history, err := s.ledgerSvc.History(ctx, ledgerdomain.HistoryRequest{
		UserID: identity.UID,
		Limit:  statementEntryLimit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.StatementData{
		UserID:      identity.UID,
		Email:       identity.Email,
		GeneratedAt: s.clock.Now(),
		EarnedCoins: balance.EarnedCoins,
		BonusCoins:  balance.BonusCoins,
		SpentCoins:  balance.SpentCoins,
		TotalCoins:  balance.TotalCoins,
		Entries:     make([]pdf.StatementEntry, 0, len(history.Transactions)),
	}
	for _, txn := range history.Transactions {
		data.Entries = append(data.Entries, pdf.StatementEntry{
			TransactionID: txn.TransactionID,
			OccurredAt:    txn.OccurredAt,
			Type:          string(txn.Type),
			Description:   txn.Description,
			Amount:        txn.Amount,
		})
	}

	doc, err := s.pdf.GenerateStatement(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writePDF(c, "coin-statement.pdf", doc)
}

func writePDF(c *gin.Context, filename string, doc io.Reader) {
	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", body)
}

func (s *Server) ListFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "features": s.catalog.All()})
}

func (s *Server) GetFeature(c *gin.Context) {
	cost, ok := s.catalog.Get(strings.TrimSpace(c.Param("featureId")))
	if !ok {
		AbortWithError(c, featuredomain.ErrFeatureNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "feature": cost})
}

func (s *Server) FeatureStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": s.catalog.Stats()})
}

func (s *Server) GrantBonus(c *gin.Context) {
	var req bonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" || req.Amount == 0 {
		AbortWithError(c, newValidationError("request", "required", "userId and amount are required"))
		return
	}

	identity, _ := identityFrom(c)
	result, err := s.entitlements.AddBonus(c.Request.Context(), entitlementdomain.BonusRequest{
		UserID:    userID,
		Amount:    req.Amount,
		Reason:    strings.TrimSpace(req.Reason),
		GrantedBy: identity.UID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, bonusResponse{Success: true, BonusResult: result})
}
