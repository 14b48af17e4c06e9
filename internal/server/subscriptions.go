package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rraasi/coin-service/internal/observability/logger"
	"github.com/rraasi/coin-service/internal/providers/pdf"
	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	"go.uber.org/zap"
)

type createOrderRequest struct {
	PlanID string `json:"planId"`
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
	PlanID    string `json:"planId"`
}

func (s *Server) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "plans": s.subscriptions.Plans()})
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		AbortWithError(c, newValidationError("planId", "required", "planId is required"))
		return
	}

	identity, _ := identityFrom(c)
	order, err := s.subscriptions.CreateOrder(c.Request.Context(), subscriptiondomain.CreateOrderRequest{
		UserID:    identity.UID,
		UserEmail: identity.Email,
		PlanID:    planID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

func (s *Server) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	identity, _ := identityFrom(c)
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	if err := s.users.Touch(ctx, identity.UID, identity.Email); err != nil {
		log.Warn("touch user profile failed", zap.Error(err))
	}

	resp, err := s.subscriptions.Verify(ctx, subscriptiondomain.VerifyRequest{
		UserID:    identity.UID,
		UserEmail: identity.Email,
		OrderID:   strings.TrimSpace(req.OrderID),
		PaymentID: strings.TrimSpace(req.PaymentID),
		Signature: strings.TrimSpace(req.Signature),
		PlanID:    strings.TrimSpace(req.PlanID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The grant reaches earned coins on the next refresh; do it now so the
	// client sees it immediately.
	if _, err := s.entitlements.Balance(ctx, identity.UID); err != nil {
		log.Warn("refresh balance after verify failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"subscription": resp.Subscription,
		"coinsAdded":   resp.CoinsAdded,
	})
}

func (s *Server) ActiveSubscription(c *gin.Context) {
	identity, _ := identityFrom(c)

	sub, err := s.subscriptions.ActiveForUser(c.Request.Context(), identity.UID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
}

func (s *Server) ActiveSubscriptionReceipt(c *gin.Context) {
	identity, _ := identityFrom(c)
	ctx := c.Request.Context()

	sub, err := s.subscriptions.ActiveForUser(ctx, identity.UID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	doc, err := s.pdf.GenerateReceipt(ctx, pdf.ReceiptData{
		UserEmail:  sub.UserEmail,
		PlanName:   sub.PlanName,
		Coins:      sub.RraasiCoins,
		OrderID:    sub.ProviderOrderID,
		PaymentID:  sub.ProviderPaymentID,
		Currency:   sub.Currency,
		AmountPaid: sub.AmountPaid,
		StartDate:  sub.StartDate,
		EndDate:    sub.EndDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writePDF(c, "subscription-receipt.pdf", doc)
}
