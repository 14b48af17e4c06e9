package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	paymentdomain "github.com/rraasi/coin-service/internal/providers/payment/domain"
	rzp "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

const providerName = "razorpay"

// orderCreator is the slice of the razorpay SDK the gateway calls.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Gateway struct {
	orders    orderCreator
	keySecret string
	log       *zap.Logger
}

func New(keyID, keySecret string, log *zap.Logger) *Gateway {
	client := rzp.NewClient(keyID, keySecret)
	return &Gateway{
		orders:    client.Order,
		keySecret: keySecret,
		log:       log.Named("payment.razorpay"),
	}
}

func (g *Gateway) Name() string { return providerName }

func (g *Gateway) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	if req.Amount <= 0 || strings.TrimSpace(req.Currency) == "" {
		return nil, paymentdomain.ErrInvalidOrderRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}

	body, err := g.orders.Create(map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}, nil)
	if err != nil {
		g.log.Warn("order create failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrProviderUnavailable, err)
	}

	order := &paymentdomain.Order{
		ID:       readString(body, "id"),
		Amount:   readInt(body, "amount"),
		Currency: readString(body, "currency"),
		Status:   readString(body, "status"),
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order response missing id", paymentdomain.ErrProviderUnavailable)
	}
	return order, nil
}

// VerifyPayment checks hex(HMAC-SHA256(orderId|paymentId, keySecret)).
func (g *Gateway) VerifyPayment(orderID, paymentID, signature string) error {
	return verifySignature(g.keySecret, orderID, paymentID, signature)
}

func verifySignature(secret, orderID, paymentID, signature string) error {
	if secret == "" {
		return paymentdomain.ErrProviderNotConfigured
	}
	signature = strings.TrimSpace(signature)
	if orderID == "" || paymentID == "" || signature == "" {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func readString(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func readInt(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
