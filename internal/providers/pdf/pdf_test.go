package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateStatement(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r, err := New().GenerateStatement(context.Background(), StatementData{
		UserID:      "user-1",
		Email:       "a@example.com",
		GeneratedAt: now,
		EarnedCoins: 300,
		BonusCoins:  50,
		SpentCoins:  30,
		TotalCoins:  320,
		Entries: []StatementEntry{
			{TransactionID: "txn_2", OccurredAt: now, Type: "spend", Description: "Used Chat", Amount: 30},
			{TransactionID: "txn_1", OccurredAt: now.Add(-time.Hour), Type: "bonus", Description: "Bonus", Amount: 50},
		},
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestGenerateStatementRequiresUser(t *testing.T) {
	_, err := New().GenerateStatement(context.Background(), StatementData{})
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestGenerateReceipt(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r, err := New().GenerateReceipt(context.Background(), ReceiptData{
		UserEmail:  "a@example.com",
		PlanName:   "Devotee",
		Coins:      300,
		OrderID:    "order_1",
		PaymentID:  "pay_1",
		Currency:   "INR",
		AmountPaid: 19900,
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	_, err = New().GenerateReceipt(context.Background(), ReceiptData{})
	assert.ErrorIs(t, err, ErrMissingOrder)
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "INR 199.00", FormatMinor(19900, "inr"))
	assert.Equal(t, "INR 0.05", FormatMinor(5, "INR"))
	assert.Equal(t, "INR -1.50", FormatMinor(-150, "INR"))
}

func TestSignedAmount(t *testing.T) {
	assert.Equal(t, "-15", StatementEntry{Type: "spend", Amount: 15}.signedAmount())
	assert.Equal(t, "+0", StatementEntry{Type: "free_usage", Amount: 0}.signedAmount())
}
