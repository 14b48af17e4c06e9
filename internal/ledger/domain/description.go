package domain

import "fmt"

// Describe renders the user-facing line shown in transaction history.
func Describe(t TransactionType, amount int64, featureName string) string {
	switch t {
	case TransactionTypeSpend:
		return fmt.Sprintf("Spent %d coins on %s", amount, featureName)
	case TransactionTypeEarn:
		return fmt.Sprintf("Earned %d coins from subscription", amount)
	case TransactionTypeBonus:
		return fmt.Sprintf("Received %d bonus coins", amount)
	case TransactionTypeFreeUsage:
		return fmt.Sprintf("Used %s (free access)", featureName)
	default:
		return ""
	}
}
