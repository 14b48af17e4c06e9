package service

import subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"

// Prices are in paise.
var defaultPlans = []subscriptiondomain.Plan{
	{ID: "seeker_7", Name: "Seeker - 7 Days", DurationDays: 7, Price: 9900, Coins: 300, Currency: "INR"},
	{ID: "devotee_30", Name: "Devotee - 30 Days", DurationDays: 30, Price: 29900, Coins: 1200, Currency: "INR"},
	{ID: "sadhak_90", Name: "Sadhak - 90 Days", DurationDays: 90, Price: 79900, Coins: 4000, Currency: "INR"},
}

const maxReceiptLength = 40
